// Package adminapi implements the admin control surface. Handlers translate
// the error taxonomy of the underlying services into HTTP statuses; no error
// escapes unmapped.
package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/bots"
	"github.com/talkincode/botfleet/internal/optout"
	"github.com/talkincode/botfleet/internal/reminders"
	"github.com/talkincode/botfleet/internal/sessions"
)

// Deps carries the services the handlers operate on.
type Deps struct {
	DB        *gorm.DB
	Manager   *bots.Manager
	Sessions  *sessions.Coordinator
	Reminders *reminders.Service
	OptOuts   *optout.Store
}

var deps *Deps

// Init wires the handler dependencies and registers all admin routes. The
// webserver must be initialized first.
func Init(d *Deps) {
	deps = d
	registerBotRoutes()
	registerSessionRoutes()
	registerReminderRoutes()
	registerOptOutRoutes()
	registerSystemRoutes()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func okMessage(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, map[string]string{"message": message})
}

func fail(c echo.Context, status int, code string, message string, details interface{}) error {
	body := map[string]interface{}{
		"code":  code,
		"error": message,
	}
	if details != nil {
		body["details"] = details
	}
	return c.JSON(status, body)
}
