package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/botfleet/internal/webserver"
)

func registerOptOutRoutes() {
	webserver.ApiPOST("/optout/toggle", postOptOutToggle)
	webserver.ApiGET("/optout", getOptOuts)
}

// postOptOutToggle flips a phone's opt-out membership. Empty tenantId targets
// the global set, which applies to every tenant.
func postOptOutToggle(c echo.Context) error {
	var req struct {
		TenantID string `json:"tenantId"`
		Phone    string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if req.Phone == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "phone is required", nil)
	}
	optedOut := deps.OptOuts.Toggle(req.TenantID, req.Phone)
	return ok(c, map[string]interface{}{
		"phone":    req.Phone,
		"optedOut": optedOut,
	})
}

func getOptOuts(c echo.Context) error {
	global, tenant := deps.OptOuts.Snapshot(c.QueryParam("tenantId"))
	return ok(c, map[string]interface{}{
		"global": global,
		"tenant": tenant,
	})
}
