package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/bots"
	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/webserver"
)

func registerBotRoutes() {
	webserver.ApiPOST("/start-bot", postStartBot)
	webserver.ApiPOST("/stop-bot", postStopBot)
	webserver.ApiGET("/status", getStatus)
	webserver.ApiPOST("/cleanup-session", postCleanupSession)
	webserver.ApiPOST("/check-port", postCheckPort)
}

type startBotRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Port        int    `json:"port,omitempty"`
	Phone       string `json:"phone,omitempty"`
	SessionName string `json:"sessionName"`
}

func postStartBot(c echo.Context) error {
	var req startBotRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if req.ID == "" || req.SessionName == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "id and sessionName are required", nil)
	}

	tenant, err := upsertTenant(&req)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to persist tenant", err.Error())
	}

	ent, err := deps.Manager.Start(c.Request().Context(), tenant)
	switch {
	case errors.Is(err, bots.ErrAlreadyRunning):
		return fail(c, http.StatusBadRequest, "ALREADY_RUNNING", "Bot is already running", nil)
	case errors.Is(err, bots.ErrResourceExhausted):
		return fail(c, http.StatusInternalServerError, "RESOURCE_EXHAUSTED", "No free port available", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "START_FAILED", "Provider failed to start the bot", err.Error())
	}

	if tenant.Port != ent.Port {
		tenant.Port = ent.Port
		if err := deps.DB.Save(tenant).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to record assigned port", err.Error())
		}
	}
	return ok(c, map[string]interface{}{
		"message": "bot started",
		"id":      tenant.ID,
		"port":    ent.Port,
	})
}

func upsertTenant(req *startBotRequest) (*domain.BotTenant, error) {
	var tenant domain.BotTenant
	err := deps.DB.Where("id = ?", req.ID).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant = domain.BotTenant{
			ID:          req.ID,
			Name:        req.Name,
			Phone:       req.Phone,
			SessionName: req.SessionName,
			Port:        req.Port,
			IsActive:    true,
		}
		if err := deps.DB.Create(&tenant).Error; err != nil {
			return nil, err
		}
		return &tenant, nil
	}
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.Phone != "" {
		tenant.Phone = req.Phone
	}
	if req.Port > 0 {
		tenant.Port = req.Port
	}
	tenant.SessionName = req.SessionName
	tenant.IsActive = true
	if err := deps.DB.Save(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func postStopBot(c echo.Context) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if req.ID == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "id is required", nil)
	}

	err := deps.Manager.Stop(c.Request().Context(), req.ID)
	if errors.Is(err, bots.ErrNotRunning) {
		return fail(c, http.StatusNotFound, "NOT_RUNNING", "Bot is not running", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STOP_FAILED", "Failed to stop bot", err.Error())
	}
	return okMessage(c, "bot stopped")
}

func getStatus(c echo.Context) error {
	entries := deps.Manager.Status()
	items := make([]map[string]interface{}, 0, len(entries))
	for _, ent := range entries {
		items = append(items, map[string]interface{}{
			"id":          ent.TenantID,
			"name":        tenantName(ent.TenantID),
			"port":        ent.Port,
			"phone":       ent.Phone,
			"sessionName": ent.SessionName,
			"startedAt":   ent.StartedAt,
		})
	}
	return ok(c, items)
}

func tenantName(tenantID string) string {
	var tenant domain.BotTenant
	if err := deps.DB.Select("name").Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return ""
	}
	return tenant.Name
}

func postCleanupSession(c echo.Context) error {
	var req struct {
		SessionName string `json:"sessionName"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if req.SessionName == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "sessionName is required", nil)
	}

	// The tenant owning the session supplies the lifecycle lock key; an
	// unknown session still gets its files removed.
	tenantID := req.SessionName
	var tenant domain.BotTenant
	if err := deps.DB.Where("session_name = ?", req.SessionName).First(&tenant).Error; err == nil {
		tenantID = tenant.ID
	}

	err := deps.Manager.CleanupSession(tenantID, req.SessionName)
	if errors.Is(err, bots.ErrAlreadyRunning) {
		return fail(c, http.StatusBadRequest, "ALREADY_RUNNING", "Stop the bot before cleaning its session", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CLEANUP_FAILED", "Failed to clean session", err.Error())
	}
	return okMessage(c, "session cleaned")
}

func postCheckPort(c echo.Context) error {
	var req struct {
		Port int `json:"port"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if req.Port <= 0 || req.Port > 65535 {
		return fail(c, http.StatusBadRequest, "INVALID_PORT", "port must be 1-65535", nil)
	}
	return ok(c, map[string]bool{"available": deps.Manager.PortAvailable(req.Port)})
}
