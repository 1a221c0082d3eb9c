package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/sessions"
	"github.com/talkincode/botfleet/internal/webserver"
)

func registerSessionRoutes() {
	webserver.ApiPOST("/sessions/backup", postSessionBackup)
	webserver.ApiPOST("/sessions/restore", postSessionRestore)
	webserver.ApiGET("/sessions/backup", getSessionBackup)
}

type backupMetadata struct {
	BackupID    int64      `json:"backup_id,string"`
	TenantID    string     `json:"tenant_id"`
	SessionName string     `json:"session_name"`
	BackupDate  time.Time  `json:"backup_date"`
	Files       int        `json:"files"`
	RestoredAt  *time.Time `json:"restored_at,omitempty"`
}

func metadataOf(b *domain.SessionBackup) backupMetadata {
	return backupMetadata{
		BackupID:    b.ID,
		TenantID:    b.TenantID,
		SessionName: b.SessionName,
		BackupDate:  b.BackupDate,
		Files:       len(b.SessionData),
		RestoredAt:  b.RestoredAt,
	}
}

func lookupTenant(c echo.Context, clientID string) (*domain.BotTenant, error) {
	if clientID == "" {
		return nil, fail(c, http.StatusBadRequest, "MISSING_FIELDS", "clientId is required", nil)
	}
	var tenant domain.BotTenant
	err := deps.DB.Where("id = ?", clientID).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "TENANT_NOT_FOUND", "Unknown tenant", nil)
	}
	if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DB_ERROR", "Tenant lookup failed", err.Error())
	}
	return &tenant, nil
}

func postSessionBackup(c echo.Context) error {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	tenant, errResp := lookupTenant(c, req.ClientID)
	if tenant == nil {
		return errResp
	}

	backup, err := deps.Sessions.Backup(c.Request().Context(), tenant)
	switch {
	case errors.Is(err, sessions.ErrNoActiveSession):
		return fail(c, http.StatusNotFound, "NO_ACTIVE_SESSION", "No session to back up", nil)
	case errors.Is(err, sessions.ErrSessionRead):
		return fail(c, http.StatusInternalServerError, "SESSION_READ_ERROR", "Session data unreadable", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "BACKUP_FAILED", "Backup failed", err.Error())
	}
	return c.JSON(http.StatusCreated, metadataOf(backup))
}

func postSessionRestore(c echo.Context) error {
	var req struct {
		ClientID     string `json:"clientId"`
		ForceRestore bool   `json:"forceRestore"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	tenant, errResp := lookupTenant(c, req.ClientID)
	if tenant == nil {
		return errResp
	}

	result, err := deps.Sessions.Restore(c.Request().Context(), tenant, req.ForceRestore)
	switch {
	case errors.Is(err, sessions.ErrNoBackupFound):
		return fail(c, http.StatusNotFound, "NO_BACKUP_FOUND", "No backup exists for this tenant", nil)
	case errors.Is(err, sessions.ErrEmptyBackup):
		return fail(c, http.StatusNotFound, "EMPTY_BACKUP", "Backup contains no session data", nil)
	case errors.Is(err, sessions.ErrConflict):
		return fail(c, http.StatusConflict, "CONFLICT", "A live session exists, pass forceRestore to overwrite", nil)
	case errors.Is(err, sessions.ErrSessionWrite):
		return fail(c, http.StatusInternalServerError, "SESSION_WRITE_ERROR", "Session data unwritable", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "RESTORE_FAILED", "Restore failed", err.Error())
	}
	return ok(c, result)
}

func getSessionBackup(c echo.Context) error {
	tenant, errResp := lookupTenant(c, c.QueryParam("clientId"))
	if tenant == nil {
		return errResp
	}

	rows, err := deps.Sessions.List(tenant.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Backup lookup failed", err.Error())
	}
	for i := range rows {
		if rows[i].IsActive {
			meta := metadataOf(&rows[i])
			return ok(c, map[string]interface{}{"hasBackup": true, "backup": meta})
		}
	}
	return ok(c, map[string]interface{}{"hasBackup": false})
}
