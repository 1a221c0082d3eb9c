// Package sessions implements credential backup and restore for tenant bot
// instances. Backups capture the opaque session folder as a blob map; restore
// writes the files back and cycles the instance so it reconnects without
// re-pairing.
package sessions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/provider"
	"github.com/talkincode/botfleet/pkg/common"
)

// InstanceController is the slice of the lifecycle manager the coordinator
// needs: live-instance lookup, an artifact-preserving shutdown and a restart
// that also starts a stopped tenant.
type InstanceController interface {
	Running(tenantID string) (port int, ok bool)
	Shutdown(ctx context.Context, tenantID string) error
	Restart(ctx context.Context, tenant *domain.BotTenant) error
}

// RestoreResult reports what a restore did. A failed instance restart does
// not fail the restore; the written files survive and RestartError carries
// the cause.
type RestoreResult struct {
	BackupID     int64     `json:"backup_id,string"`
	BackupDate   time.Time `json:"backup_date"`
	Files        int       `json:"files"`
	Restarted    bool      `json:"restarted"`
	RestartError string    `json:"restart_error,omitempty"`
}

// Coordinator drives backups and restores. A running instance is captured
// through its control endpoint; a stopped one straight from disk.
type Coordinator struct {
	store   *Store
	ctrl    InstanceController
	layout  provider.Layout
	timeout time.Duration
}

func NewCoordinator(store *Store, ctrl InstanceController, layout provider.Layout, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{store: store, ctrl: ctrl, layout: layout, timeout: timeout}
}

// Backup captures the tenant's current session and saves it as the active
// backup row.
func (c *Coordinator) Backup(ctx context.Context, tenant *domain.BotTenant) (*domain.SessionBackup, error) {
	blobs, err := c.captureSession(tenant)
	if err != nil {
		return nil, err
	}
	backup, err := c.store.Save(tenant.ID, tenant.SessionName, blobs)
	if err != nil {
		return nil, err
	}
	zap.L().Info("sessions: backup saved",
		zap.String("namespace", "sessions"),
		zap.String("tenant_id", tenant.ID),
		zap.Int("files", len(blobs)))
	return backup, nil
}

func (c *Coordinator) captureSession(tenant *domain.BotTenant) (map[string][]byte, error) {
	if port, ok := c.ctrl.Running(tenant.ID); ok {
		return c.exportFromInstance(tenant.ID, port)
	}

	dir := c.layout.SessionPath(tenant.SessionName)
	if !common.FileExists(dir) {
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrNoActiveSession)
	}
	blobs, err := provider.ReadSessionDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %v: %w", tenant.ID, err, ErrSessionRead)
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrNoActiveSession)
	}
	return blobs, nil
}

func (c *Coordinator) exportFromInstance(tenantID string, port int) (map[string][]byte, error) {
	var payload provider.SessionPayload
	var code int
	err := gout.GET(fmt.Sprintf("http://127.0.0.1:%d%s", port, provider.ControlExportPath)).
		SetTimeout(c.timeout).
		Code(&code).
		BindJSON(&payload).
		Do()
	if err != nil {
		return nil, fmt.Errorf("tenant %s export: %v: %w", tenantID, err, ErrSessionRead)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("tenant %s export status %d: %w", tenantID, code, ErrSessionRead)
	}
	if len(payload.Files) == 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNoActiveSession)
	}
	return payload.Files, nil
}

// Restore writes the active backup back to the tenant's session folder.
// Refused with ErrConflict when a live session exists and force is false.
// The instance is cycled afterwards, or started fresh if it was down.
func (c *Coordinator) Restore(ctx context.Context, tenant *domain.BotTenant, force bool) (*RestoreResult, error) {
	backup, err := c.store.GetActive(tenant.ID)
	if err != nil {
		return nil, err
	}
	if len(backup.SessionData) == 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrEmptyBackup)
	}

	_, running := c.ctrl.Running(tenant.ID)
	if (running || c.sessionOnDisk(tenant.SessionName)) && !force {
		return nil, fmt.Errorf("tenant %s: %w", tenant.ID, ErrConflict)
	}

	// Quiesce a running instance before touching its folder so nothing holds
	// the credential store open while the restored files land.
	if running {
		if err := c.ctrl.Shutdown(ctx, tenant.ID); err != nil {
			return nil, fmt.Errorf("tenant %s: quiesce: %v: %w", tenant.ID, err, ErrSessionWrite)
		}
	}

	dir := c.layout.SessionPath(tenant.SessionName)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("tenant %s: %v: %w", tenant.ID, err, ErrSessionWrite)
	}
	if err := provider.WriteSessionDir(dir, backup.SessionData); err != nil {
		return nil, fmt.Errorf("tenant %s: %v: %w", tenant.ID, err, ErrSessionWrite)
	}

	result := &RestoreResult{
		BackupID:   backup.ID,
		BackupDate: backup.BackupDate,
		Files:      len(backup.SessionData),
	}
	// Cycle (or freshly start) the instance so the restored credentials take
	// effect. A failed start leaves the written files in place.
	if err := c.ctrl.Restart(ctx, tenant); err != nil {
		result.RestartError = err.Error()
		zap.L().Warn("sessions: restart after restore failed",
			zap.String("namespace", "sessions"),
			zap.String("tenant_id", tenant.ID),
			zap.Error(err))
	} else {
		result.Restarted = true
	}

	if err := c.store.MarkRestored(backup.ID, time.Now()); err != nil {
		zap.L().Warn("sessions: restore stamp failed",
			zap.String("namespace", "sessions"),
			zap.String("tenant_id", tenant.ID),
			zap.Error(err))
	}
	zap.L().Info("sessions: backup restored",
		zap.String("namespace", "sessions"),
		zap.String("tenant_id", tenant.ID),
		zap.Int("files", result.Files),
		zap.Bool("restarted", result.Restarted))
	return result, nil
}

func (c *Coordinator) sessionOnDisk(sessionName string) bool {
	dir := c.layout.SessionPath(sessionName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// List exposes the tenant's backup history for the admin API.
func (c *Coordinator) List(tenantID string) ([]domain.SessionBackup, error) {
	return c.store.List(tenantID)
}
