package sessions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/provider"
)

type fakeController struct {
	port        int
	running     bool
	shutdowns   int
	onShutdown  func()
	shutdownErr error
	restarted   int
	restartErr  error
}

func (f *fakeController) Running(tenantID string) (int, bool) {
	return f.port, f.running
}

func (f *fakeController) Shutdown(ctx context.Context, tenantID string) error {
	f.shutdowns++
	if f.onShutdown != nil {
		f.onShutdown()
	}
	if f.shutdownErr != nil {
		return f.shutdownErr
	}
	f.running = false
	return nil
}

func (f *fakeController) Restart(ctx context.Context, tenant *domain.BotTenant) error {
	f.restarted++
	return f.restartErr
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.SessionBackup{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func testCoordinator(t *testing.T) (*Coordinator, *fakeController, provider.Layout) {
	t.Helper()
	layout := provider.Layout{Root: t.TempDir()}
	ctrl := &fakeController{}
	coord := NewCoordinator(NewStore(testDB(t)), ctrl, layout, time.Second)
	return coord, ctrl, layout
}

func writeSessionFiles(t *testing.T, layout provider.Layout, sessionName string, files map[string][]byte) {
	t.Helper()
	dir := layout.SessionPath(sessionName)
	if err := provider.WriteSessionDir(dir, files); err != nil {
		t.Fatal(err)
	}
}

func sampleTenant() *domain.BotTenant {
	return &domain.BotTenant{
		ID:          "client-a",
		Name:        "Client A",
		SessionName: "client-a-session",
	}
}

func TestBackupFromDisk(t *testing.T) {
	coord, _, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{
		"session.db": []byte("creds"),
		"app.state":  []byte("state"),
	})

	backup, err := coord.Backup(context.Background(), tenant)
	if err != nil {
		t.Fatal(err)
	}
	if len(backup.SessionData) != 2 {
		t.Fatalf("expected 2 files, got %d", len(backup.SessionData))
	}
	if string(backup.SessionData["session.db"]) != "creds" {
		t.Fatal("backup content mismatch")
	}
	if !backup.IsActive {
		t.Fatal("backup row should be active")
	}
}

func TestBackupNoActiveSession(t *testing.T) {
	coord, _, _ := testCoordinator(t)
	_, err := coord.Backup(context.Background(), sampleTenant())
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestBackupRefreshesActiveRow(t *testing.T) {
	coord, _, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("v1")})

	first, err := coord.Backup(context.Background(), tenant)
	if err != nil {
		t.Fatal(err)
	}

	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("v2")})
	second, err := coord.Backup(context.Background(), tenant)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatal("second backup must refresh the active row, not create another")
	}
	if string(second.SessionData["session.db"]) != "v2" {
		t.Fatal("refreshed backup should hold the newer data")
	}

	rows, err := coord.List(tenant.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 backup row, got %d", len(rows))
	}
}

func TestRestoreNoBackup(t *testing.T) {
	coord, _, _ := testCoordinator(t)
	_, err := coord.Restore(context.Background(), sampleTenant(), false)
	if !errors.Is(err, ErrNoBackupFound) {
		t.Fatalf("expected ErrNoBackupFound, got %v", err)
	}
}

func TestRestoreConflictWithoutForce(t *testing.T) {
	coord, _, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("live")})
	if _, err := coord.Backup(context.Background(), tenant); err != nil {
		t.Fatal(err)
	}

	_, err := coord.Restore(context.Background(), tenant, false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	result, err := coord.Restore(context.Background(), tenant, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Files != 1 {
		t.Fatalf("expected 1 restored file, got %d", result.Files)
	}
}

func TestRestoreWritesFilesAndRestarts(t *testing.T) {
	coord, ctrl, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("creds")})
	if _, err := coord.Backup(context.Background(), tenant); err != nil {
		t.Fatal(err)
	}

	dir := layout.SessionPath(tenant.SessionName)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	ctrl.running = true
	ctrl.port = 44700

	result, err := coord.Restore(context.Background(), tenant, true)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Restarted {
		t.Fatal("running instance should be restarted after restore")
	}
	if ctrl.restarted != 1 {
		t.Fatalf("expected 1 restart, got %d", ctrl.restarted)
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "creds" {
		t.Fatal("restored file content mismatch")
	}
}

func TestRestoreQuiescesRunningInstanceBeforeWriting(t *testing.T) {
	coord, ctrl, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("old")})
	if _, err := coord.Backup(context.Background(), tenant); err != nil {
		t.Fatal(err)
	}

	dir := layout.SessionPath(tenant.SessionName)
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"live.lock": []byte("held")})
	ctrl.running = true
	ctrl.port = 44710
	ctrl.onShutdown = func() {
		// The live folder must still be untouched at shutdown time.
		if _, err := os.Stat(filepath.Join(dir, "live.lock")); err != nil {
			t.Errorf("session folder was rewritten before the instance stopped: %v", err)
		}
	}

	result, err := coord.Restore(context.Background(), tenant, true)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.shutdowns != 1 {
		t.Fatalf("expected 1 shutdown before writing, got %d", ctrl.shutdowns)
	}
	if !result.Restarted || ctrl.restarted != 1 {
		t.Fatal("instance should be restarted after the files landed")
	}
	if _, err := os.Stat(filepath.Join(dir, "live.lock")); !os.IsNotExist(err) {
		t.Fatal("restore should replace the live folder contents")
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old" {
		t.Fatal("restored file content mismatch")
	}
}

func TestRestoreFailsWhenQuiesceFails(t *testing.T) {
	coord, ctrl, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("creds")})
	if _, err := coord.Backup(context.Background(), tenant); err != nil {
		t.Fatal(err)
	}

	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"live.lock": []byte("held")})
	ctrl.running = true
	ctrl.shutdownErr = errors.New("handle stuck")

	_, err := coord.Restore(context.Background(), tenant, true)
	if !errors.Is(err, ErrSessionWrite) {
		t.Fatalf("expected ErrSessionWrite, got %v", err)
	}
	if ctrl.restarted != 0 {
		t.Fatal("failed quiesce must not restart the instance")
	}
	dir := layout.SessionPath(tenant.SessionName)
	if _, err := os.Stat(filepath.Join(dir, "live.lock")); err != nil {
		t.Fatal("failed quiesce must leave the live folder alone")
	}
}

func TestRestoreReportsRestartFailure(t *testing.T) {
	coord, ctrl, layout := testCoordinator(t)
	tenant := sampleTenant()
	writeSessionFiles(t, layout, tenant.SessionName, map[string][]byte{"session.db": []byte("creds")})
	if _, err := coord.Backup(context.Background(), tenant); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(layout.SessionPath(tenant.SessionName)); err != nil {
		t.Fatal(err)
	}

	ctrl.running = true
	ctrl.restartErr = errors.New("boot hung")

	result, err := coord.Restore(context.Background(), tenant, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Restarted {
		t.Fatal("restart should be reported as failed")
	}
	if result.RestartError == "" {
		t.Fatal("restart error should be carried in the result")
	}
}
