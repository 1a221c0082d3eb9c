package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/bots"
	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/provider"
	"github.com/talkincode/botfleet/pkg/common"
)

type noopInstance struct {
	port    int
	session string
}

func (n *noopInstance) Port() int           { return n.port }
func (n *noopInstance) SessionName() string { return n.session }
func (n *noopInstance) SendText(ctx context.Context, to, text string) error {
	return nil
}
func (n *noopInstance) ExportSession(ctx context.Context) (map[string][]byte, error) {
	return nil, nil
}
func (n *noopInstance) Close(ctx context.Context) error { return nil }

type noopProvider struct {
	layout provider.Layout
}

func (n *noopProvider) Boot(ctx context.Context, params provider.BootParams) (provider.Instance, error) {
	return &noopInstance{port: params.Port, session: params.SessionName}, nil
}

func (n *noopProvider) Layout() provider.Layout { return n.layout }

func testApp(t *testing.T, base int) *Application {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatal(err)
	}
	engine := &noopProvider{layout: provider.Layout{Root: t.TempDir()}}
	return &Application{
		gormDB:  db,
		manager: bots.NewManager(engine, bots.NewPortAllocator(base, 50), nil),
	}
}

func seedSetting(t *testing.T, db *gorm.DB, stype, name, value string) {
	t.Helper()
	if err := db.Create(&domain.SysConfig{
		ID:    common.UUIDint64(),
		Type:  stype,
		Name:  name,
		Value: value,
	}).Error; err != nil {
		t.Fatal(err)
	}
}

func seedTenant(t *testing.T, db *gorm.DB, id string, active bool) {
	t.Helper()
	if err := db.Create(&domain.BotTenant{
		ID:          id,
		Name:        id,
		SessionName: id + "-session",
		IsActive:    active,
	}).Error; err != nil {
		t.Fatal(err)
	}
}

func TestAutoStartRespectsSwitch(t *testing.T) {
	a := testApp(t, 46000)
	seedSetting(t, a.gormDB, "bots", "AutoStartActive", common.DISABLED)
	seedTenant(t, a.gormDB, "client-a", true)

	a.autoStartBots()
	if a.manager.Count() != 0 {
		t.Fatalf("switch off, no tenant should start, got %d running", a.manager.Count())
	}
}

func TestAutoStartStartsOnlyActiveTenants(t *testing.T) {
	a := testApp(t, 46100)
	seedSetting(t, a.gormDB, "bots", "AutoStartActive", common.ENABLED)
	seedTenant(t, a.gormDB, "client-a", true)
	seedTenant(t, a.gormDB, "client-b", false)

	a.autoStartBots()
	if a.manager.Count() != 1 {
		t.Fatalf("expected 1 running tenant, got %d", a.manager.Count())
	}
	if _, ok := a.manager.Running("client-a"); !ok {
		t.Fatal("active tenant should be running")
	}
	if _, ok := a.manager.Running("client-b"); ok {
		t.Fatal("inactive tenant must stay down")
	}

	var stored domain.BotTenant
	if err := a.gormDB.First(&stored, "id = ?", "client-a").Error; err != nil {
		t.Fatal(err)
	}
	if stored.Port == 0 {
		t.Fatal("assigned port should be persisted")
	}
}

func TestCheckSettingsSeedsDefaultsOnce(t *testing.T) {
	a := testApp(t, 46200)
	seedSetting(t, a.gormDB, "reminders", "DispatchEnabled", common.DISABLED)

	a.checkSettings()
	a.checkSettings()

	var count int64
	if err := a.gormDB.Model(&domain.SysConfig{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != int64(len(settingDefaults)) {
		t.Fatalf("expected %d settings rows, got %d", len(settingDefaults), count)
	}
	if a.GetSettingsBoolValue("reminders", "DispatchEnabled") {
		t.Fatal("existing row must not be overwritten by defaults")
	}
	if a.GetSettingsBoolValue("bots", "AutoStartActive") {
		t.Fatal("autostart default should be off")
	}
}
