package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/config"
	"github.com/talkincode/botfleet/internal/bots"
	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/optout"
	"github.com/talkincode/botfleet/internal/provider"
	"github.com/talkincode/botfleet/internal/reminders"
	"github.com/talkincode/botfleet/internal/sessions"
	"github.com/talkincode/botfleet/internal/webserver"
)

const testSecret = "test-secret"

type stubInstance struct {
	port    int
	session string
}

func (s *stubInstance) Port() int           { return s.port }
func (s *stubInstance) SessionName() string { return s.session }
func (s *stubInstance) SendText(ctx context.Context, to, text string) error {
	return nil
}
func (s *stubInstance) ExportSession(ctx context.Context) (map[string][]byte, error) {
	return map[string][]byte{"session.db": []byte("blob")}, nil
}
func (s *stubInstance) Close(ctx context.Context) error { return nil }

type stubProvider struct {
	layout provider.Layout
}

func (s *stubProvider) Boot(ctx context.Context, params provider.BootParams) (provider.Instance, error) {
	return &stubInstance{port: params.Port, session: params.SessionName}, nil
}

func (s *stubProvider) Layout() provider.Layout { return s.layout }

func setupAPI(t *testing.T) *webserver.WebServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatal(err)
	}

	engine := &stubProvider{layout: provider.Layout{Root: t.TempDir()}}
	manager := bots.NewManager(engine, bots.NewPortAllocator(45100, 50), nil)
	coord := sessions.NewCoordinator(sessions.NewStore(db), manager, engine.Layout(), time.Second)
	optouts := optout.NewStore()
	loc, _ := time.LoadLocation("America/Mexico_City")
	reminderSvc, err := reminders.NewService(db, optouts, nil, loc, 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(reminderSvc.Release)

	cfg := *config.DefaultAppConfig
	cfg.Web.Secret = testSecret
	server := webserver.Init(&cfg)
	Init(&Deps{
		DB:        db,
		Manager:   manager,
		Sessions:  coord,
		Reminders: reminderSvc,
		OptOuts:   optouts,
	})
	return server
}

func doJSON(t *testing.T, server *webserver.WebServer, method, path, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(webserver.SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	return rec
}

func TestAdminAPI(t *testing.T) {
	server := setupAPI(t)

	t.Run("rejects missing secret", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/status", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if rec.Header().Get(echo.HeaderXRequestID) == "" {
			t.Fatal("every response should carry a request id")
		}
	})

	t.Run("check port", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/check-port", `{"port":45180}`, testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]bool
		if err := jsoniter.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp["available"] {
			t.Fatal("free port should report available")
		}
	})

	t.Run("start then duplicate start", func(t *testing.T) {
		body := `{"id":"client-a","name":"Client A","sessionName":"client-a-session"}`
		rec := doJSON(t, server, http.MethodPost, "/api/start-bot", body, testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = doJSON(t, server, http.MethodPost, "/api/start-bot", body, testSecret)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("duplicate start should return 400, got %d", rec.Code)
		}
	})

	t.Run("status lists running bot", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/status", "", testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "client-a") {
			t.Fatalf("status should list client-a: %s", rec.Body.String())
		}
	})

	t.Run("stop unknown tenant", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/stop-bot", `{"id":"ghost"}`, testSecret)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("restore without backup", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/sessions/restore", `{"clientId":"client-a"}`, testSecret)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("optout toggle", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/optout/toggle", `{"phone":"+5211111"}`, testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			OptedOut bool `json:"optedOut"`
		}
		if err := jsoniter.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.OptedOut {
			t.Fatal("first toggle should opt out")
		}
	})

	t.Run("reminder validation", func(t *testing.T) {
		body := `{"tenantId":"client-a","message":"pay up","phones":["+521111"],"frequency":"daily","hour":23,"minute":0}`
		rec := doJSON(t, server, http.MethodPost, "/api/reminders", body, testSecret)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("hour 23 should return 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("reminder pause and resume", func(t *testing.T) {
		body := `{"tenantId":"client-a","message":"corte de caja","phones":["+5214444"],"frequency":"daily","hour":9,"minute":30}`
		rec := doJSON(t, server, http.MethodPost, "/api/reminders", body, testSecret)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := jsoniter.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatal(err)
		}
		if created.ID == "" {
			t.Fatal("created job should carry an id")
		}

		rec = doJSON(t, server, http.MethodPost, "/api/reminders/"+created.ID+"/active", `{"active":false}`, testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = doJSON(t, server, http.MethodGet, "/api/reminders?tenantId=client-a", "", testSecret)
		if !strings.Contains(rec.Body.String(), `"active":false`) {
			t.Fatalf("paused job should list as inactive: %s", rec.Body.String())
		}

		rec = doJSON(t, server, http.MethodPost, "/api/reminders/999/active", `{"active":true}`, testSecret)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("unknown job should return 404, got %d", rec.Code)
		}
	})

	t.Run("metrics gauges", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/metrics", "", testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "botfleet_running") {
			t.Fatalf("gauge listing missing: %s", rec.Body.String())
		}
	})

	t.Run("stop running bot", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/stop-bot", `{"id":"client-a"}`, testSecret)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}
