package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Control endpoint paths. The backup coordinator calls the export path on the
// instance port when it needs a live capture; restores quiesce the instance
// and write to disk instead, so there is no import counterpart.
const (
	ControlHealthzPath = "/internal/healthz"
	ControlExportPath  = "/internal/session/export"
	ControlSendPath    = "/internal/send"
)

type controlSendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// startControl binds the control server on the instance's loopback port. The
// bind happens synchronously so a busy port fails Boot instead of surfacing
// later from a goroutine.
func (w *whatsmeowInstance) startControl() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET(ControlHealthzPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"session":   w.sessionName,
			"tenant_id": w.tenantID,
			"logged_in": w.client.Store.ID != nil,
		})
	})
	e.GET(ControlExportPath, func(c echo.Context) error {
		blobs, err := w.ExportSession(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, SessionPayload{
			SessionName: w.sessionName,
			Files:       blobs,
		})
	})
	e.POST(ControlSendPath, func(c echo.Context) error {
		var req controlSendRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := w.SendText(c.Request().Context(), req.To, req.Text); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", w.port))
	if err != nil {
		return fmt.Errorf("bind control port %d: %w", w.port, err)
	}
	e.Listener = ln
	w.control = e

	go func() {
		if err := e.Start(""); err != nil && err != http.ErrServerClosed {
			zap.L().Error("provider: control server exited",
				zap.String("namespace", "provider"),
				zap.String("tenant_id", w.tenantID),
				zap.Error(err))
		}
	}()
	return nil
}

func (w *whatsmeowInstance) shutdownControl(ctx context.Context) {
	if w.control == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.control.Shutdown(sctx); err != nil {
		zap.L().Warn("provider: control server shutdown failed",
			zap.String("namespace", "provider"),
			zap.String("tenant_id", w.tenantID),
			zap.Error(err))
	}
	w.control = nil
}
