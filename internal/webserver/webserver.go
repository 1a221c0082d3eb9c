// Package webserver hosts the admin HTTP API. Route handlers live in
// adminapi; this package owns the echo instance, the shared-secret guard and
// request logging.
package webserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/talkincode/botfleet/config"
	"github.com/talkincode/botfleet/pkg/common"
)

// SecretHeader carries the shared admin secret on every request.
const SecretHeader = "X-API-Secret"

type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	config *config.AppConfig
}

var server *WebServer

// Init builds the admin server. Every /api route passes the shared-secret
// check before reaching business logic.
func Init(cfg *config.AppConfig) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &JsoniterSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: common.UUID,
	}))
	e.Use(requestLogger())

	s := &WebServer{root: e, config: cfg}
	s.api = e.Group("/api", secretGuard(cfg.Web.Secret))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	server = s
	return s
}

// secretGuard matches the request header against the configured secret by
// salted sha256 digest. An empty configured secret rejects everything.
func secretGuard(secret string) echo.MiddlewareFunc {
	salt := common.GetSecretSalt()
	want := common.Sha256HashWithSalt(secret, salt)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := common.Sha256HashWithSalt(c.Request().Header.Get(SecretHeader), salt)
			if secret == "" || got != want {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "unauthorized",
				})
			}
			return next(c)
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Info("webserver: request",
				zap.String("namespace", "webserver"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	})
}

// Listen blocks serving the admin API.
func (s *WebServer) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Web.Host, s.config.Web.Port)
	zap.L().Info("webserver: listening",
		zap.String("namespace", "webserver"),
		zap.String("addr", addr))
	return s.root.Start(addr)
}

// Echo exposes the root instance for tests.
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// Route registration helpers used by adminapi's register functions.

func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}
