package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
	// Timeout bounds every request. Zero disables it.
	Timeout time.Duration
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if m.XRay != nil {
		e.Use(m.XRay)
	}
	e.Use(middleware.RequestID())
	if m.RequestLogger != nil {
		e.Use(m.RequestLogger)
	}
	e.Use(middleware.Recover())
	if m.Timeout > 0 {
		e.Use(middleware.ContextTimeout(m.Timeout))
	}
	return e
}

func NewRouter(h *ApplicationsHandler, m Middleware) *echo.Echo {
	e := newEcho(m)
	e.GET("/healthz", h.Health)

	var auth []echo.MiddlewareFunc
	if m.Auth != nil {
		auth = append(auth, m.Auth)
	}
	e.GET("/applications", h.List, auth...)
	e.DELETE("/applications", h.Unmount, auth...)
	e.POST("/applications/refresh", h.Refresh, auth...)
	e.POST("/applications/:client_id/toggle", h.Toggle, auth...)
	e.POST("/applications/:client_id/removal", h.RequestRemoval, auth...)
	e.DELETE("/applications/removal", h.CancelRemoval, auth...)
	e.POST("/applications/removal/confirm", h.ConfirmRemoval, auth...)
	e.GET("/alerts", h.Alerts, auth...)
	e.GET("/alerts/history", h.AlertHistory, auth...)
	return e
}
