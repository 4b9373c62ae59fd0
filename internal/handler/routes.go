package handler

import (
	"github.com/labstack/echo/v4"

	"servineo-edge-go/internal/config"
)

// RegisterRoutes wires the forwarder and all local routes onto the
// Echo instance. The forwarder runs as middleware so that any path
// matching a rewrite rule is sent to the backend before local routing;
// everything else (health, status, static assets) is served locally.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, fwd *Forwarder, health *HealthHandler) {
	e.Use(fwd.Middleware())

	e.GET("/healthz", health.Healthz)
	e.GET("/edge/status", health.Status)

	if cfg.Static.Dir != "" {
		e.Static("/", cfg.Static.Dir)
	}
}
