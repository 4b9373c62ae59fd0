package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"servineo-edge-go/internal/apiclient"
	"servineo-edge-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	api     *apiclient.Client
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, api *apiclient.Client, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, api: api, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports gateway status plus a live backend probe issued
// through the typed API client.
func (h *HealthHandler) Status(c echo.Context) error {
	probe := apiclient.Get[json.RawMessage](c.Request().Context(), h.api, h.cfg.Client.HealthPath)

	backend := map[string]any{
		"origin":    h.cfg.Client.BaseURL,
		"reachable": probe.Success,
	}
	if !probe.Success {
		backend["error"] = probe.Error
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": string(h.version),
		"routes":  len(h.cfg.Routes),
		"backend": backend,
	})
}
