package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"servineo-edge-go/internal/apiclient"
	"servineo-edge-go/internal/config"
)

func newTestAPIClient(t *testing.T, baseURL string) *apiclient.Client {
	t.Helper()
	c, err := apiclient.New(apiclient.Config{BaseURL: baseURL, Timeout: 2 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return c
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(&config.Config{}, nil, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus_BackendReachable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("probe path = %q, want /api/health", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer backend.Close()

	cfg := &config.Config{
		Client: config.ClientConfig{BaseURL: backend.URL, HealthPath: "/api/health"},
		Routes: []config.RouteConfig{{MatchPrefix: "/api/", DestinationOrigin: backend.URL}},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/edge/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(cfg, newTestAPIClient(t, backend.URL), "1.2.3")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Routes  int    `json:"routes"`
		Backend struct {
			Reachable bool   `json:"reachable"`
			Error     string `json:"error"`
		} `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body.Version)
	}
	if body.Routes != 1 {
		t.Errorf("routes = %d, want 1", body.Routes)
	}
	if !body.Backend.Reachable {
		t.Errorf("backend.reachable = false, want true (error: %s)", body.Backend.Error)
	}
}

func TestStatus_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backendURL := backend.URL
	backend.Close()

	cfg := &config.Config{
		Client: config.ClientConfig{BaseURL: backendURL, HealthPath: "/api/health"},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/edge/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(cfg, newTestAPIClient(t, backendURL), "test")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	// The status endpoint itself stays healthy; only the probe reports failure.
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Backend struct {
			Reachable bool   `json:"reachable"`
			Error     string `json:"error"`
		} `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Backend.Reachable {
		t.Error("backend.reachable = true, want false")
	}
	if body.Backend.Error == "" {
		t.Error("backend.error empty, want failure description")
	}
}
