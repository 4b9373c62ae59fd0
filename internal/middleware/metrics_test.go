package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"servineo-edge-go/internal/metrics"
)

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	m := metrics.New([]string{"/api/", "/healthz"})

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/users", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200", "/api/"))
	if got != 1 {
		t.Errorf("edge_http_requests_total{GET,200,/api/} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_ErrorStatusFromHTTPError(t *testing.T) {
	m := metrics.New([]string{"/api/"})

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/boom", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "503", "/api/"))
	if got != 1 {
		t.Errorf("edge_http_requests_total{GET,503,/api/} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_UnknownPathBounded(t *testing.T) {
	m := metrics.New([]string{"/api/"})

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/totally/unknown/path", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "404", "other"))
	if got != 1 {
		t.Errorf("edge_http_requests_total{GET,404,other} = %v, want 1", got)
	}
}
