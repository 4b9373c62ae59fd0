// Package handler wires the edge gateway's HTTP surface: the rewrite
// forwarder and the local health/status endpoints.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"servineo-edge-go/internal/model"
	"servineo-edge-go/internal/rewrite"
	"servineo-edge-go/internal/upstream"
)

// Forwarder matches inbound paths against the rewrite rules and
// streams matching requests to the backend. Unmatched paths fall
// through to the local routes.
type Forwarder struct {
	router *rewrite.Router
	client *upstream.Client
	logger *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(router *rewrite.Router, client *upstream.Client, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		router: router,
		client: client,
		logger: logger.With("component", "forwarder"),
	}
}

// Middleware returns the Echo middleware implementing the rewrite
// step: first matching rule wins, no match passes through unmodified.
func (f *Forwarder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rule, ok := f.router.Match(c.Request().URL.Path)
			if !ok {
				return next(c)
			}
			return f.forward(c, rule)
		}
	}
}

func (f *Forwarder) forward(c echo.Context, rule rewrite.Rule) error {
	req := c.Request()

	fr := &model.ForwardRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	target := f.router.Target(rule, fr.Path, fr.RawQuery)
	header := f.forwardHeaders(c, fr.Header)

	f.logger.Debug("forwarding request",
		"method", fr.Method,
		"path", fr.Path,
		"origin", rule.DestinationOrigin,
	)

	resp, err := f.client.DoStream(fr.Ctx, fr.Method, target, header, fr.Body)
	if err != nil {
		return f.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Copy backend response headers, minus hop-by-hop ones.
	respHeader := c.Response().Header()
	for key, vals := range resp.Header {
		if hopByHop[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range vals {
			respHeader.Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the backend body directly to the client. If io.Copy fails
	// mid-stream (client disconnect, network error), the status code
	// has already been sent, so the client receives a truncated
	// response with the original status. We log the error for
	// observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		f.logger.Error("streaming response body",
			"err", err,
			"path", fr.Path,
		)
	}

	return nil
}

// hopByHop headers are stripped from forwarded responses.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// forwardHeaders copies the inbound headers for the backend request,
// dropping hop-by-hop headers and recording the original client in the
// X-Forwarded-* set.
func (f *Forwarder) forwardHeaders(c echo.Context, src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if hopByHop[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[http.CanonicalHeaderKey(key)] = vals
	}

	if prior := src.Get("X-Forwarded-For"); prior != "" {
		dst.Set("X-Forwarded-For", prior+", "+c.RealIP())
	} else {
		dst.Set("X-Forwarded-For", c.RealIP())
	}
	dst.Set("X-Forwarded-Proto", c.Scheme())
	dst.Set("X-Forwarded-Host", c.Request().Host)

	return dst
}

func (f *Forwarder) mapError(c echo.Context, err error) error {
	f.logger.Error("forward error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "backend request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "backend host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "backend connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "backend request failed",
	})
}
