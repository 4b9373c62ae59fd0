package middleware

import (
	"github.com/labstack/echo/v4"
)

// securityHeaders is the fixed, ordered header set attached to every
// response. Values are only applied when the handler has not already
// set the header itself.
var securityHeaders = []struct {
	name  string
	value string
}{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
}

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that adds the fixed
// security header set to every response (including error responses)
// and strips hop-by-hop headers from inbound requests.
//
// Headers are injected through a Response.Before hook so they are
// present even when the handler streams its body and commits the
// response before the middleware chain unwinds.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			c.Response().Before(func() {
				header := c.Response().Header()
				for _, h := range securityHeaders {
					if header.Get(h.name) == "" {
						header.Set(h.name, h.value)
					}
				}
			})

			return next(c)
		}
	}
}
