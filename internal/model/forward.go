// Package model defines shared types for the edge gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// ForwardRequest represents an inbound request that matched a rewrite
// rule and is about to be sent to the backend. RawQuery is kept as the
// client sent it; re-encoding could reorder or re-escape parameters.
type ForwardRequest struct {
	Ctx      context.Context
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser
}

// ForwardResponse represents the backend response to be streamed back.
type ForwardResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
