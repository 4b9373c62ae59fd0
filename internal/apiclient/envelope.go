// Package apiclient provides a typed HTTP client for the backend API.
//
// Every operation returns an Envelope and never a Go error: transport
// failures, timeouts, error statuses and undecodable bodies are all
// absorbed and classified, so callers branch on Envelope.Success instead
// of handling errors at each call site.
package apiclient

// FailureKind classifies why a request produced a failure envelope.
type FailureKind string

const (
	// FailureNone marks a successful envelope.
	FailureNone FailureKind = ""
	// FailureRequest means the request could not be constructed
	// (absolute URL, unencodable body, reserved multipart field).
	FailureRequest FailureKind = "request"
	// FailureNetwork means no response was received: DNS failure,
	// connection refused or reset, or cancellation by the caller.
	FailureNetwork FailureKind = "network"
	// FailureTimeout means the configured deadline fired before a
	// response arrived. The in-flight request is cancelled.
	FailureTimeout FailureKind = "timeout"
	// FailureHTTP means a response arrived with a non-2xx status.
	FailureHTTP FailureKind = "http"
	// FailureParse means a 2xx response body could not be decoded.
	FailureParse FailureKind = "parse"
)

// Envelope is the uniform result of every client operation.
//
// Exactly one of the success and failure halves is populated: Success
// implies Data is set and Error is empty; !Success implies Error is set
// and Data is the zero value. Envelopes are created once per request
// attempt and never mutated afterwards.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	// Kind classifies a failure; FailureNone on success. Not part of
	// the wire shape.
	Kind FailureKind `json:"-"`
	// StatusCode is the HTTP status of the response, 0 when no
	// response was received. Not part of the wire shape.
	StatusCode int `json:"-"`
}

func succeed[T any](data T, message string, status int) Envelope[T] {
	return Envelope[T]{
		Success:    true,
		Data:       data,
		Message:    message,
		StatusCode: status,
	}
}

func failure[T any](kind FailureKind, status int, errMsg, message string) Envelope[T] {
	return Envelope[T]{
		Error:      errMsg,
		Message:    message,
		Kind:       kind,
		StatusCode: status,
	}
}
