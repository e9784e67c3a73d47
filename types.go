package netguard

import (
	"net/http"
)

// Encoding selects how request parameters are serialized.
type Encoding int

const (
	// EncodingJSON writes parameters as a JSON object in the request body.
	EncodingJSON Encoding = iota
	// EncodingURL writes parameters to the query string for GET, HEAD and
	// DELETE, and as a form body for every other method.
	EncodingURL
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingURL:
		return "url"
	default:
		return "unknown"
	}
}

// ParseEncoding maps "json" / "url" onto an Encoding.
func ParseEncoding(s string) (Encoding, bool) {
	switch s {
	case "json", "JSON":
		return EncodingJSON, true
	case "url", "URL", "form":
		return EncodingURL, true
	default:
		return EncodingJSON, false
	}
}

// APIRequest describes one call through the client.
type APIRequest struct {
	URL        string
	Method     string
	Parameters map[string]any
	Headers    http.Header
	// Encoding overrides the configured per-method encoding when set.
	Encoding *Encoding
}

// Result carries the outcome of a callback style request: Value and Header
// on success, Err otherwise.
type Result[T any] struct {
	Value  T
	Header http.Header
	Err    error
}

// Middleware represents a middleware function
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option represents a configuration option
type Option func(*Client)
