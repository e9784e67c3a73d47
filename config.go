package netguard

import (
	"net/http"
	"strings"
	"time"
)

// DefaultTokenStorageKey is the store key holding the persisted bearer token.
const DefaultTokenStorageKey = "server_token_new"

// LoggerConfig selects which parts of a request/response are logged when
// logging is enabled.
type LoggerConfig struct {
	LogRequestHeaders  bool
	LogRequestBody     bool
	LogResponseHeaders bool
	LogResponseBody    bool
	LogStatusCode      bool
	LogCurl            bool
	LogRetries         bool
}

// DefaultLoggerConfig logs everything.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		LogRequestHeaders:  true,
		LogRequestBody:     true,
		LogResponseHeaders: true,
		LogResponseBody:    true,
		LogStatusCode:      true,
		LogCurl:            true,
		LogRetries:         true,
	}
}

// Configuration is the per-client network configuration. A Client copies it
// at construction; changing it means building a new Client.
type Configuration struct {
	RetryLimit   int
	BackoffBase  float64
	BackoffScale time.Duration

	// ThrottleInterval is the minimum spacing between two requests with the
	// same fingerprint. Zero disables throttling.
	ThrottleInterval time.Duration
	Timeout          time.Duration

	EnableLogging bool
	Log           LoggerConfig

	EnableSSLPinning bool
	// AllHostsMustBeEvaluated fails the handshake for hosts that have no
	// entry in PinnedDomains while pinning is enabled.
	AllHostsMustBeEvaluated bool
	PinnedDomains           map[string]TrustEvaluator

	TokenStorageKey string

	DefaultEncoding Encoding
	MethodEncoding  map[string]Encoding
}

// DefaultConfiguration returns the stock configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		RetryLimit:              3,
		BackoffBase:             2.0,
		BackoffScale:            1500 * time.Millisecond,
		ThrottleInterval:        500 * time.Millisecond,
		Timeout:                 30 * time.Second,
		EnableLogging:           true,
		Log:                     DefaultLoggerConfig(),
		EnableSSLPinning:        false,
		AllHostsMustBeEvaluated: true,
		PinnedDomains:           map[string]TrustEvaluator{},
		TokenStorageKey:         DefaultTokenStorageKey,
		DefaultEncoding:         EncodingJSON,
		MethodEncoding: map[string]Encoding{
			http.MethodGet:    EncodingJSON,
			http.MethodDelete: EncodingJSON,
			http.MethodPost:   EncodingJSON,
			http.MethodPut:    EncodingJSON,
		},
	}
}

// DetermineEncoding returns the encoding mapped to method, falling back to
// DefaultEncoding.
func (c Configuration) DetermineEncoding(method string) Encoding {
	if enc, ok := c.MethodEncoding[strings.ToUpper(method)]; ok {
		return enc
	}
	return c.DefaultEncoding
}

// pinningActive reports whether the transport must run trust evaluation.
func (c Configuration) pinningActive() bool {
	return c.EnableSSLPinning && len(c.PinnedDomains) > 0
}

func (c Configuration) clone() Configuration {
	out := c
	out.PinnedDomains = make(map[string]TrustEvaluator, len(c.PinnedDomains))
	for host, ev := range c.PinnedDomains {
		out.PinnedDomains[host] = ev
	}
	out.MethodEncoding = make(map[string]Encoding, len(c.MethodEncoding))
	for method, enc := range c.MethodEncoding {
		out.MethodEncoding[strings.ToUpper(method)] = enc
	}
	return out
}
