package netguard

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

const errMsgValidConfig = "Expected valid configuration, got %v"

func TestOptionsApplyToConfiguration(t *testing.T) {
	client := New(
		WithRetryLimit(5),
		WithBackoff(3.0, 2*time.Second),
		WithThrottleInterval(time.Second),
		WithLogging(false),
		WithLoggerConfig(LoggerConfig{LogCurl: true}),
		WithTokenStorageKey("session"),
		WithDefaultEncoding(EncodingURL),
		WithMethodEncoding("patch", EncodingJSON),
		WithTimeout(10*time.Second),
	)
	if !client.IsValid() {
		t.Fatalf(errMsgValidConfig, client.ValidationError())
	}

	cfg := client.Configuration()
	if cfg.RetryLimit != 5 || cfg.BackoffBase != 3.0 || cfg.BackoffScale != 2*time.Second {
		t.Errorf("Unexpected retry configuration: %+v", cfg)
	}
	if cfg.ThrottleInterval != time.Second || client.ThrottleGuard().Interval() != time.Second {
		t.Errorf("Expected 1s throttle interval, got %v", cfg.ThrottleInterval)
	}
	if cfg.EnableLogging || !cfg.Log.LogCurl || cfg.Log.LogRequestBody {
		t.Errorf("Unexpected logging configuration: %+v", cfg.Log)
	}
	if cfg.TokenStorageKey != "session" {
		t.Errorf("Expected token key session, got %q", cfg.TokenStorageKey)
	}
	if cfg.DetermineEncoding("PATCH") != EncodingJSON || cfg.DetermineEncoding("OPTIONS") != EncodingURL {
		t.Error("Unexpected encoding mapping")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", client.httpClient.Timeout)
	}
}

func TestWithConfigurationThenOverride(t *testing.T) {
	base := DefaultConfiguration()
	base.RetryLimit = 1
	client := New(WithConfiguration(base), WithRetryLimit(2))

	if got := client.Configuration().RetryLimit; got != 2 {
		t.Errorf("Expected later option to win, got %d", got)
	}
	policy, ok := client.retryPolicy.(*ExponentialRetryPolicy)
	if !ok || policy.Limit() != 2 {
		t.Errorf("Expected retry policy limit 2, got %v", client.retryPolicy)
	}
}

func TestWithHTTPClientKeepsCallerCopy(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	client := New(WithHTTPClient(custom), WithTimeout(5*time.Second))

	if custom.Timeout != time.Minute {
		t.Error("Caller's http.Client must not be mutated")
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", client.httpClient.Timeout)
	}
}

func TestCustomCollaborators(t *testing.T) {
	handler := NewStatusHandler(nil)
	store := NewMemoryTokenStore()
	client := New(
		WithStatusHandler(handler),
		WithTokenStore(store),
		WithRetryPolicy(NoRetryPolicy{}),
		WithRequestIDGenerator(func() string { return "fixed" }),
	)

	if client.StatusHandler() != handler {
		t.Error("Expected custom status handler")
	}
	if client.tokenStore != store {
		t.Error("Expected custom token store")
	}
	if _, ok := client.retryPolicy.(NoRetryPolicy); !ok {
		t.Errorf("Expected NoRetryPolicy, got %T", client.retryPolicy)
	}
	if client.requestIDGen() != "fixed" {
		t.Error("Expected custom request ID generator")
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		errText string
	}{
		{"negative retry limit", []Option{WithRetryLimit(-1)}, "retryLimit must be non-negative"},
		{"zero backoff base", []Option{WithBackoff(0, time.Second)}, "backoffBase must be positive"},
		{"negative backoff scale", []Option{WithBackoff(2, -time.Second)}, "backoffScale must be non-negative"},
		{"zero timeout", []Option{WithTimeout(0)}, "timeout must be positive"},
		{"negative throttle", []Option{WithThrottleInterval(-time.Second)}, "throttleInterval must be non-negative"},
		{"pinning without domains", []Option{WithSSLPinning(true, true)}, "no domains are pinned"},
		{"pinned domain without evaluator", []Option{WithPinnedDomain("api.example.com", nil)}, "has no evaluator"},
		{"empty token key", []Option{WithTokenStorageKey(" ")}, "tokenStorageKey cannot be empty"},
		{"unknown encoding", []Option{WithDefaultEncoding(Encoding(9))}, "defaultEncoding is unknown"},
		{"nil middleware", []Option{WithMiddleware(nil)}, "middleware[0] cannot be nil"},
		{"extreme retry limit", []Option{WithRetryLimit(101)}, "retryLimit > 100"},
		{"extreme timeout", []Option{WithTimeout(time.Hour)}, "timeout > 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.options...)
			err := client.ValidationError()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %q", tt.errText, err.Error())
			}
			if client.IsValid() {
				t.Error("IsValid() should be false")
			}
		})
	}
}

type wrappedTransport struct{ http.RoundTripper }

func TestPinningRequiresHTTPTransport(t *testing.T) {
	client := New(
		WithHTTPClient(&http.Client{Transport: wrappedTransport{http.DefaultTransport}}),
		WithSSLPinning(true, false),
		WithPinnedDomain("api.example.com", DefaultEvaluation{}),
	)
	err := client.ValidationError()
	if err == nil || !strings.Contains(err.Error(), "requires an *http.Transport") {
		t.Errorf("Expected transport error, got %v", err)
	}
}

func TestPinningInstallsTransport(t *testing.T) {
	client := New(WithSSLPinning(true, false), WithPinnedDomain("api.example.com", DefaultEvaluation{}))
	if !client.IsValid() {
		t.Fatalf(errMsgValidConfig, client.ValidationError())
	}
	transport, ok := client.httpClient.Transport.(*http.Transport)
	if !ok || transport.DialTLSContext == nil {
		t.Error("Expected pinned transport with a TLS dialer")
	}
	if http.DefaultTransport.(*http.Transport).DialTLSContext != nil {
		t.Error("Default transport must not be modified")
	}
}
