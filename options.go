package netguard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidConfiguration wraps every configuration validation failure.
var ErrInvalidConfiguration = errors.New("configuration validation failed")

// WithConfiguration replaces the whole configuration. Options applied after
// it still override individual fields.
func WithConfiguration(config Configuration) Option {
	return func(c *Client) {
		c.config = config.clone()
	}
}

// WithRetryLimit sets the maximum number of retries
func WithRetryLimit(n int) Option {
	return func(c *Client) {
		c.config.RetryLimit = n
	}
}

// WithBackoff sets the exponential backoff base and scale
func WithBackoff(base float64, scale time.Duration) Option {
	return func(c *Client) {
		c.config.BackoffBase = base
		c.config.BackoffScale = scale
	}
}

// WithThrottleInterval sets the minimum spacing between identical requests.
// Zero disables throttling.
func WithThrottleInterval(d time.Duration) Option {
	return func(c *Client) {
		c.config.ThrottleInterval = d
	}
}

// WithLogging toggles request/response logging
func WithLogging(enabled bool) Option {
	return func(c *Client) {
		c.config.EnableLogging = enabled
	}
}

// WithLoggerConfig selects which parts of requests and responses are logged
func WithLoggerConfig(cfg LoggerConfig) Option {
	return func(c *Client) {
		c.config.Log = cfg
	}
}

// WithSSLPinning toggles trust evaluation and sets whether hosts without an
// evaluator are rejected.
func WithSSLPinning(enabled, allHostsMustBeEvaluated bool) Option {
	return func(c *Client) {
		c.config.EnableSSLPinning = enabled
		c.config.AllHostsMustBeEvaluated = allHostsMustBeEvaluated
	}
}

// WithPinnedDomain registers the trust evaluator for host
func WithPinnedDomain(host string, evaluator TrustEvaluator) Option {
	return func(c *Client) {
		if c.config.PinnedDomains == nil {
			c.config.PinnedDomains = map[string]TrustEvaluator{}
		}
		c.config.PinnedDomains[host] = evaluator
	}
}

// WithTokenStorageKey sets the key the bearer token is read from
func WithTokenStorageKey(key string) Option {
	return func(c *Client) {
		c.config.TokenStorageKey = key
	}
}

// WithTokenStore sets where persisted bearer tokens are read from
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokenStore = store
	}
}

// WithTokenValidator rejects requests whose resolved Authorization header
// fails validation, with BAD_TOKEN.
func WithTokenValidator(validator TokenValidator) Option {
	return func(c *Client) {
		c.tokenValidator = validator
	}
}

// WithDefaultEncoding sets the encoding for methods without an explicit mapping
func WithDefaultEncoding(enc Encoding) Option {
	return func(c *Client) {
		c.config.DefaultEncoding = enc
	}
}

// WithMethodEncoding maps an HTTP method to an encoding
func WithMethodEncoding(method string, enc Encoding) Option {
	return func(c *Client) {
		if c.config.MethodEncoding == nil {
			c.config.MethodEncoding = map[string]Encoding{}
		}
		c.config.MethodEncoding[strings.ToUpper(method)] = enc
	}
}

// WithTimeout sets the per-attempt request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.config.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client. Its Timeout is replaced by the
// configured one.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRetryPolicy replaces the exponential policy built from the configuration
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithStatusHandler sets the status rule table. Sharing one table between
// clients shares its rules.
func WithStatusHandler(handler *StatusHandler) Option {
	return func(c *Client) {
		c.statusHandler = handler
	}
}

// WithReachability sets the pre-flight connectivity check
func WithReachability(r Reachability) Option {
	return func(c *Client) {
		c.reachability = r
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger logs to stderr with a console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// WithClock sets the time source used for throttling and durations
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errs []string

	errs = append(errs, c.validateRetryConfig()...)
	errs = append(errs, c.validateThrottleConfig()...)
	errs = append(errs, c.validatePinningConfig()...)
	errs = append(errs, c.validateTokenConfig()...)
	errs = append(errs, c.validateEncodingConfig()...)
	errs = append(errs, c.validateMiddlewareConfig()...)
	errs = append(errs, c.validateHTTPClientConfig()...)
	errs = append(errs, c.validateExtremeValues()...)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

// validateRetryConfig validates retry-related configuration
func (c *Client) validateRetryConfig() []string {
	var errs []string

	if c.config.RetryLimit < 0 {
		errs = append(errs, "retryLimit must be non-negative")
	}
	if c.config.BackoffBase <= 0 {
		errs = append(errs, "backoffBase must be positive")
	}
	if c.config.BackoffScale < 0 {
		errs = append(errs, "backoffScale must be non-negative")
	}
	if c.config.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return errs
}

// validateThrottleConfig validates throttle configuration
func (c *Client) validateThrottleConfig() []string {
	if c.config.ThrottleInterval < 0 {
		return []string{"throttleInterval must be non-negative"}
	}
	return nil
}

// validatePinningConfig validates SSL pinning configuration
func (c *Client) validatePinningConfig() []string {
	var errs []string

	for host, evaluator := range c.config.PinnedDomains {
		if host == "" {
			errs = append(errs, "pinned domain cannot be empty")
		}
		if evaluator == nil {
			errs = append(errs, fmt.Sprintf("pinned domain %q has no evaluator", host))
		}
	}
	if c.config.EnableSSLPinning && len(c.config.PinnedDomains) == 0 {
		errs = append(errs, "SSL pinning is enabled but no domains are pinned")
	}

	return errs
}

// validateTokenConfig validates token lookup configuration
func (c *Client) validateTokenConfig() []string {
	if strings.TrimSpace(c.config.TokenStorageKey) == "" {
		return []string{"tokenStorageKey cannot be empty"}
	}
	return nil
}

// validateEncodingConfig validates parameter encodings
func (c *Client) validateEncodingConfig() []string {
	var errs []string

	if c.config.DefaultEncoding != EncodingJSON && c.config.DefaultEncoding != EncodingURL {
		errs = append(errs, "defaultEncoding is unknown")
	}
	for method, enc := range c.config.MethodEncoding {
		if enc != EncodingJSON && enc != EncodingURL {
			errs = append(errs, fmt.Sprintf("encoding for %s is unknown", method))
		}
	}

	return errs
}

// validateMiddlewareConfig validates middleware configuration
func (c *Client) validateMiddlewareConfig() []string {
	var errs []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errs = append(errs, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errs
}

// validateHTTPClientConfig validates HTTP client configuration
func (c *Client) validateHTTPClientConfig() []string {
	if c.httpClient == nil {
		return []string{"HTTP client cannot be nil"}
	}
	return nil
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errs []string

	if c.config.RetryLimit > 100 {
		errs = append(errs, "retryLimit > 100 may cause excessive resource usage")
	}
	if c.config.BackoffScale > 10*time.Minute {
		errs = append(errs, "backoffScale > 10m may cause excessive delays")
	}
	if c.config.Timeout > 30*time.Minute {
		errs = append(errs, "timeout > 30m may cause hanging requests")
	}

	return errs
}
