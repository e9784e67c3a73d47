package netguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client executes APIRequests through the throttle guard, the retry policy
// and the response classifier, on top of a standard net/http Client. It is
// safe for concurrent use.
type Client struct {
	config         Configuration
	httpClient     *http.Client
	middleware     []Middleware
	retryPolicy    RetryPolicy
	throttle       *ThrottleGuard
	resolver       *AuthorizationResolver
	tokenStore     TokenStore
	tokenValidator TokenValidator
	statusHandler  *StatusHandler
	classifier     *Classifier
	reachability   Reachability
	metrics        *MetricsCollector
	logger         Logger
	requestIDGen   func() string
	now            func() time.Time

	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		config:       DefaultConfiguration(),
		middleware:   []Middleware{},
		requestIDGen: uuid.NewString,
		now:          time.Now,
	}

	for _, option := range options {
		option(client)
	}

	client.config = client.config.clone()
	var setupErrs []string
	if err := client.wire(); err != nil {
		setupErrs = append(setupErrs, err.Error())
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	} else if len(setupErrs) > 0 {
		client.validationError = fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(setupErrs, "; "))
	}

	return client
}

// wire builds the collaborators that depend on the final configuration.
func (c *Client) wire() error {
	if c.logger == nil {
		c.logger = NopLogger()
	}
	if c.requestIDGen == nil {
		c.requestIDGen = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.retryPolicy == nil {
		c.retryPolicy = NewExponentialRetryPolicy(c.config.RetryLimit, c.config.BackoffBase, c.config.BackoffScale)
	}

	c.throttle = NewThrottleGuard(c.config.ThrottleInterval)
	c.throttle.now = c.now

	if c.tokenStore == nil {
		c.tokenStore = NewMemoryTokenStore()
	}
	c.resolver = NewAuthorizationResolver(c.tokenStore, c.config.TokenStorageKey)

	if c.statusHandler == nil {
		c.statusHandler = NewStatusHandler(c.logger)
	}
	c.classifier = NewClassifier(c.statusHandler, c.logger)
	c.classifier.ruleFired = c.metrics.RecordStatusRuleFired

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	hc := *c.httpClient
	hc.Timeout = c.config.Timeout
	c.httpClient = &hc

	if !c.config.pinningActive() {
		return nil
	}
	var base *http.Transport
	switch t := hc.Transport.(type) {
	case nil:
		base = http.DefaultTransport.(*http.Transport)
	case *http.Transport:
		base = t
	default:
		return fmt.Errorf("SSL pinning requires an *http.Transport, got %T", hc.Transport)
	}
	c.httpClient.Transport = newPinnedTransport(base, c.config.PinnedDomains, c.config.AllHostsMustBeEvaluated)
	return nil
}

// Configuration returns a copy of the client's configuration.
func (c *Client) Configuration() Configuration {
	return c.config.clone()
}

// StatusHandler returns the rule table consulted after every response.
func (c *Client) StatusHandler() *StatusHandler {
	return c.statusHandler
}

// ThrottleGuard returns the client's throttle guard.
func (c *Client) ThrottleGuard() *ThrottleGuard {
	return c.throttle
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// exchange is one logical request after transport and retries, before
// classification.
type exchange struct {
	requestID string
	method    string
	url       string
	endpoint  string
	start     time.Time
	attempts  int
	response  *http.Response
	body      []byte
	err       error
}

func (x *exchange) succeeded() bool {
	return x.err == nil && x.response != nil && isSuccessStatus(x.response.StatusCode)
}

func (x *exchange) statusCode() int {
	if x.response == nil {
		return 0
	}
	return x.response.StatusCode
}

// payload is an encoded request body.
type payload struct {
	url         string
	data        []byte
	contentType string
	progress    ProgressFunc
	// unkeyed bodies are left out of the throttle fingerprint. Multipart
	// bodies carry a random boundary, so uploads key on method and URL.
	unkeyed bool
}

func (p *payload) fingerprintBody() []byte {
	if p.unkeyed {
		return nil
	}
	return p.data
}

// perform runs the request up to the point of classification. A non-nil
// *NetworkError means the request never produced an exchange.
func (c *Client) perform(ctx context.Context, r APIRequest, encode func(method string) (*payload, error)) (*exchange, *NetworkError) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	x := &exchange{
		requestID: c.requestIDGen(),
		method:    method,
		url:       r.URL,
		endpoint:  endpointOf(r.URL),
		start:     c.now(),
	}

	headers := c.resolver.Resolve(r.Headers)
	if c.tokenValidator != nil {
		auth, _ := headerValue(headers, authorizationHeader)
		if !c.tokenValidator(auth) {
			return nil, c.fail(x, newNetworkError(KindBadToken))
		}
	}

	if c.reachability != nil && !c.reachability.Reachable() {
		return nil, c.fail(x, newNetworkError(KindNoInternetConnection))
	}

	body, err := encode(method)
	if err != nil {
		return nil, c.fail(x, asNetworkError(err))
	}
	x.url = body.url
	x.endpoint = endpointOf(body.url)

	if c.throttle.Interval() > 0 {
		admitted := c.throttle.Admit(Fingerprint(method, body.url, body.fingerprintBody()))
		c.metrics.RecordThrottleLedgerSize(c.throttle.Len())
		if !admitted {
			c.metrics.RecordThrottled(method, x.endpoint)
			c.logger.Warn("Request throttled", "requestID", x.requestID, "method", method, "url", body.url)
			return nil, c.fail(x, Throttled("Request throttled"))
		}
	}

	c.metrics.RecordRequestStart(method, x.endpoint)
	defer c.metrics.RecordRequestEnd(method, x.endpoint)

	for attempt := 0; ; attempt++ {
		x.attempts = attempt + 1
		req, err := c.newHTTPRequest(ctx, method, headers, body)
		if err != nil {
			return nil, c.fail(x, asNetworkError(err))
		}
		if attempt == 0 {
			c.logRequest(x.requestID, req, body.data)
		}

		resp, err := c.executeMiddleware(req)
		x.response, x.body, x.err = nil, nil, nil
		if err != nil {
			x.err = asTransportError(err)
		} else {
			x.response = resp
			x.body, err = io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				x.err = asTransportError(err)
			} else if !isSuccessStatus(resp.StatusCode) {
				x.err = &TransportError{
					Failure: FailureValidation,
					Err:     fmt.Errorf("response status code was unacceptable: %d", resp.StatusCode),
				}
			}
			c.logResponse(x.requestID, resp, x.body)
		}

		if x.err == nil {
			return x, nil
		}
		if ctx.Err() != nil {
			return nil, c.fail(x, asNetworkError(ctx.Err()))
		}
		if isTrustFailure(x.err) {
			return x, nil
		}

		delay, retry := c.retryPolicy.ShouldRetry(attempt, x.err)
		if !retry {
			return x, nil
		}
		if c.config.Log.LogRetries {
			c.logger.Info("Scheduling retry", "requestID", x.requestID, "attempt", attempt+1, "backoff", delay, "error", x.err.Error())
		}
		c.metrics.RecordRetry(method, x.endpoint, attempt+1)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, c.fail(x, asNetworkError(err))
		}
	}
}

// finish classifies the exchange. decodeErr is a failure to deserialize a
// successful response into the caller's type.
func (c *Client) finish(x *exchange, decodeErr error) error {
	outcome := Outcome{URL: x.url, Response: x.response, Body: x.body, Err: x.err}
	if outcome.Err == nil && decodeErr != nil {
		outcome.Err = &TransportError{Failure: FailureSerialization, Err: decodeErr}
	}

	netErr := c.classifier.Classify(outcome)
	duration := c.now().Sub(x.start)
	c.metrics.RecordRequest(x.method, x.endpoint, x.statusCode(), duration)
	if netErr == nil {
		c.logger.Debug("Request completed", "requestID", x.requestID, "statusCode", x.statusCode(), "attempts", x.attempts, "duration", duration)
		return nil
	}
	return c.fail(x, netErr)
}

// fail decorates, records and logs a terminal error.
func (c *Client) fail(x *exchange, e *NetworkError) *NetworkError {
	e.Method = x.method
	e.RequestID = x.requestID
	e.Attempt = x.attempts
	if e.URL == "" {
		e.URL = x.url
	}
	c.metrics.RecordError(e.Kind, x.method, x.endpoint)
	c.logger.Error("Request failed", "requestID", x.requestID, "method", x.method, "url", e.URL,
		"kind", e.Kind.String(), "statusCode", e.StatusCode, "attempts", x.attempts, "error", e.Description())
	return e
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, headers http.Header, body *payload) (*http.Request, error) {
	var reader io.Reader
	if body.data != nil {
		reader = newProgressReader(body.data, body.progress)
	}
	req, err := http.NewRequestWithContext(ctx, method, body.url, reader)
	if err != nil {
		return nil, &TransportError{Failure: FailureInvalidURL, Err: err}
	}
	if body.data != nil {
		data := body.data
		req.ContentLength = int64(len(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent())
	}
	if body.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	return req, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// asNetworkError maps any pre-flight or transport error onto the taxonomy.
func asNetworkError(err error) *NetworkError {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr
	}
	return asTransportError(err).NetworkError()
}

func endpointOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	if !strings.Contains(rest, "/") {
		rest += "/"
	}
	return rest
}
