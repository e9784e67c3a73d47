package netguard

import (
	"net/http"
)

// Outcome is what the transport produced for one logical request, after
// retries. Err is a transport failure or nil; Body is the raw response body.
type Outcome struct {
	URL      string
	Response *http.Response
	Body     []byte
	Err      error
}

func (o Outcome) statusCode() (int, bool) {
	if o.Response == nil {
		return 0, false
	}
	return o.Response.StatusCode, true
}

// Classifier maps an Outcome onto the error taxonomy and feeds the status
// rule table along the way.
type Classifier struct {
	rules     *StatusHandler
	logger    Logger
	ruleFired func(code int)
}

// NewClassifier creates a classifier. rules and logger may be nil.
func NewClassifier(rules *StatusHandler, logger Logger) *Classifier {
	return &Classifier{rules: rules, logger: loggerOrNop(logger)}
}

// Classify returns nil for a successful outcome and the semantic failure
// otherwise. Status rules run before it returns.
func (c *Classifier) Classify(o Outcome) *NetworkError {
	if o.Err != nil && isTrustFailure(o.Err) {
		c.processRules(SSLPinFailureStatus, SSLPinFailureURL)
		return c.annotate(newNetworkError(KindSSLPinningFailed), o)
	}

	code, ok := o.statusCode()
	if !ok || code == 0 {
		return c.annotate(newNetworkError(KindGeneralNetwork), o)
	}

	c.processRules(code, o.URL)

	failure := o.Err
	if failure == nil && !isSuccessStatus(code) {
		failure = &TransportError{Failure: FailureValidation}
	}
	if failure == nil {
		return nil
	}

	var out *NetworkError
	switch {
	case code == http.StatusBadRequest || code == http.StatusInternalServerError:
		if env := c.decodeEnvelope(o.Body); env != nil {
			out = env.NetworkError()
		} else if code == http.StatusInternalServerError {
			out = newNetworkError(KindServerSide)
		} else {
			out = mapTransportError(failure)
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		out = newNetworkError(KindUnauthenticated)
	case code == http.StatusNotFound:
		out = newNetworkError(KindResourceNotFound)
	case code == http.StatusUpgradeRequired:
		out = Unhandled("App update required")
	case code == http.StatusServiceUnavailable:
		out = newNetworkError(KindServerOutage)
	case code >= 500 && code < 600:
		out = newNetworkError(KindServerSide)
	default:
		if env := c.decodeEnvelope(o.Body); env != nil {
			out = env.NetworkError()
		} else {
			out = mapTransportError(failure)
		}
	}
	return c.annotate(out, o)
}

func (c *Classifier) processRules(code int, url string) {
	if c.rules == nil {
		return
	}
	if c.rules.Process(code, url) && c.ruleFired != nil {
		c.ruleFired(code)
	}
}

func (c *Classifier) decodeEnvelope(body []byte) *ErrorEnvelope {
	env, err := DecodeErrorEnvelope(body)
	if err != nil {
		c.logger.Debug("Error envelope unavailable", "error", err.Error(), "bodySize", len(body))
		return nil
	}
	return env
}

func (c *Classifier) annotate(e *NetworkError, o Outcome) *NetworkError {
	e.URL = o.URL
	if code, ok := o.statusCode(); ok {
		e.StatusCode = code
	}
	if e.Cause == nil {
		e.Cause = o.Err
	}
	return e
}

func mapTransportError(err error) *NetworkError {
	te := asTransportError(err)
	if te == nil {
		return newNetworkError(KindGeneralNetwork)
	}
	return te.NetworkError()
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
