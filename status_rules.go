package netguard

import (
	"strings"
	"sync"
)

const (
	// SSLPinFailureStatus is the synthetic status code rules see for a trust
	// evaluation failure.
	SSLPinFailureStatus = -1
	// SSLPinFailureURL is the pseudo URL rules see for a trust evaluation failure.
	SSLPinFailureURL = "SSL_PIN_FAILURE"
)

// StatusRule runs Handler for responses with StatusCode whose URL contains
// URLPattern.
type StatusRule struct {
	StatusCode int
	URLPattern string
	Handler    func(url string)
}

func (r StatusRule) matches(code int, url string) bool {
	return r.StatusCode == code && strings.Contains(url, r.URLPattern)
}

// StatusHandler is an ordered rule table; the first matching rule wins.
// It is safe for concurrent use.
type StatusHandler struct {
	mu     sync.RWMutex
	rules  []StatusRule
	logger Logger
}

// NewStatusHandler creates an empty table. logger may be nil.
func NewStatusHandler(logger Logger) *StatusHandler {
	return &StatusHandler{logger: loggerOrNop(logger)}
}

// AddRule appends rule to the table.
func (h *StatusHandler) AddRule(rule StatusRule) {
	h.mu.Lock()
	h.rules = append(h.rules, rule)
	h.mu.Unlock()
}

// Add is shorthand for AddRule.
func (h *StatusHandler) Add(statusCode int, urlPattern string, handler func(url string)) {
	h.AddRule(StatusRule{StatusCode: statusCode, URLPattern: urlPattern, Handler: handler})
}

// Process runs the first rule matching code and url. It reports whether a
// rule matched. The handler runs outside the lock and may add rules.
func (h *StatusHandler) Process(code int, url string) bool {
	h.mu.RLock()
	var (
		matched StatusRule
		found   bool
	)
	for _, rule := range h.rules {
		if rule.matches(code, url) {
			matched, found = rule, true
			break
		}
	}
	h.mu.RUnlock()

	if !found {
		h.logger.Info("No status rule matched", "statusCode", code, "url", url)
		return false
	}
	if matched.Handler != nil {
		matched.Handler(url)
	}
	return true
}

// Reset removes every rule.
func (h *StatusHandler) Reset() {
	h.mu.Lock()
	h.rules = nil
	h.mu.Unlock()
}

// Count returns the number of rules.
func (h *StatusHandler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}
