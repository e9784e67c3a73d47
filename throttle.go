package netguard

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Fingerprint identifies a request for throttling: method, full URL and body
// text. A body that is not valid UTF-8 contributes nothing.
func Fingerprint(method, url string, body []byte) string {
	text := ""
	if len(body) > 0 && utf8.Valid(body) {
		text = string(body)
	}
	return method + url + text
}

// ThrottleGuard rejects repeats of the same request fingerprint sent within
// a minimum interval. The ledger grows for the lifetime of the guard.
type ThrottleGuard struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	lastSent map[string]time.Time
}

// NewThrottleGuard creates a guard. An interval <= 0 admits everything.
func NewThrottleGuard(interval time.Duration) *ThrottleGuard {
	return &ThrottleGuard{
		interval: interval,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Interval returns the configured minimum spacing.
func (g *ThrottleGuard) Interval() time.Duration {
	return g.interval
}

// ShouldAdmit reports whether a request with fingerprint fp may go out at now.
// It does not record anything.
func (g *ThrottleGuard) ShouldAdmit(fp string, now time.Time) bool {
	g.mu.RLock()
	last, seen := g.lastSent[fp]
	g.mu.RUnlock()
	return g.admits(last, seen, now)
}

// RecordSent stores now as the last send time for fp.
func (g *ThrottleGuard) RecordSent(fp string, now time.Time) {
	g.mu.Lock()
	g.lastSent[fp] = now
	g.mu.Unlock()
}

// Admit checks and records in one step. Of two concurrent calls with the same
// fingerprint inside the interval, at most one is admitted.
func (g *ThrottleGuard) Admit(fp string) bool {
	now := g.now()
	if !g.ShouldAdmit(fp, now) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	last, seen := g.lastSent[fp]
	if !g.admits(last, seen, now) {
		return false
	}
	g.lastSent[fp] = now
	return true
}

// Len returns the number of fingerprints in the ledger.
func (g *ThrottleGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.lastSent)
}

func (g *ThrottleGuard) admits(last time.Time, seen bool, now time.Time) bool {
	if !seen || g.interval <= 0 {
		return true
	}
	return now.Sub(last) >= g.interval
}
