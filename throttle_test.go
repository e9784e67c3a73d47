package netguard

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const throttleTestURL = "https://api.example.com/items"

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		url      string
		body     []byte
		expected string
	}{
		{"no body", "GET", throttleTestURL, nil, "GET" + throttleTestURL},
		{"json body", "POST", throttleTestURL, []byte(`{"a":1}`), "POST" + throttleTestURL + `{"a":1}`},
		{"invalid utf8", "POST", throttleTestURL, []byte{0xff, 0xfe}, "POST" + throttleTestURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.method, tt.url, tt.body); got != tt.expected {
				t.Errorf("Fingerprint() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestThrottleGuardWindow(t *testing.T) {
	guard := NewThrottleGuard(500 * time.Millisecond)
	fp := Fingerprint("GET", throttleTestURL, nil)
	base := time.Unix(1700000000, 0)

	if !guard.ShouldAdmit(fp, base) {
		t.Fatal("First request should be admitted")
	}
	guard.RecordSent(fp, base)

	if guard.ShouldAdmit(fp, base.Add(100*time.Millisecond)) {
		t.Error("Request inside the interval should be denied")
	}
	if !guard.ShouldAdmit(fp, base.Add(500*time.Millisecond)) {
		t.Error("Request exactly at the interval should be admitted")
	}
	if !guard.ShouldAdmit(Fingerprint("POST", throttleTestURL, nil), base) {
		t.Error("Different fingerprint should be admitted")
	}
}

func TestThrottleGuardDenialDoesNotRecord(t *testing.T) {
	current := time.Unix(1700000000, 0)
	guard := NewThrottleGuard(time.Second)
	guard.now = func() time.Time { return current }

	if !guard.Admit("k") {
		t.Fatal("First admit should pass")
	}
	current = current.Add(600 * time.Millisecond)
	if guard.Admit("k") {
		t.Fatal("Second admit inside window should be denied")
	}
	// Measured from the first send, not the denied one.
	current = current.Add(400 * time.Millisecond)
	if !guard.Admit("k") {
		t.Error("Admit one interval after the first send should pass")
	}
}

func TestThrottleGuardDisabled(t *testing.T) {
	guard := NewThrottleGuard(0)
	for i := 0; i < 3; i++ {
		if !guard.Admit("same") {
			t.Fatalf("call %d: zero interval should admit everything", i)
		}
	}
}

func TestThrottleGuardConcurrentAdmit(t *testing.T) {
	guard := NewThrottleGuard(time.Hour)
	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.Admit("dup") {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Errorf("Expected exactly 1 admitted request, got %d", admitted)
	}
	if guard.Len() != 1 {
		t.Errorf("Expected ledger size 1, got %d", guard.Len())
	}
}

func BenchmarkThrottleGuardAdmit(b *testing.B) {
	guard := NewThrottleGuard(time.Nanosecond)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		guard.Admit("bench")
	}
}
