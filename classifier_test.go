package netguard

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

const classifierTestURL = "https://api.example.com/v1/items"

func outcome(status int, body string) Outcome {
	return Outcome{
		URL:      classifierTestURL,
		Response: &http.Response{StatusCode: status, Header: http.Header{}},
		Body:     []byte(body),
	}
}

func TestClassifyByStatus(t *testing.T) {
	envelope := `{"errors":{"code":400,"message":"Invalid request"}}`
	listEnvelope := `{"errors":[{"code":"1001","message":"Array Error Occurred"}]}`

	tests := []struct {
		name     string
		outcome  Outcome
		expected *NetworkError
	}{
		{"400 envelope", outcome(400, envelope), Unhandled("Invalid request")},
		{"400 list envelope", outcome(400, listEnvelope), Unhandled("Array Error Occurred")},
		{"400 no envelope", outcome(400, "bad"), ErrDataParse},
		{"500 envelope", outcome(500, envelope), Unhandled("Invalid request")},
		{"500 undecodable", outcome(500, "<html>"), ErrServerSide},
		{"500 empty object", outcome(500, "{}"), Unhandled(FallbackErrorMessage)},
		{"401", outcome(401, envelope), ErrUnauthenticated},
		{"403", outcome(403, ""), ErrUnauthenticated},
		{"404 with envelope", outcome(404, envelope), ErrResourceNotFound},
		{"404 empty", outcome(404, ""), ErrResourceNotFound},
		{"426", outcome(426, ""), Unhandled("App update required")},
		{"503", outcome(503, envelope), ErrServerOutage},
		{"502", outcome(502, envelope), ErrServerSide},
		{"599", outcome(599, ""), ErrServerSide},
		{"422 envelope", outcome(422, listEnvelope), Unhandled("Array Error Occurred")},
		{"422 plain", outcome(422, "nope"), ErrDataParse},
		{"302 plain", outcome(302, ""), ErrDataParse},
	}

	classifier := NewClassifier(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.outcome)
			if got == nil {
				t.Fatalf("Expected %v, got nil", tt.expected)
			}
			if !errors.Is(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClassifySuccess(t *testing.T) {
	classifier := NewClassifier(nil, nil)
	for _, status := range []int{200, 201, 204, 299} {
		if got := classifier.Classify(outcome(status, `{"ok":true}`)); got != nil {
			t.Errorf("status %d: expected success, got %v", status, got)
		}
	}
}

func TestClassifySuccessWithSerializationFailure(t *testing.T) {
	classifier := NewClassifier(nil, nil)

	o := outcome(200, "not json")
	o.Err = &TransportError{Failure: FailureSerialization, Err: errors.New("invalid character")}
	got := classifier.Classify(o)
	expected := Unhandled("Failed to process the server response. Please try again.")
	if !got.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	o = outcome(200, `{"errors":{"code":1,"message":"soft failure"}}`)
	o.Err = &TransportError{Failure: FailureSerialization}
	if got := classifier.Classify(o); !got.Equal(Unhandled("soft failure")) {
		t.Errorf("Expected envelope message, got %v", got)
	}
}

func TestClassifyTransportFailures(t *testing.T) {
	classifier := NewClassifier(nil, nil)

	tests := []struct {
		name     string
		outcome  Outcome
		expected *NetworkError
	}{
		{"no response", Outcome{URL: classifierTestURL, Err: errors.New("connection refused")}, ErrGeneralNetwork},
		{"timeout without status", Outcome{URL: classifierTestURL, Err: context.DeadlineExceeded}, ErrGeneralNetwork},
		{"status zero", outcome(0, ""), ErrGeneralNetwork},
		{"trust failure", Outcome{URL: classifierTestURL, Err: fmt.Errorf("tls: %w", x509.UnknownAuthorityError{})}, ErrSSLPinningFailed},
		{"pin mismatch", Outcome{URL: classifierTestURL, Err: &TrustError{Host: "api.example.com", Err: ErrPinMismatch}}, ErrSSLPinningFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.outcome); !errors.Is(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClassifyTimeoutWithStatus(t *testing.T) {
	o := outcome(408, "")
	o.Err = &TransportError{Failure: FailureTimeout, Err: context.DeadlineExceeded}
	if got := NewClassifier(nil, nil).Classify(o); !errors.Is(got, ErrTimeout) {
		t.Errorf("Expected TIMEOUT, got %v", got)
	}
}

func TestClassifyRunsStatusRules(t *testing.T) {
	rules := NewStatusHandler(nil)
	var seen []string
	rules.Add(404, "/items", func(url string) { seen = append(seen, "404:"+url) })
	rules.Add(200, "/items", func(url string) { seen = append(seen, "200") })
	rules.Add(SSLPinFailureStatus, SSLPinFailureURL, func(url string) { seen = append(seen, url) })
	classifier := NewClassifier(rules, nil)

	classifier.Classify(outcome(404, ""))
	classifier.Classify(outcome(200, "{}"))
	classifier.Classify(Outcome{URL: classifierTestURL, Err: &TrustError{Host: "h", Err: ErrNoEvaluator}})
	classifier.Classify(Outcome{URL: classifierTestURL, Err: errors.New("offline")})

	expected := []string{"404:" + classifierTestURL, "200", SSLPinFailureURL}
	if len(seen) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("rule %d: expected %q, got %q", i, expected[i], seen[i])
		}
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	classifier := NewClassifier(nil, nil)
	outcomes := []Outcome{
		outcome(500, `{"errors":[{"code":"1","message":"m"}]}`),
		outcome(500, "x"),
		outcome(404, ""),
		outcome(418, ""),
	}
	for _, o := range outcomes {
		first := classifier.Classify(o)
		second := classifier.Classify(o)
		if !first.Equal(second) {
			t.Errorf("status %d: %v != %v", o.Response.StatusCode, first, second)
		}
	}
}

func TestClassifyAnnotates(t *testing.T) {
	got := NewClassifier(nil, nil).Classify(outcome(503, ""))
	if got.StatusCode != 503 {
		t.Errorf("Expected StatusCode 503, got %d", got.StatusCode)
	}
	if got.URL != classifierTestURL {
		t.Errorf("Expected URL %q, got %q", classifierTestURL, got.URL)
	}
}
