package netguard

import (
	"net/http"
	"testing"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in       string
		expected Encoding
		ok       bool
	}{
		{"json", EncodingJSON, true},
		{"JSON", EncodingJSON, true},
		{"url", EncodingURL, true},
		{"form", EncodingURL, true},
		{"xml", EncodingJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseEncoding(tt.in)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseEncoding(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestEncodingString(t *testing.T) {
	if EncodingJSON.String() != "json" || EncodingURL.String() != "url" || Encoding(5).String() != "unknown" {
		t.Error("Unexpected encoding names")
	}
}

func TestRoundTripperFunc(t *testing.T) {
	called := false
	var rt RoundTripper = RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, nil
	})
	_, _ = rt.RoundTrip(nil)
	if !called {
		t.Error("Expected function to be called")
	}
}
