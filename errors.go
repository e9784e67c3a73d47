package netguard

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind is the closed set of semantic failures a request can end with.
type ErrorKind int

const (
	KindNoInternetConnection ErrorKind = iota + 1
	KindBadToken
	KindThrottled
	KindSSLPinningFailed
	KindGeneralNetwork
	KindUnauthenticated
	KindResourceNotFound
	KindServerOutage
	KindServerSide
	KindUnhandled
	KindDataParse
	KindTimeout
	KindAPI
)

var kindNames = map[ErrorKind]string{
	KindNoInternetConnection: "NO_INTERNET_CONNECTION",
	KindBadToken:             "BAD_TOKEN",
	KindThrottled:            "THROTTLED_ERROR",
	KindSSLPinningFailed:     "SSL_PINNING_FAILED",
	KindGeneralNetwork:       "GENERAL_NETWORK_ERROR",
	KindUnauthenticated:      "UNAUTHENTICATED",
	KindResourceNotFound:     "NETWORK_RESOURCE_NOT_FOUND",
	KindServerOutage:         "SERVER_OUTAGE",
	KindServerSide:           "SERVER_SIDE_ERROR",
	KindUnhandled:            "UNHANDLED_ERROR",
	KindDataParse:            "DATA_PARSE_ERROR",
	KindTimeout:              "TIMEOUT",
	KindAPI:                  "API_ERROR",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel errors, one per kind. errors.Is matches on kind alone when the
// target carries no payload.
var (
	ErrNoInternetConnection = &NetworkError{Kind: KindNoInternetConnection}
	ErrBadToken             = &NetworkError{Kind: KindBadToken}
	ErrThrottled            = &NetworkError{Kind: KindThrottled}
	ErrSSLPinningFailed     = &NetworkError{Kind: KindSSLPinningFailed}
	ErrGeneralNetwork       = &NetworkError{Kind: KindGeneralNetwork}
	ErrUnauthenticated      = &NetworkError{Kind: KindUnauthenticated}
	ErrResourceNotFound     = &NetworkError{Kind: KindResourceNotFound}
	ErrServerOutage         = &NetworkError{Kind: KindServerOutage}
	ErrServerSide           = &NetworkError{Kind: KindServerSide}
	ErrUnhandled            = &NetworkError{Kind: KindUnhandled}
	ErrDataParse            = &NetworkError{Kind: KindDataParse}
	ErrTimeout              = &NetworkError{Kind: KindTimeout}
	ErrAPI                  = &NetworkError{Kind: KindAPI}
)

// NetworkError is the single failure outcome of a request. Kind plus the
// payload fields (Reason, Code, Message) define its identity; the remaining
// fields are diagnostics.
type NetworkError struct {
	Kind ErrorKind
	// Reason is set for UNHANDLED_ERROR and THROTTLED_ERROR.
	Reason string
	// Code and Message are set for API_ERROR.
	Code    int
	Message string

	Method     string
	URL        string
	StatusCode int
	Attempt    int
	RequestID  string
	Cause      error
}

// Unhandled builds an UNHANDLED_ERROR with the given reason.
func Unhandled(reason string) *NetworkError {
	return &NetworkError{Kind: KindUnhandled, Reason: reason}
}

// Throttled builds a THROTTLED_ERROR with the given message.
func Throttled(message string) *NetworkError {
	return &NetworkError{Kind: KindThrottled, Reason: message}
}

// APIError builds an API_ERROR.
func APIError(code int, message string) *NetworkError {
	return &NetworkError{Kind: KindAPI, Code: code, Message: message}
}

func newNetworkError(kind ErrorKind) *NetworkError {
	return &NetworkError{Kind: kind}
}

// Description returns the user facing text for the error.
func (e *NetworkError) Description() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindBadToken:
		return "Invalid session token. Please log in again."
	case KindNoInternetConnection:
		return "No Internet Connection! Please check your network settings."
	case KindTimeout:
		return "The request timed out. Please try again."
	case KindResourceNotFound:
		return "The requested resource could not be found."
	case KindServerOutage:
		return "The server is experiencing an outage."
	case KindDataParse:
		return "Failed to parse the response data."
	case KindGeneralNetwork:
		return "A network error occurred. Please check your internet connection."
	case KindServerSide:
		return "An error occurred on the server side."
	case KindSSLPinningFailed:
		return "SSL Pinning failed. Please contact support."
	case KindUnhandled:
		return "Unhandled error: " + e.Reason
	case KindAPI:
		return fmt.Sprintf("API error (Code: %d): %s", e.Code, e.Message)
	case KindThrottled:
		return "Error: " + e.Reason
	case KindUnauthenticated:
		return "Your session has expired. Please log in."
	default:
		return "Unknown error."
	}
}

// Error implements error interface.
func (e *NetworkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Description())
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Equal reports whether both errors have the same kind and payload.
func (e *NetworkError) Equal(other *NetworkError) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Kind == other.Kind &&
		e.Reason == other.Reason &&
		e.Code == other.Code &&
		e.Message == other.Message
}

// Is compares kinds for errors.Is; a target with a payload must match it too.
func (e *NetworkError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*NetworkError)
	if !ok || t == nil {
		return false
	}
	if t.Reason == "" && t.Code == 0 && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Equal(t)
}

// KindOf extracts the ErrorKind from err, or 0 when err is not a NetworkError.
func KindOf(err error) ErrorKind {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Kind
	}
	return 0
}

// FailureKind classifies a transport level failure before it is mapped to
// an ErrorKind.
type FailureKind int

const (
	FailureNetwork FailureKind = iota
	FailureInvalidURL
	FailureParameterEncoding
	FailureMultipartEncoding
	FailureCancelled
	FailureValidation
	FailureSerialization
	FailureTrust
	FailureTimeout
)

var failureNames = map[FailureKind]string{
	FailureNetwork:           "network",
	FailureInvalidURL:        "invalid_url",
	FailureParameterEncoding: "parameter_encoding",
	FailureMultipartEncoding: "multipart_encoding",
	FailureCancelled:         "cancelled",
	FailureValidation:        "response_validation",
	FailureSerialization:     "response_serialization",
	FailureTrust:             "server_trust",
	FailureTimeout:           "timeout",
}

func (f FailureKind) String() string {
	if name, ok := failureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FailureKind(%d)", int(f))
}

// TransportError is a failure reported by the transport layer: building,
// sending, validating or deserializing a request.
type TransportError struct {
	Failure FailureKind
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport: " + e.Failure.String()
	}
	return fmt.Sprintf("transport: %s: %v", e.Failure, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NetworkError maps the transport failure onto the error taxonomy.
func (e *TransportError) NetworkError() *NetworkError {
	var out *NetworkError
	switch e.Failure {
	case FailureInvalidURL:
		out = Unhandled("The URL provided is invalid. Please contact support.")
	case FailureParameterEncoding:
		out = Unhandled("Failed to encode the request parameters. Please try again.")
	case FailureMultipartEncoding:
		out = Unhandled("There was an issue encoding the file. Please try again.")
	case FailureCancelled:
		out = Unhandled("The request was cancelled.")
	case FailureValidation:
		out = newNetworkError(KindDataParse)
	case FailureSerialization:
		out = Unhandled("Failed to process the server response. Please try again.")
	case FailureTrust:
		out = newNetworkError(KindSSLPinningFailed)
	case FailureTimeout:
		out = newNetworkError(KindTimeout)
	default:
		out = newNetworkError(KindGeneralNetwork)
	}
	out.Cause = e.Err
	return out
}

// asTransportError returns err as a *TransportError, classifying raw errors
// coming out of net/http on the way.
func asTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Failure: failureOf(err), Err: err}
}

func failureOf(err error) FailureKind {
	if isTrustFailure(err) {
		return FailureTrust
	}
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return FailureInvalidURL
	}
	return FailureNetwork
}

func isTrustFailure(err error) bool {
	var trustErr *TrustError
	if errors.As(err, &trustErr) {
		return true
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &invalidErr)
}
