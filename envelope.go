package netguard

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// FallbackErrorMessage is the reason reported when an error envelope carries
// no usable message.
const FallbackErrorMessage = "oops_text"

var (
	errEmptyBody     = errors.New("envelope: empty body")
	errInvalidJSON   = errors.New("envelope: body is not valid JSON")
	errNotJSONObject = errors.New("envelope: body is not a JSON object")
)

// ErrorsShape tags which form the "errors" member of an envelope took.
type ErrorsShape int

const (
	ErrorsNone ErrorsShape = iota
	ErrorsSingle
	ErrorsList
)

func (s ErrorsShape) String() string {
	switch s {
	case ErrorsSingle:
		return "single"
	case ErrorsList:
		return "list"
	default:
		return "none"
	}
}

// ErrorDetail is the single-object form: {"code": 400, "message": "..."}.
type ErrorDetail struct {
	Code    *int    `json:"code,omitempty"`
	Message *string `json:"message,omitempty"`
}

// ErrorItem is one element of the array form.
type ErrorItem struct {
	Code             *string `json:"code,omitempty"`
	CorrelationID    *string `json:"correlationId,omitempty"`
	DeveloperMessage *string `json:"developerMessage,omitempty"`
	Message          *string `json:"message,omitempty"`
}

// ErrorsContainer holds exactly one of the three shapes.
type ErrorsContainer struct {
	Shape  ErrorsShape
	Single *ErrorDetail
	List   []ErrorItem
}

// ErrorEnvelope is the decoded top level error payload of a failed response.
type ErrorEnvelope struct {
	Errors ErrorsContainer
}

// DecodeErrorEnvelope parses body as an error envelope. Any JSON object is an
// envelope; the errors member is tried as a single object, then as an array,
// and is otherwise treated as absent. A non-nil error means no envelope.
func DecodeErrorEnvelope(body []byte) (*ErrorEnvelope, error) {
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}
	if !gjson.ParseBytes(body).IsObject() {
		return nil, errNotJSONObject
	}

	env := &ErrorEnvelope{}
	member := gjson.GetBytes(body, "errors")
	if !member.Exists() {
		return env, nil
	}

	raw := []byte(member.Raw)
	switch {
	case member.IsObject():
		var single ErrorDetail
		if err := json.Unmarshal(raw, &single); err == nil {
			env.Errors = ErrorsContainer{Shape: ErrorsSingle, Single: &single}
		}
	case member.IsArray():
		var list []ErrorItem
		if err := json.Unmarshal(raw, &list); err == nil {
			env.Errors = ErrorsContainer{Shape: ErrorsList, List: list}
		}
	}
	return env, nil
}

// Message extracts the user facing reason. The list form picks the first
// item carrying both a code and a message.
func (e *ErrorEnvelope) Message() string {
	if e == nil {
		return FallbackErrorMessage
	}
	switch e.Errors.Shape {
	case ErrorsSingle:
		if e.Errors.Single != nil && e.Errors.Single.Message != nil {
			return *e.Errors.Single.Message
		}
	case ErrorsList:
		for _, item := range e.Errors.List {
			if item.Code != nil && item.Message != nil {
				return *item.Message
			}
		}
	}
	return FallbackErrorMessage
}

// NetworkError classifies the envelope. A decoded envelope is always
// UNHANDLED_ERROR carrying its message.
func (e *ErrorEnvelope) NetworkError() *NetworkError {
	return Unhandled(e.Message())
}

// MarshalJSON writes the envelope back in whichever shape it was decoded from.
func (e ErrorEnvelope) MarshalJSON() ([]byte, error) {
	var errorsValue any
	switch e.Errors.Shape {
	case ErrorsSingle:
		errorsValue = e.Errors.Single
	case ErrorsList:
		errorsValue = e.Errors.List
	case ErrorsNone:
		errorsValue = nil
	default:
		return nil, fmt.Errorf("envelope: unknown shape %d", e.Errors.Shape)
	}
	return json.Marshal(struct {
		Errors any `json:"errors"`
	}{Errors: errorsValue})
}
