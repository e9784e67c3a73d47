package netguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

var errEmptyResponse = errors.New("response body was empty")

// Request sends r and decodes a successful JSON response into T. It returns
// the response headers alongside the value. Failures are *NetworkError.
func Request[T any](ctx context.Context, c *Client, r APIRequest) (T, http.Header, error) {
	var zero T
	x, netErr := c.perform(ctx, r, c.encodeRequest(r))
	if netErr != nil {
		return zero, nil, netErr
	}
	value, decodeErr := decodeInto[T](x, false)
	if err := c.finish(x, decodeErr); err != nil {
		return zero, nil, err
	}
	return value, x.response.Header, nil
}

// Upload sends parts as multipart/form-data along with r.Parameters and
// decodes a successful JSON response into T. progress may be nil.
func Upload[T any](ctx context.Context, c *Client, r APIRequest, parts []UploadPart, progress ProgressFunc) (T, http.Header, error) {
	var zero T
	if len(parts) == 0 {
		return zero, nil, c.reject(r, Unhandled(noFileDataReason))
	}
	x, netErr := c.perform(ctx, r, c.encodeUpload(r, parts, progress))
	if netErr != nil {
		return zero, nil, netErr
	}
	value, decodeErr := decodeInto[T](x, false)
	if err := c.finish(x, decodeErr); err != nil {
		return zero, nil, err
	}
	return value, x.response.Header, nil
}

// RequestCallback runs Request in its own goroutine and delivers the outcome
// to completion exactly once. Nothing is delivered if ctx is cancelled first.
func RequestCallback[T any](ctx context.Context, c *Client, r APIRequest, completion func(Result[T])) {
	go func() {
		value, header, err := Request[T](ctx, c, r)
		deliver(ctx, completion, value, header, err)
	}()
}

// UploadCallback is the callback form of Upload.
func UploadCallback[T any](ctx context.Context, c *Client, r APIRequest, parts []UploadPart, progress ProgressFunc, completion func(Result[T])) {
	go func() {
		value, header, err := Upload[T](ctx, c, r, parts, progress)
		deliver(ctx, completion, value, header, err)
	}()
}

func deliver[T any](ctx context.Context, completion func(Result[T]), value T, header http.Header, err error) {
	if ctx.Err() != nil || completion == nil {
		return
	}
	completion(Result[T]{Value: value, Header: header, Err: err})
}

// Raw sends r and returns the undecoded response body.
func (c *Client) Raw(ctx context.Context, r APIRequest) ([]byte, http.Header, error) {
	x, netErr := c.perform(ctx, r, c.encodeRequest(r))
	if netErr != nil {
		return nil, nil, netErr
	}
	body, decodeErr := decodeInto[[]byte](x, true)
	if err := c.finish(x, decodeErr); err != nil {
		return nil, nil, err
	}
	return body, x.response.Header, nil
}

// DoJSON sends r and unmarshals a successful response into out, which must
// be a non-nil pointer.
func (c *Client) DoJSON(ctx context.Context, r APIRequest, out any) (http.Header, error) {
	if rv := reflect.ValueOf(out); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, c.reject(r, Unhandled("Response target must be a non-nil pointer."))
	}
	x, netErr := c.perform(ctx, r, c.encodeRequest(r))
	if netErr != nil {
		return nil, netErr
	}
	var decodeErr error
	if x.succeeded() {
		decodeErr = decodeBody(x, out, false)
	}
	if err := c.finish(x, decodeErr); err != nil {
		return nil, err
	}
	return x.response.Header, nil
}

// reject fails a request that never reached the pipeline.
func (c *Client) reject(r APIRequest, e *NetworkError) error {
	x := &exchange{
		requestID: c.requestIDGen(),
		method:    strings.ToUpper(r.Method),
		url:       r.URL,
		endpoint:  endpointOf(r.URL),
		start:     c.now(),
	}
	return c.fail(x, e)
}

func decodeInto[T any](x *exchange, allowEmpty bool) (T, error) {
	var value T
	if !x.succeeded() {
		return value, nil
	}
	err := decodeBody(x, &value, allowEmpty)
	return value, err
}

func decodeBody(x *exchange, out any, allowEmpty bool) error {
	if len(bytes.TrimSpace(x.body)) == 0 {
		if allowEmpty || emptyResponseAllowed(x.method, x.statusCode()) {
			return nil
		}
		return errEmptyResponse
	}
	switch p := out.(type) {
	case *[]byte:
		*p = x.body
		return nil
	case *string:
		*p = string(x.body)
		return nil
	case *json.RawMessage:
		*p = append((*p)[:0], x.body...)
		return nil
	}
	return json.Unmarshal(x.body, out)
}

func emptyResponseAllowed(method string, status int) bool {
	return method == http.MethodHead || status == http.StatusNoContent || status == http.StatusResetContent
}

func (c *Client) encodeRequest(r APIRequest) func(method string) (*payload, error) {
	return func(method string) (*payload, error) {
		enc := c.config.DetermineEncoding(method)
		if r.Encoding != nil {
			enc = *r.Encoding
		}
		return encodeParameters(method, r.URL, r.Parameters, enc)
	}
}

func (c *Client) encodeUpload(r APIRequest, parts []UploadPart, progress ProgressFunc) func(method string) (*payload, error) {
	return func(string) (*payload, error) {
		if _, err := parseRequestURL(r.URL); err != nil {
			return nil, err
		}
		body, err := BuildMultipart(r.Parameters, parts)
		if err != nil {
			return nil, err
		}
		c.metrics.RecordUploadBytes(endpointOf(r.URL), len(body.Data))
		return &payload{url: r.URL, data: body.Data, contentType: body.ContentType, progress: progress, unkeyed: true}, nil
	}
}

func parseRequestURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &TransportError{Failure: FailureInvalidURL, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &TransportError{Failure: FailureInvalidURL, Err: fmt.Errorf("URL %q is not absolute", rawURL)}
	}
	return u, nil
}

// encodeParameters places params per enc: JSON always in the body, URL in the
// query string for GET, HEAD and DELETE and in a form body otherwise.
func encodeParameters(method, rawURL string, params map[string]any, enc Encoding) (*payload, error) {
	u, err := parseRequestURL(rawURL)
	if err != nil {
		return nil, err
	}
	p := &payload{url: rawURL}
	if len(params) == 0 {
		return p, nil
	}

	switch enc {
	case EncodingURL:
		values := make(url.Values)
		for key, value := range params {
			addQueryComponent(values, key, value)
		}
		query := values.Encode()
		if encodesInURL(method) {
			if u.RawQuery != "" {
				u.RawQuery += "&" + query
			} else {
				u.RawQuery = query
			}
			p.url = u.String()
		} else {
			p.data = []byte(query)
			p.contentType = "application/x-www-form-urlencoded; charset=utf-8"
		}
	default:
		data, err := json.Marshal(params)
		if err != nil {
			return nil, &TransportError{Failure: FailureParameterEncoding, Err: err}
		}
		p.data = data
		p.contentType = "application/json"
	}
	return p, nil
}

func encodesInURL(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	default:
		return false
	}
}

// addQueryComponent flattens nested values: maps as key[sub], slices as key[].
func addQueryComponent(values url.Values, key string, value any) {
	switch v := value.(type) {
	case nil:
		values.Add(key, "")
	case map[string]any:
		for k, nested := range v {
			addQueryComponent(values, key+"["+k+"]", nested)
		}
	case []any:
		for _, nested := range v {
			addQueryComponent(values, key+"[]", nested)
		}
	case []string:
		for _, nested := range v {
			values.Add(key+"[]", nested)
		}
	default:
		values.Add(key, fmt.Sprint(v))
	}
}
