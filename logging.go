package netguard

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	redacted        = "[REDACTED]"
	maxLoggedBody   = 4096
	multipartPrefix = "multipart/"
)

var sensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"Cookie":              {},
	"Set-Cookie":          {},
	"X-Api-Key":           {},
}

var sensitiveBodyKeys = []string{"password", "token", "access_token", "refresh_token", "client_secret", "secret"}

func (c *Client) logRequest(requestID string, req *http.Request, body []byte) {
	if !c.config.EnableLogging {
		return
	}
	opts := c.config.Log
	fields := []interface{}{"requestID", requestID, "method", req.Method, "url", req.URL.String()}
	if opts.LogRequestHeaders {
		fields = append(fields, "headers", flattenHeaders(req.Header))
	}
	if opts.LogRequestBody && len(body) > 0 {
		fields = append(fields, "body", loggableBody(req.Header.Get("Content-Type"), body))
	}
	c.logger.Debug("Sending request", fields...)

	if opts.LogCurl {
		c.logger.Debug("cURL", "requestID", requestID, "command", curlCommand(req, body))
	}
}

func (c *Client) logResponse(requestID string, resp *http.Response, body []byte) {
	if !c.config.EnableLogging {
		return
	}
	opts := c.config.Log
	fields := []interface{}{"requestID", requestID}
	if opts.LogStatusCode {
		fields = append(fields, "statusCode", resp.StatusCode)
	}
	if opts.LogResponseHeaders {
		fields = append(fields, "headers", flattenHeaders(resp.Header))
	}
	if opts.LogResponseBody && len(body) > 0 {
		fields = append(fields, "body", loggableBody(resp.Header.Get("Content-Type"), body))
	}
	c.logger.Debug("Received response", fields...)
}

// redactHeaders copies h with credentials masked. The auth scheme is kept.
func redactHeaders(h http.Header) http.Header {
	if h == nil {
		return h
	}
	cp := make(http.Header, len(h))
	for k, vs := range h {
		if _, ok := sensitiveHeaders[http.CanonicalHeaderKey(k)]; !ok {
			cp[k] = append([]string(nil), vs...)
			continue
		}
		for _, v := range vs {
			if scheme, _, found := strings.Cut(v, " "); found && strings.HasSuffix(http.CanonicalHeaderKey(k), authorizationHeader) {
				cp.Add(k, scheme+" "+redacted)
			} else {
				cp.Add(k, redacted)
			}
		}
	}
	return cp
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range redactHeaders(h) {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}

// redactBody masks well known credential fields of a JSON object body.
func redactBody(body []byte) []byte {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return body
	}
	out := body
	for _, key := range sensitiveBodyKeys {
		if !gjson.GetBytes(out, key).Exists() {
			continue
		}
		if next, err := sjson.SetBytes(out, key, redacted); err == nil {
			out = next
		}
	}
	return out
}

func loggableBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, multipartPrefix) {
		return fmt.Sprintf("<%s body, %d bytes>", contentType, len(body))
	}
	text := string(redactBody(body))
	if len(text) > maxLoggedBody {
		cut := maxLoggedBody
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "...(truncated)"
	}
	return text
}

// curlCommand renders req as an equivalent curl invocation.
func curlCommand(req *http.Request, body []byte) string {
	parts := []string{"$ curl -v", "-X " + req.Method}

	headers := redactHeaders(req.Header)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			parts = append(parts, fmt.Sprintf("-H %q", k+": "+v))
		}
	}

	if len(body) > 0 {
		if strings.HasPrefix(req.Header.Get("Content-Type"), multipartPrefix) {
			parts = append(parts, fmt.Sprintf("--data-binary %q", fmt.Sprintf("<%d bytes>", len(body))))
		} else {
			parts = append(parts, "-d "+shellQuote(string(redactBody(body))))
		}
	}
	parts = append(parts, fmt.Sprintf("%q", req.URL.String()))
	return strings.Join(parts, " \\\n\t")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
