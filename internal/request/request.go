// Package request builds the method-tagged request a Connection sends.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/nethippie/hippie/internal/mapper"
	"github.com/nethippie/hippie/internal/uri"
)

// ErrInvalidMethod is returned for methods outside GET, POST, PUT, PATCH and DELETE.
var ErrInvalidMethod = errors.New("invalid HTTP method")

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// Request is a single outbound request. It is not modified once handed to a
// Connection.
type Request struct {
	Method string
	URL    *url.URL

	// Header keys keep the case they were given in and are sent as-is.
	Header map[string]string

	// Body is nil when the request carries no payload.
	Body []byte
}

// HasBody reports whether a payload will be sent.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

// HTTPRequest converts r into a *http.Request bound to ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.HasBody() {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range r.Header {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		// direct assignment skips canonicalization
		req.Header[k] = []string{v}
	}

	return req, nil
}

// Builder carries the defaults applied to every request a Client builds.
type Builder struct {
	Defaults map[string]string
	Mapper   mapper.Mapper
}

// Build is Build(method, target, headers, body, b.Defaults, b.Mapper).
func (b *Builder) Build(method string, target any, headers map[string]string, body any) (*Request, error) {
	return Build(method, target, headers, body, b.Defaults, b.Mapper)
}

// Build constructs a Request. Per-call headers override defaults with an
// exact, case-sensitive key match. An empty body produces a request without
// a payload for every method; anything else goes through m. A nil m uses
// the JSON mapper.
func Build(method string, target any, headers map[string]string, body any, defaults map[string]string, m mapper.Mapper) (*Request, error) {
	normalized := strings.ToUpper(strings.TrimSpace(method))
	if _, ok := allowedMethods[normalized]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	u, err := uri.Parse(target)
	if err != nil {
		return nil, err
	}

	merged := MergeHeaders(defaults, headers)

	req := &Request{
		Method: normalized,
		URL:    u,
		Header: merged,
	}

	if IsEmpty(body) {
		return req, nil
	}

	if m == nil {
		m = mapper.Default()
	}

	mapped, err := m.Map(merged, body)
	if err != nil {
		return nil, err
	}

	req.Body, err = toBytes(mapped, merged[mapper.ContentTypeHeader])
	if err != nil {
		return nil, err
	}

	return req, nil
}

// MergeHeaders returns defaults overlaid with overrides. Neither input is modified.
func MergeHeaders(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// IsEmpty reports whether body means "no payload": nil, an empty string,
// or an empty slice, array or map.
func IsEmpty(body any) bool {
	if body == nil {
		return true
	}

	switch b := body.(type) {
	case string:
		return b == ""
	case []byte:
		return len(b) == 0
	case io.Reader:
		return false
	}

	v := reflect.ValueOf(body)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func toBytes(body any, contentType string) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		return data, nil
	}

	if contentType == "" {
		contentType = "unspecified content type"
	}
	return nil, &mapper.SerializationError{
		ContentType: contentType,
		Err:         fmt.Errorf("body of type %T was not serialized; set a JSON Content-Type or pass bytes", body),
	}
}
