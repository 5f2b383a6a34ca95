// Package mapper decides whether and how a request payload is serialized,
// based on the declared Content-Type header.
package mapper

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// ContentTypeHeader is the only header key consulted when choosing an encoding.
// Lookup is case-sensitive: "content-type" is not recognized.
const ContentTypeHeader = "Content-Type"

// Mapper turns a request payload into its wire form.
// Implementations return the body unchanged when they have nothing to do.
type Mapper interface {
	Map(headers map[string]string, body any) (any, error)
}

// Func adapts an ordinary function to the Mapper interface.
type Func func(headers map[string]string, body any) (any, error)

// Map calls f(headers, body).
func (f Func) Map(headers map[string]string, body any) (any, error) {
	return f(headers, body)
}

// SerializationError reports a payload that could not be encoded.
type SerializationError struct {
	ContentType string
	Err         error
}

func (e *SerializationError) Error() string {
	return "serialize body as " + e.ContentType + ": " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// JSON is the default mapper. Structured bodies are encoded as JSON text when
// the Content-Type mentions "json"; everything else passes through.
type JSON struct{}

// Default returns the content-type aware JSON mapper.
func Default() Mapper {
	return JSON{}
}

// Map implements Mapper.
func (JSON) Map(headers map[string]string, body any) (any, error) {
	switch body.(type) {
	case string, []byte, json.RawMessage, io.Reader:
		// already serialized
		return body, nil
	}

	contentType := headers[ContentTypeHeader]
	if !IsJSON(contentType) {
		return body, nil
	}

	data, err := marshal(body)
	if err != nil {
		return nil, &SerializationError{ContentType: contentType, Err: err}
	}
	return data, nil
}

// marshal is json.Marshal without HTML escaping, so "<", ">" and "&" reach
// the wire as written.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IsJSON reports whether a content type value names a JSON media type,
// e.g. application/json, application/vnd.api+json or text/json; charset=utf-8.
func IsJSON(contentType string) bool {
	return contentType != "" && strings.Contains(contentType, "json")
}
