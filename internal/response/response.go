// Package response holds the value returned by one HTTP exchange.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Category groups status codes by their first digit.
type Category int

const (
	Unknown Category = iota
	Informational
	Success
	Redirection
	ClientError
	ServerError
)

func (c Category) String() string {
	switch c {
	case Informational:
		return "informational"
	case Success:
		return "success"
	case Redirection:
		return "redirection"
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	}
	return "unknown"
}

// CategoryOf classifies a status code.
func CategoryOf(status int) Category {
	switch {
	case status >= 100 && status < 200:
		return Informational
	case status >= 200 && status < 300:
		return Success
	case status >= 300 && status < 400:
		return Redirection
	case status >= 400 && status < 500:
		return ClientError
	case status >= 500 && status < 600:
		return ServerError
	}
	return Unknown
}

// Response is an HTTP status, its headers and the fully read body.
// A Response is not modified after it is returned.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New drains and closes resp.Body.
func New(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// Category classifies the status code.
func (r *Response) Category() Category {
	return CategoryOf(r.StatusCode)
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.Category() == Success
}

// IsRedirect reports a 3xx status.
func (r *Response) IsRedirect() bool {
	return r.Category() == Redirection
}

// Location returns the Location header, or "" if absent.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// String returns the body as text.
func (r *Response) String() string {
	return string(r.Body)
}
