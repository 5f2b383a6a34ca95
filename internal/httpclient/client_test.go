package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nethippie/hippie/internal/security"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNew_NilConfig(t *testing.T) {
	client, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}

	transport := BaseTransport(client)
	if transport == nil {
		t.Fatal("expected a built *http.Transport")
	}
	if transport.MaxIdleConnsPerHost != DefaultMaxIdleConnsPerHost {
		t.Errorf("expected MaxIdleConnsPerHost %d, got %d", DefaultMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	}
	if transport.IdleConnTimeout != DefaultIdleConnTimeout {
		t.Errorf("expected IdleConnTimeout %v, got %v", DefaultIdleConnTimeout, transport.IdleConnTimeout)
	}
	if transport.TLSHandshakeTimeout != DefaultOpenTimeout {
		t.Errorf("expected TLSHandshakeTimeout %v, got %v", DefaultOpenTimeout, transport.TLSHandshakeTimeout)
	}
	if transport.TLSClientConfig != nil {
		t.Error("plain config should not carry TLS settings")
	}
	if client.Timeout != 0 {
		t.Errorf("expected no whole-exchange timeout, got %v", client.Timeout)
	}
}

func TestNew_ZeroValuesUseDefaults(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *Config
		expect func(*testing.T, *http.Transport)
	}{
		{
			name: "negative open timeout uses default",
			cfg:  &Config{OpenTimeout: -time.Second},
			expect: func(t *testing.T, tr *http.Transport) {
				if tr.TLSHandshakeTimeout != DefaultOpenTimeout {
					t.Errorf("expected default open timeout, got %v", tr.TLSHandshakeTimeout)
				}
			},
		},
		{
			name: "custom open timeout",
			cfg:  &Config{OpenTimeout: 3 * time.Second},
			expect: func(t *testing.T, tr *http.Transport) {
				if tr.TLSHandshakeTimeout != 3*time.Second {
					t.Errorf("expected 3s, got %v", tr.TLSHandshakeTimeout)
				}
			},
		},
		{
			name: "negative max idle conns uses default",
			cfg:  &Config{MaxIdleConnsPerHost: -1},
			expect: func(t *testing.T, tr *http.Transport) {
				if tr.MaxIdleConnsPerHost != DefaultMaxIdleConnsPerHost {
					t.Errorf("expected default MaxIdleConnsPerHost, got %d", tr.MaxIdleConnsPerHost)
				}
			},
		},
		{
			name: "custom idle conn timeout",
			cfg:  &Config{IdleConnTimeout: 5 * time.Second},
			expect: func(t *testing.T, tr *http.Transport) {
				if tr.IdleConnTimeout != 5*time.Second {
					t.Errorf("expected 5s, got %v", tr.IdleConnTimeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransport(tt.cfg)
			if err != nil {
				t.Fatalf("NewTransport error: %v", err)
			}
			tt.expect(t, tr)
		})
	}
}

func TestNew_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get(server.URL + "/old")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("expected 301 to be returned as-is, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "/new" {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
}

func TestNew_ReadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(&Config{ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Get(server.URL)
	if err == nil {
		t.Fatal("expected read timeout")
	}

	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected timeout net.Error, got %v", err)
	}
}

func TestNew_ReadTimeoutAllowsSlowButSteadyExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			_, _ = io.WriteString(w, "chunk")
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
	}))
	defer server.Close()

	client, err := New(&Config{ReadTimeout: 150 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != strings.Repeat("chunk", 4) {
		t.Errorf("body = %q", body)
	}
}

func TestNew_IdleConnectionOutlivesReadTimeout(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	server.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			mu.Lock()
			conns++
			mu.Unlock()
		}
	}
	server.Start()
	defer server.Close()

	client, err := New(&Config{ReadTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer client.CloseIdleConnections()

	for i := 0; i < 4; i++ {
		if i > 0 {
			time.Sleep(300 * time.Millisecond)
		}
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		_, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Errorf("expected one reused connection, server saw %d", conns)
	}
}

func TestNew_CustomTransport(t *testing.T) {
	called := false
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusTeapot, Header: make(http.Header), Body: http.NoBody, Request: r}, nil
	})

	client, err := New(&Config{Transport: rt})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get("http://example.invalid/")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()

	if !called {
		t.Error("custom transport was not used")
	}
	if TLSClientConfig(client) != nil {
		t.Error("custom transport should report no TLS config")
	}
}

func TestNew_DebugLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: http.NoBody, Request: r}, nil
	})

	client, err := New(&Config{Transport: rt, Debug: true, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://example.com/x?token=abc", nil)
	req.Header["Authorization"] = []string{"Bearer secret"}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if logs.FilterMessage("HTTP request").Len() != 1 {
		t.Errorf("expected one request line, got %d", logs.FilterMessage("HTTP request").Len())
	}
	if logs.FilterMessage("HTTP response").Len() != 1 {
		t.Errorf("expected one response line, got %d", logs.FilterMessage("HTTP response").Len())
	}

	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			if f.Key == "url" && strings.Contains(f.String, "abc") {
				t.Errorf("token leaked into debug log: %s", f.String)
			}
		}
	}
}

func TestNew_DebugWithoutLoggerIsSilent(t *testing.T) {
	client, err := New(&Config{Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.Transport.(*debugTransport); ok {
		t.Error("debug transport installed without a logger")
	}
}

func TestNew_TLSConfigApplied(t *testing.T) {
	client, err := New(&Config{TLS: &TLSConfig{VerifyMode: VerifyNone}})
	if err != nil {
		t.Fatal(err)
	}

	tlsCfg := TLSClientConfig(client)
	if tlsCfg == nil {
		t.Fatal("expected TLS config")
	}
	if !tlsCfg.InsecureSkipVerify {
		t.Error("VerifyNone should skip verification")
	}
	if tlsCfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", tlsCfg.MinVersion)
	}
}

func TestNew_InvalidClientCertificate(t *testing.T) {
	_, err := New(&Config{TLS: &TLSConfig{
		ClientCert: []byte("not a cert"),
		ClientKey:  []byte("not a key"),
	}})
	if err == nil {
		t.Fatal("expected error for invalid certificate")
	}
}

func TestNew_BlockPrivateNetworks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	guarded, err := New(&Config{BlockPrivateNetworks: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := guarded.Get(server.URL); !errors.Is(err, security.ErrBlockedHost) {
		t.Fatalf("expected ErrBlockedHost dialing loopback, got %v", err)
	}

	open, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := open.Get(server.URL)
	if err != nil {
		t.Fatalf("unguarded client should reach loopback: %v", err)
	}
	resp.Body.Close()
}
