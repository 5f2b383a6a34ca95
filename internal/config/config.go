// Package config handles configuration files and defaults for hippie clients
package config

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nethippie/hippie/internal/client"
	"github.com/nethippie/hippie/internal/httpclient"
	"github.com/nethippie/hippie/internal/request"
)

// Config holds all file-backed settings
type Config struct {
	HTTP    HTTPConfig        `toml:"http" yaml:"http"`
	Headers map[string]string `toml:"headers" yaml:"headers"`
	TLS     TLSConfig         `toml:"tls" yaml:"tls"`
	Logging LoggingConfig     `toml:"logging" yaml:"logging"`
}

// HTTPConfig holds transport and request behaviour
type HTTPConfig struct {
	ReadTimeout     string  `toml:"read_timeout" yaml:"read_timeout"`
	OpenTimeout     string  `toml:"open_timeout" yaml:"open_timeout"`
	VerifyMode      string  `toml:"verify_mode" yaml:"verify_mode"`
	FollowRedirects int     `toml:"follow_redirects" yaml:"follow_redirects"`
	Retries         int     `toml:"retries" yaml:"retries"`
	MaxConnections  int     `toml:"max_connections" yaml:"max_connections"`
	RateLimit       float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst       int     `toml:"rate_burst" yaml:"rate_burst"`
	RequestIDHeader string  `toml:"request_id_header" yaml:"request_id_header"`
	Debug           bool    `toml:"debug" yaml:"debug"`

	BlockPrivateNetworks bool `toml:"block_private_networks" yaml:"block_private_networks"`
}

// TLSConfig names the PEM files used for mutual TLS and server verification
type TLSConfig struct {
	CertFile      string `toml:"cert_file" yaml:"cert_file"`
	KeyFile       string `toml:"key_file" yaml:"key_file"`
	KeyPassphrase string `toml:"key_passphrase" yaml:"key_passphrase"`
	CAFile        string `toml:"ca_file" yaml:"ca_file"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`

	// AuditFile receives one JSON line per exchange when set
	AuditFile string `toml:"audit_file" yaml:"audit_file"`
}

// DefaultConfig returns a configuration with the client defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			ReadTimeout: httpclient.DefaultReadTimeout.String(),
			OpenTimeout: httpclient.DefaultOpenTimeout.String(),
			VerifyMode:  httpclient.VerifyPeer.String(),
		},
		Headers: client.DefaultHeaders(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.config/hippie/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "hippie", "config.toml")
}

// Load reads configuration from a file, merging with defaults. A missing file
// yields the defaults. Files ending in .yaml or .yml are YAML; anything else
// is TOML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	defaults := cfg.Headers

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	cfg.Headers = nil
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// [headers] overlays the defaults rather than replacing them
	cfg.Headers = request.MergeHeaders(defaults, cfg.Headers)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to a file, choosing the format from its extension
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return err
	}

	// may hold a key passphrase
	return os.WriteFile(path, data, 0600)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := parseTimeout("http.read_timeout", c.HTTP.ReadTimeout); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := parseTimeout("http.open_timeout", c.HTTP.OpenTimeout); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := httpclient.ParseVerifyMode(c.HTTP.VerifyMode); err != nil {
		result = multierror.Append(result, fmt.Errorf("http.verify_mode: %w", err))
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"http.follow_redirects", float64(c.HTTP.FollowRedirects)},
		{"http.retries", float64(c.HTTP.Retries)},
		{"http.max_connections", float64(c.HTTP.MaxConnections)},
		{"http.rate_limit", c.HTTP.RateLimit},
		{"http.rate_burst", float64(c.HTTP.RateBurst)},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must not be negative", f.name))
		}
	}

	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			result = multierror.Append(result, fmt.Errorf("logging.level: %w", err))
		}
	}

	if c.TLS.KeyPassphrase != "" && c.TLS.KeyFile == "" {
		result = multierror.Append(result, errors.New("tls.key_passphrase is set without tls.key_file"))
	}

	return result.ErrorOrNil()
}

// ReadTimeoutDuration returns the parsed read timeout.
func (c *Config) ReadTimeoutDuration() time.Duration {
	d, _ := parseTimeout("", c.HTTP.ReadTimeout)
	return d
}

// OpenTimeoutDuration returns the parsed open timeout.
func (c *Config) OpenTimeoutDuration() time.Duration {
	d, _ := parseTimeout("", c.HTTP.OpenTimeout)
	return d
}

// parseTimeout treats "" as 0, meaning the transport default.
func parseTimeout(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return d, nil
}

// ToClientConfig validates c, reads the referenced PEM files and returns the
// equivalent client configuration.
func (c *Config) ToClientConfig(logger *zap.Logger) (client.Config, error) {
	if err := c.Validate(); err != nil {
		return client.Config{}, err
	}

	verifyMode, _ := httpclient.ParseVerifyMode(c.HTTP.VerifyMode)

	cfg := client.Config{
		DefaultHeaders:  c.Headers,
		ReadTimeout:     c.ReadTimeoutDuration(),
		OpenTimeout:     c.OpenTimeoutDuration(),
		VerifyMode:      verifyMode,
		KeyPassphrase:   c.TLS.KeyPassphrase,
		FollowRedirects: c.HTTP.FollowRedirects,
		Logger:          logger,
		Debug:           c.HTTP.Debug,
		MaxConnections:  c.HTTP.MaxConnections,
		RateLimit:       c.HTTP.RateLimit,
		RateBurst:       c.HTTP.RateBurst,
		RequestIDHeader: c.HTTP.RequestIDHeader,

		BlockPrivateNetworks: c.HTTP.BlockPrivateNetworks,
	}

	var err error
	if c.TLS.CertFile != "" {
		if cfg.ClientCert, err = os.ReadFile(c.TLS.CertFile); err != nil {
			return client.Config{}, fmt.Errorf("read tls.cert_file: %w", err)
		}
	}
	if c.TLS.KeyFile != "" {
		if cfg.ClientKey, err = os.ReadFile(c.TLS.KeyFile); err != nil {
			return client.Config{}, fmt.Errorf("read tls.key_file: %w", err)
		}
	}
	if c.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return client.Config{}, fmt.Errorf("read tls.ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return client.Config{}, fmt.Errorf("tls.ca_file %s: no certificates found", c.TLS.CAFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
