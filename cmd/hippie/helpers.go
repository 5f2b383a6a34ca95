package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nethippie/hippie/internal/config"
	"github.com/nethippie/hippie/internal/response"
)

// setupLogger creates a zap logger from the config, with --log-level and
// --log-file taking precedence.
func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	levelName := cfg.Logging.Level
	if logLevel != "" {
		levelName = logLevel
	}

	level := zapcore.InfoLevel
	if levelName != "" {
		parsed, err := zapcore.ParseLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
		}
		level = parsed
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	path := cfg.Logging.File
	if logFile != "" {
		path = logFile
	}
	if path != "" {
		zcfg.OutputPaths = []string{path}
	}

	return zcfg.Build()
}

// configPath returns --config or the per-user default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig loads configuration, falling back to defaults when no file exists.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath())
}

// parseHeaders turns "Name: value" flags into a header map. Names keep
// their case.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseBody interprets --data. "@path" reads a file and "@-" reads stdin.
// Valid JSON is sent verbatim; anything else is sent as text.
func parseBody(data string, stdin io.Reader) (any, error) {
	if data == "" {
		return nil, nil
	}

	raw := []byte(data)
	if strings.HasPrefix(data, "@") {
		var err error
		if data == "@-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(data[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	return string(raw), nil
}

// writeResponse prints the status line and headers when include is set,
// then the body.
func writeResponse(w io.Writer, resp *response.Response, include bool) error {
	if include {
		fmt.Fprintf(w, "HTTP %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		names := make([]string, 0, len(resp.Header))
		for name := range resp.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range resp.Header[name] {
				fmt.Fprintf(w, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(w)
	}

	if _, err := w.Write(resp.Body); err != nil {
		return err
	}
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		fmt.Fprintln(w)
	}
	return nil
}
