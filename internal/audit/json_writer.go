package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONWriter appends audit events as JSON lines, rotating the file once it
// passes MaxSizeMB.
type JSONWriter struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu      sync.Mutex
	file    *os.File
	out     *countingWriter
	encoder *json.Encoder
}

// JSONWriterConfig configures the JSON audit writer
type JSONWriterConfig struct {
	Path string

	// MaxSizeMB is the size that triggers rotation (default: 100)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept as path.1 ... path.N (default: 5)
	MaxBackups int
}

// NewJSONWriter opens (or creates) the audit log at cfg.Path.
func NewJSONWriter(cfg JSONWriterConfig) (*JSONWriter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	w := &JSONWriter{
		path:       cfg.Path,
		maxBytes:   int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *JSONWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat audit log: %w", err)
	}

	w.file = f
	w.out = &countingWriter{w: f, n: info.Size()}
	w.encoder = json.NewEncoder(w.out)
	return nil
}

// Log writes event as one line. Write errors are dropped; auditing never
// fails a request.
func (w *JSONWriter) Log(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return
	}

	if w.out.n >= w.maxBytes {
		if err := w.rotate(); err != nil {
			return
		}
	}

	_ = w.encoder.Encode(event)
}

// rotate shifts path.N-1 to path.N, the live file to path.1, and reopens.
func (w *JSONWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}
	w.file = nil

	_ = os.Remove(fmt.Sprintf("%s.%d", w.path, w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", w.path, i), fmt.Sprintf("%s.%d", w.path, i+1))
	}

	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		if openErr := w.openFile(); openErr != nil {
			return fmt.Errorf("failed to rotate audit log: %w (also failed to reopen: %v)", err, openErr)
		}
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	return w.openFile()
}

// Close closes the underlying file. Later Log calls are ignored.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	w.encoder = nil
	return err
}

var _ Logger = (*JSONWriter)(nil)

// StreamWriter writes JSON-line events to an arbitrary writer without rotation.
type StreamWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewStreamWriter writes events to out, one JSON object per line.
func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{encoder: json.NewEncoder(out)}
}

// Log writes event; encoding errors are dropped.
func (s *StreamWriter) Log(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.encoder.Encode(event)
}

// Close is a no-op; out belongs to the caller.
func (s *StreamWriter) Close() error { return nil }

var _ Logger = (*StreamWriter)(nil)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
