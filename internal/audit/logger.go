package audit

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(event Event)

	// Close flushes any pending writes and closes the logger
	Close() error
}

// NoopLogger is used when auditing is disabled
type NoopLogger struct{}

func (n *NoopLogger) Log(_ Event) {}

func (n *NoopLogger) Close() error {
	return nil
}

var _ Logger = (*NoopLogger)(nil)
