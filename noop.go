package logsink

// NoopLogger discards every message. It is useful as a Manager placeholder
// before the real writer is constructed, and in tests that need a Logger with
// no side effects.
type NoopLogger struct{}

// NewNoopLogger creates a logger that does nothing.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// Log discards the message.
func (*NoopLogger) Log(string) {}

var _ Logger = (*NoopLogger)(nil)
