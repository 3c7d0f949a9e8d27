package logsink

import (
	"sync/atomic"
)

// Manager holds the process's active Logger behind an atomically replaceable
// handle. It replaces the classic global singleton log manager with explicit
// dependency injection: construct one Manager at process start and pass it to
// every component that logs.
//
// Log works on an immutable snapshot of the handle, so a concurrent Swap
// never tears a call in half; the previous logger can be shut down once Swap
// has returned it.
type Manager struct {
	current atomic.Pointer[loggerHandle]
}

type loggerHandle struct {
	logger Logger
}

// NewManager creates a manager with the given initial logger. A nil initial
// logger is allowed; Log discards until one is swapped in.
func NewManager(initial Logger) *Manager {
	m := &Manager{}

	if initial != nil {
		m.current.Store(&loggerHandle{logger: initial})
	}

	return m
}

// Swap atomically replaces the active logger and returns the previous one,
// or nil if none was set. The caller is responsible for shutting down the
// returned logger once it is no longer referenced.
func (m *Manager) Swap(next Logger) Logger {
	var handle *loggerHandle

	if next != nil {
		handle = &loggerHandle{logger: next}
	}

	previous := m.current.Swap(handle)
	if previous == nil {
		return nil
	}

	return previous.logger
}

// Log forwards the message to the active logger's snapshot. With no active
// logger the message is discarded.
func (m *Manager) Log(msg string) {
	handle := m.current.Load()
	if handle == nil {
		return
	}

	handle.logger.Log(msg)
}

var _ Logger = (*Manager)(nil)
