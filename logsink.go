// Package logsink provides an asynchronous, crash-safe, rotating log writer.
//
// The package decouples fast callers from slow durable-storage writes with a
// bounded producer/consumer pipeline:
//   - Producers call Log, which stamps the message and enqueues it without
//     ever blocking on I/O.
//   - A single background consumer drains the queue, consults an injected
//     RotationPolicy, and writes timestamped lines to the active Sink.
//   - Shutdown stops intake, drains everything already accepted, flushes and
//     closes the sink, and only then returns.
//
// The queue is the only structure shared between producers and the consumer;
// the sink and the rotation policy are touched exclusively by the consumer,
// which keeps the submission hot path cheap and the sink I/O lock-free.
//
// Basic usage:
//
//	writer, err := logsink.New(logsink.DefaultConfig())
//	if err != nil {
//		panic(err)
//	}
//	defer writer.Shutdown()
//
//	writer.Log("service started")
//
// Overflow is a silent, best-effort loss by contract: a full queue drops
// entries (drop-newest by default) and the only observable trace is the
// DroppedCount counter and the Metrics snapshot.
package logsink

// Logger is the minimal capability consumed by components that emit log
// messages. AsyncWriter implements it; so does any synchronous stand-in used
// during tests or early process start-up.
type Logger interface {
	// Log records a message. Implementations must not block the caller on
	// I/O and must not return errors: failures are handled (or counted)
	// behind the interface.
	Log(msg string)
}

// Sink is an open durable destination receiving formatted log lines. It is
// opened, written to, flushed, and closed exclusively by the writer's
// consumer goroutine, so implementations only need to be safe for a single
// caller.
type Sink interface {
	// Write appends the formatted line to the destination.
	Write(p []byte) (n int, err error)
	// Sync ensures that all written data has reached durable storage.
	Sync() error
	// Close flushes and releases the destination.
	Close() error
}

// SinkOpener opens named sinks on behalf of the writer. The name comes from
// the rotation policy; the opener decides what it maps to (a file path, a
// connection, an object key).
type SinkOpener interface {
	Open(name string) (Sink, error)
}

// RotationPolicy decides when the active sink should be replaced and what the
// next one is called. The writer queries it from the consumer goroutine only,
// once per drained item, so implementations need no internal locking.
type RotationPolicy interface {
	// ShouldRotate reports whether the active sink should be closed and a
	// new one opened before the next write.
	ShouldRotate() bool
	// NextSinkName produces the name for the next sink.
	NextSinkName() string
}
