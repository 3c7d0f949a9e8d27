package logsink

import (
	"fmt"
	"os"

	"github.com/hyp3rd/logsink/internal/queue"
)

const (
	// DefaultTimeFormat is the layout used for the timestamp prefix of each
	// persisted line.
	DefaultTimeFormat = "2006-01-02 15:04:05"
	// DefaultMaxQueueSize bounds the pending-item queue when the caller
	// does not configure a capacity.
	DefaultMaxQueueSize = queue.DefaultCapacity
	// DefaultFileNamePattern is the time layout IntervalRotation uses to
	// name sinks when no pattern is configured.
	DefaultFileNamePattern = "log_20060102_150405.txt"
)

// OverflowStrategy defines how the writer behaves when the pending queue is
// full. Submission never blocks under either strategy.
type OverflowStrategy uint8

const (
	// OverflowDropNewest drops the incoming entry (default behaviour).
	OverflowDropNewest OverflowStrategy = iota
	// OverflowDropOldest discards the oldest buffered entry to make space
	// for the new one.
	OverflowDropOldest
)

// IsValid reports whether the strategy value is recognised.
func (s OverflowStrategy) IsValid() bool {
	switch s {
	case OverflowDropNewest, OverflowDropOldest:
		return true
	default:
		return false
	}
}

// Config holds configuration for an AsyncWriter.
type Config struct {
	// MaxQueueSize is the capacity of the pending-item queue.
	MaxQueueSize int
	// Overflow controls what happens when the queue is full.
	Overflow OverflowStrategy
	// TimeFormat is the layout for the timestamp prefix of each line.
	TimeFormat string
	// Policy decides when to rotate the active sink and names the next one.
	Policy RotationPolicy
	// Opener opens named sinks. Defaults to a FileOpener rooted in the
	// current directory.
	Opener SinkOpener
	// ErrorHandler receives sink open/write/close failures. The writer
	// never stops on such failures; this is the fallback diagnostic
	// channel. Defaults to a one-line report on stderr.
	ErrorHandler func(error)
	// MetricsReporter, when set, receives a metrics snapshot from the
	// consumer goroutine after each processed or failed item.
	MetricsReporter func(Metrics)
}

// DefaultConfig returns the default writer configuration: a drop-newest queue
// of DefaultMaxQueueSize items, daily interval rotation with timestamped file
// names, and file sinks in the current directory.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize: DefaultMaxQueueSize,
		Overflow:     OverflowDropNewest,
		TimeFormat:   DefaultTimeFormat,
		Policy:       nil, // filled in by New
		Opener:       &FileOpener{},
		ErrorHandler: nil, // filled in by New
	}
}

// withDefaults normalises the configuration the way New expects it.
func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}

	if !c.Overflow.IsValid() {
		c.Overflow = OverflowDropNewest
	}

	if c.TimeFormat == "" {
		c.TimeFormat = DefaultTimeFormat
	}

	if c.Opener == nil {
		c.Opener = &FileOpener{}
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(err error) {
			fmt.Fprintf(os.Stderr, "logsink: %v\n", err)
		}
	}

	return c
}

func (s OverflowStrategy) queueStrategy() queue.OverflowStrategy {
	if s == OverflowDropOldest {
		return queue.DropOldest
	}

	return queue.DropNewest
}
