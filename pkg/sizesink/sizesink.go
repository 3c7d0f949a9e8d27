// Package sizesink provides a log sink that rotates itself by file size,
// backed by lumberjack. It complements the writer's name-based rotation: pair
// it with a never-rotating policy (logsink.NewStaticName) and let the sink
// manage rotation, backups, and compression on its own.
package sizesink

import (
	"path/filepath"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hyp3rd/logsink"
	"github.com/hyp3rd/logsink/internal/utils"
)

// Default configuration values.
const (
	// DefaultMaxSizeMB is the file size that triggers a rotation.
	DefaultMaxSizeMB = 100
	// DefaultMaxBackups is the number of rotated files retained.
	DefaultMaxBackups = 7
	// DefaultMaxAgeDays is the retention period for rotated files.
	DefaultMaxAgeDays = 30
)

// ErrSinkClosed is returned when writing to or rotating a closed sink.
var ErrSinkClosed = ewrap.New("size sink is closed")

type config struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
	localTime  bool
}

// Option customises a size-rotating sink.
type Option func(*config)

// WithMaxSize sets the file size in megabytes that triggers a rotation.
func WithMaxSize(mb int) Option {
	return func(c *config) {
		if mb > 0 {
			c.maxSizeMB = mb
		}
	}
}

// WithMaxBackups sets how many rotated files are retained.
func WithMaxBackups(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxBackups = n
		}
	}
}

// WithMaxAge sets the retention period in days for rotated files.
func WithMaxAge(days int) Option {
	return func(c *config) {
		if days >= 0 {
			c.maxAgeDays = days
		}
	}
}

// WithCompress enables gzip compression of rotated files.
func WithCompress(compress bool) Option {
	return func(c *config) {
		c.compress = compress
	}
}

// WithLocalTime names rotated files with local time instead of UTC.
func WithLocalTime(local bool) Option {
	return func(c *config) {
		c.localTime = local
	}
}

// Sink is a size-self-rotating log sink backed by lumberjack.
type Sink struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

// New creates a size-rotating sink writing to filename.
func New(filename string, opts ...Option) (*Sink, error) {
	if filename == "" {
		return nil, ewrap.New("log file path is required")
	}

	cfg := config{
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
		maxAgeDays: DefaultMaxAgeDays,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &Sink{
		logger: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    cfg.maxSizeMB,
			MaxBackups: cfg.maxBackups,
			MaxAge:     cfg.maxAgeDays,
			Compress:   cfg.compress,
			LocalTime:  cfg.localTime,
		},
	}, nil
}

// Write appends to the active file, rotating it first when the size limit
// has been reached.
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrSinkClosed
	}

	n, err := s.logger.Write(p)
	if err != nil {
		return n, ewrap.Wrap(err, "writing to size sink")
	}

	return n, nil
}

// Sync is a no-op: lumberjack writes through to the file and exposes no
// fsync hook.
func (*Sink) Sync() error {
	return nil
}

// Close closes the active file. Further writes return ErrSinkClosed; so do
// repeated closes.
func (s *Sink) Close() error {
	if s.closed.Swap(true) {
		return ErrSinkClosed
	}

	err := s.logger.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing size sink")
	}

	return nil
}

// Rotate forces a rotation regardless of the current file size.
func (s *Sink) Rotate() error {
	if s.closed.Load() {
		return ErrSinkClosed
	}

	err := s.logger.Rotate()
	if err != nil {
		return ewrap.Wrap(err, "rotating size sink")
	}

	return nil
}

// Opener opens size-rotating sinks confined to a base directory, satisfying
// logsink.SinkOpener. Each sink name maps to one self-rotating file.
type Opener struct {
	// Dir is the directory log files are created in. Empty means the
	// current directory.
	Dir string
	// Options are applied to every sink the opener creates.
	Options []Option
}

// Open creates a size-rotating sink for the named file under the opener's
// directory.
func (o *Opener) Open(name string) (logsink.Sink, error) {
	path, err := utils.SecureJoin(o.Dir, name)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid sink name")
	}

	return New(filepath.Clean(path), o.Options...)
}

var (
	_ logsink.Sink       = (*Sink)(nil)
	_ logsink.SinkOpener = (*Opener)(nil)
)
