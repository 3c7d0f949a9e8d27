package logsink

import (
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hyp3rd/ewrap"
	"github.com/mattn/go-isatty"

	"github.com/hyp3rd/logsink/internal/utils"
)

// LogFilePermissions are the default file permissions for log files.
const LogFilePermissions = 0o644

// FileOpener opens append-mode file sinks confined to a base directory.
// Names produced by the rotation policy are joined onto Dir and rejected if
// they would escape it.
type FileOpener struct {
	// Dir is the directory log files are created in. Empty means the
	// current directory.
	Dir string
	// FileMode sets the permissions for new log files. Zero means
	// LogFilePermissions.
	FileMode os.FileMode
}

// Open creates or appends to the named file under the opener's directory.
func (o *FileOpener) Open(name string) (Sink, error) {
	path, err := utils.SecureJoin(o.Dir, name)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid sink name")
	}

	mode := o.FileMode
	if mode == 0 {
		mode = LogFilePermissions
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, ewrap.Wrapf(err, "creating log directory").
			WithMetadata("path", filepath.Dir(path))
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mode)
	if err != nil {
		return nil, ewrap.Wrapf(err, "opening log file").
			WithMetadata("path", path)
	}

	return &fileSink{file: file, path: path}, nil
}

// fileSink implements Sink over an os.File.
type fileSink struct {
	file *os.File
	path string
}

func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	if err != nil {
		return n, ewrap.Wrap(err, "writing to log file")
	}

	return n, nil
}

// Sync flushes buffered data to durable storage. A sink that has already been
// closed syncs to nothing and reports no error.
func (s *fileSink) Sync() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Sync()
	if err != nil {
		return ewrap.Wrapf(err, "syncing log file").
			WithMetadata("path", s.path)
	}

	return nil
}

// Close syncs remaining data and closes the file. Close is idempotent.
func (s *fileSink) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Sync()
	if err != nil {
		return ewrap.Wrapf(err, "final sync before close").
			WithMetadata("path", s.path)
	}

	err = s.file.Close()
	if err != nil {
		return ewrap.Wrapf(err, "closing log file").
			WithMetadata("path", s.path)
	}

	s.file = nil

	return nil
}

// ConsoleSink writes log lines to a console stream, dimming the timestamp
// prefix when the destination is a terminal. It is meant for development and
// as a low-ceremony fallback destination.
type ConsoleSink struct {
	out        io.Writer
	isTerminal bool
}

const (
	dimStart = "\x1b[2m"
	dimEnd   = "\x1b[0m"
)

// NewConsoleSink creates a console sink. A nil writer defaults to os.Stderr.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stderr
	}

	return &ConsoleSink{
		out:        out,
		isTerminal: IsTerminal(out),
	}
}

// Write emits the line, styling the leading "[timestamp]" segment when the
// output is a terminal.
func (s *ConsoleSink) Write(p []byte) (int, error) {
	if !s.isTerminal || len(p) == 0 || p[0] != '[' {
		n, err := s.out.Write(p)
		if err != nil {
			return n, ewrap.Wrap(err, "writing to console sink")
		}

		return n, nil
	}

	end := 0

	for i, b := range p {
		if b == ']' {
			end = i + 1

			break
		}
	}

	styled := make([]byte, 0, len(p)+len(dimStart)+len(dimEnd))
	styled = append(styled, dimStart...)
	styled = append(styled, p[:end]...)
	styled = append(styled, dimEnd...)
	styled = append(styled, p[end:]...)

	_, err := s.out.Write(styled)
	if err != nil {
		return 0, ewrap.Wrap(err, "writing to console sink")
	}

	// Report the caller's byte count, not the styled one.
	return len(p), nil
}

// Sync flushes the underlying stream when it supports it. Standard streams
// are left alone.
func (s *ConsoleSink) Sync() error {
	if f, ok := s.out.(*os.File); ok && isStandardStream(f) {
		return nil
	}

	if syncer, ok := s.out.(interface{ Sync() error }); ok {
		err := syncer.Sync()
		if err != nil {
			return ewrap.Wrap(err, "syncing console sink")
		}
	}

	return nil
}

// Close closes the underlying stream unless it is stdout or stderr.
func (s *ConsoleSink) Close() error {
	if f, ok := s.out.(*os.File); ok && isStandardStream(f) {
		return nil
	}

	if closer, ok := s.out.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "closing console sink")
		}
	}

	return nil
}

// ConsoleOpener satisfies SinkOpener for console destinations. The sink name
// from the rotation policy is ignored; every open yields a sink over the same
// stream, so rotation becomes a no-op.
type ConsoleOpener struct {
	// Out is the destination stream. Nil defaults to os.Stderr.
	Out io.Writer
}

// Open returns a console sink over the configured stream.
func (o *ConsoleOpener) Open(string) (Sink, error) {
	return NewConsoleSink(o.Out), nil
}

// sinkAdapter wraps a basic io.Writer into the Sink contract.
type sinkAdapter struct {
	writer io.Writer
}

// NewSinkAdapter wraps an io.Writer into a Sink. Sync and Close delegate when
// the underlying writer supports them and succeed quietly otherwise.
func NewSinkAdapter(w io.Writer) Sink {
	return &sinkAdapter{writer: w}
}

func (a *sinkAdapter) Write(p []byte) (int, error) {
	n, err := a.writer.Write(p)
	if err != nil {
		return n, ewrap.Wrap(err, "writing to sink")
	}

	return n, nil
}

func (a *sinkAdapter) Sync() error {
	if syncer, ok := a.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}

	return nil
}

func (a *sinkAdapter) Close() error {
	if closer, ok := a.writer.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "closing sink")
		}
	}

	return nil
}

// IsTerminal reports whether the writer is connected to a terminal. It is
// used to decide whether console output should be styled.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		if f.Fd() == uintptr(syscall.Stdout) || f.Fd() == uintptr(syscall.Stderr) {
			return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	return false
}

func isStandardStream(f *os.File) bool {
	return f == os.Stdout || f == os.Stderr
}
