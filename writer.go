package logsink

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logsink/internal/queue"
)

// AsyncWriter is the asynchronous rotating log writer. It owns the bounded
// queue, the active sink, the rotation policy, and exactly one background
// consumer goroutine.
//
// Producers interact with the writer only through Log and Shutdown. The sink
// and the policy are consumer-owned: no lock guards sink I/O because no other
// goroutine ever touches it.
type AsyncWriter struct {
	config     Config
	queue      *queue.Queue
	wg         sync.WaitGroup
	closeMutex sync.Mutex
	closed     bool

	// Consumer-owned state. Written before the consumer starts, then only
	// from the consumer goroutine.
	sink     Sink
	sinkName string

	processed   atomic.Uint64
	writeErrors atomic.Uint64
	rotations   atomic.Uint64
}

// New creates an AsyncWriter, opens the initial sink synchronously (so early
// submissions are never lost to a missing sink), and starts the consumer
// goroutine. Construction fails only when the initial sink cannot be opened;
// later open failures are reported to the error handler and retried on the
// next item.
func New(config Config) (*AsyncWriter, error) {
	config = config.withDefaults()

	if config.Policy == nil {
		config.Policy = NewIntervalRotation(24*time.Hour, DefaultFileNamePattern)
	}

	w := &AsyncWriter{
		config: config,
		queue:  queue.New(config.MaxQueueSize, config.Overflow.queueStrategy()),
	}

	name := config.Policy.NextSinkName()

	sink, err := config.Opener.Open(name)
	if err != nil {
		return nil, ewrap.Wrapf(err, "opening initial sink").
			WithMetadata("name", name)
	}

	w.sink = sink
	w.sinkName = name

	w.wg.Add(1)

	go w.consume()

	return w, nil
}

// Log records a message with the current timestamp. It is fire-and-forget:
// it never blocks on I/O, never returns an error, and surfaces nothing about
// the queue outcome. A full queue or a writer past shutdown drops the message
// silently; the loss is visible only through DroppedCount and Metrics.
func (w *AsyncWriter) Log(msg string) {
	w.queue.Submit(queue.Item{Text: msg, At: time.Now()})
}

// Shutdown stops intake, wakes the consumer, and blocks until every item
// accepted before the call has been written and the sink flushed and closed.
// Shutdown is idempotent: subsequent calls return immediately with no error.
// In-flight writes are never truncated; shutdown waits for the drain rather
// than interrupting it.
func (w *AsyncWriter) Shutdown() error {
	w.closeMutex.Lock()

	if w.closed {
		w.closeMutex.Unlock()

		return nil
	}

	w.closed = true
	w.closeMutex.Unlock()

	w.queue.Close()
	w.wg.Wait()

	return nil
}

// Close implements io.Closer by delegating to Shutdown.
func (w *AsyncWriter) Close() error {
	return w.Shutdown()
}

// DroppedCount reports how many messages were lost to queue overflow or to
// submission after shutdown.
func (w *AsyncWriter) DroppedCount() uint64 {
	return w.queue.Dropped()
}

// Metrics returns a snapshot of the writer's counters.
func (w *AsyncWriter) Metrics() Metrics {
	return Metrics{
		Enqueued:    w.queue.Enqueued(),
		Processed:   w.processed.Load(),
		Dropped:     w.queue.Dropped(),
		WriteErrors: w.writeErrors.Load(),
		Rotations:   w.rotations.Load(),
		QueueDepth:  w.queue.Len(),
	}
}

// consume is the background goroutine draining the queue for the lifetime of
// the writer. It exits exactly once, after the queue is closed and fully
// drained, closing the sink on the way out.
func (w *AsyncWriter) consume() {
	defer w.wg.Done()

	for {
		items, open := w.queue.Drain()

		for _, item := range items {
			w.writeItem(item)
		}

		if !open {
			w.closeSink()

			return
		}
	}
}

// writeItem rotates if the policy asks for it (or if no sink is open) and
// writes one formatted line. Sink failures are reported and swallowed: the
// affected item is dropped and the loop keeps draining so producers are never
// held hostage by a broken sink.
func (w *AsyncWriter) writeItem(item queue.Item) {
	if w.config.Policy.ShouldRotate() || w.sink == nil {
		w.rotate()
	}

	if w.sink == nil {
		w.writeErrors.Add(1)
		w.config.ErrorHandler(ErrNoSinkOpen)
		w.report()

		return
	}

	line := "[" + item.At.Format(w.config.TimeFormat) + "] " + item.Text + "\n"

	_, err := io.WriteString(w.sink, line)
	if err != nil {
		w.writeErrors.Add(1)
		w.config.ErrorHandler(ewrap.Wrap(err, "writing log entry").
			WithMetadata("sink", w.sinkName))
	} else {
		w.processed.Add(1)
	}

	w.report()
}

// rotate closes the active sink (flushing first) and opens the next one named
// by the policy. An open failure leaves the writer sinkless; the next item
// triggers another attempt.
func (w *AsyncWriter) rotate() {
	w.closeSink()

	name := w.config.Policy.NextSinkName()

	sink, err := w.config.Opener.Open(name)
	if err != nil {
		w.config.ErrorHandler(ewrap.Wrapf(err, "opening sink").
			WithMetadata("name", name))

		return
	}

	w.sink = sink
	w.sinkName = name
	w.rotations.Add(1)
}

func (w *AsyncWriter) closeSink() {
	if w.sink == nil {
		return
	}

	err := w.sink.Sync()
	if err != nil {
		w.config.ErrorHandler(ewrap.Wrap(err, "syncing sink").
			WithMetadata("sink", w.sinkName))
	}

	err = w.sink.Close()
	if err != nil {
		w.config.ErrorHandler(ewrap.Wrap(err, "closing sink").
			WithMetadata("sink", w.sinkName))
	}

	w.sink = nil
	w.sinkName = ""
}

func (w *AsyncWriter) report() {
	if w.config.MetricsReporter == nil {
		return
	}

	w.config.MetricsReporter(w.Metrics())
}

var (
	_ Logger    = (*AsyncWriter)(nil)
	_ io.Closer = (*AsyncWriter)(nil)
)
