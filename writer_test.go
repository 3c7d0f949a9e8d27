package logsink

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memorySink records written lines in memory with controllable behaviour.
type memorySink struct {
	mu       sync.Mutex
	name     string
	lines    []string
	synced   int
	closed   bool
	writeErr error

	gate        chan struct{} // when non-nil, Write blocks until the gate closes
	started     chan struct{} // closed on the first Write attempt
	startedOnce sync.Once
}

func (s *memorySink) Write(p []byte) (int, error) {
	if s.started != nil {
		s.startedOnce.Do(func() { close(s.started) })
	}

	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return 0, s.writeErr
	}

	s.lines = append(s.lines, strings.TrimSuffix(string(p), "\n"))

	return len(p), nil
}

func (s *memorySink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.synced++

	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *memorySink) getLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.lines))
	copy(out, s.lines)

	return out
}

func (s *memorySink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// memoryOpener hands out memory sinks and records them in open order.
type memoryOpener struct {
	mu      sync.Mutex
	sinks   []*memorySink
	openErr error
	onOpen  func(*memorySink)
}

func (o *memoryOpener) Open(name string) (Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}

	sink := &memorySink{name: name}
	if o.onOpen != nil {
		o.onOpen(sink)
	}

	o.sinks = append(o.sinks, sink)

	return sink, nil
}

func (o *memoryOpener) getSinks() []*memorySink {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*memorySink, len(o.sinks))
	copy(out, o.sinks)

	return out
}

func (o *memoryOpener) setOpenErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.openErr = err
}

// message strips the "[timestamp] " prefix from a persisted line.
func message(t *testing.T, line string) string {
	t.Helper()

	idx := strings.Index(line, "] ")
	require.Positive(t, idx, "line %q is missing the timestamp prefix", line)
	require.Equal(t, byte('['), line[0])

	return line[idx+2:]
}

func newTestWriter(t *testing.T, config Config) (*AsyncWriter, *memoryOpener) {
	t.Helper()

	opener := &memoryOpener{}
	config.Opener = opener

	if config.Policy == nil {
		config.Policy = NewStaticName("test.log")
	}

	if config.ErrorHandler == nil {
		config.ErrorHandler = func(error) {}
	}

	writer, err := New(config)
	require.NoError(t, err)

	return writer, opener
}

func TestAsyncWriter_FIFOSingleProducer(t *testing.T) {
	writer, opener := newTestWriter(t, Config{})

	const n = 100

	for i := range n {
		writer.Log(fmt.Sprintf("msg-%d", i))
	}

	require.NoError(t, writer.Shutdown())

	sinks := opener.getSinks()
	require.Len(t, sinks, 1)

	lines := sinks[0].getLines()
	require.Len(t, lines, n)

	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("msg-%d", i), message(t, line))
	}

	metrics := writer.Metrics()
	require.Equal(t, uint64(n), metrics.Enqueued)
	require.Equal(t, uint64(n), metrics.Processed)
	require.Equal(t, uint64(0), metrics.Dropped)
}

func TestAsyncWriter_ShutdownClosesSink(t *testing.T) {
	writer, opener := newTestWriter(t, Config{})

	writer.Log("last words")
	require.NoError(t, writer.Shutdown())

	sinks := opener.getSinks()
	require.Len(t, sinks, 1)
	require.True(t, sinks[0].isClosed(), "sink must be closed after shutdown")

	sinks[0].mu.Lock()
	synced := sinks[0].synced
	sinks[0].mu.Unlock()
	require.Positive(t, synced, "sink must be flushed before close")
}

func TestAsyncWriter_ShutdownIdempotent(t *testing.T) {
	writer, opener := newTestWriter(t, Config{})

	writer.Log("once")

	require.NoError(t, writer.Shutdown())
	require.NoError(t, writer.Shutdown())
	require.NoError(t, writer.Close())

	require.Len(t, opener.getSinks()[0].getLines(), 1, "repeated shutdown must not duplicate output")
}

func TestAsyncWriter_LogAfterShutdown(t *testing.T) {
	writer, opener := newTestWriter(t, Config{})

	writer.Log("before")
	require.NoError(t, writer.Shutdown())

	writer.Log("after") // silently dropped, never a crash

	require.Equal(t, uint64(1), writer.DroppedCount())
	require.Len(t, opener.getSinks()[0].getLines(), 1)
}

func TestAsyncWriter_OverflowDropNewest(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})

	opener := &memoryOpener{onOpen: func(s *memorySink) {
		s.gate = gate
		s.started = started
	}}

	writer, err := New(Config{
		MaxQueueSize: 2,
		Policy:       NewStaticName("test.log"),
		Opener:       opener,
		ErrorHandler: func(error) {},
	})
	require.NoError(t, err)

	// Park the consumer inside the first write, then fill the queue.
	writer.Log("a")
	<-started

	writer.Log("b")
	writer.Log("c")
	writer.Log("d") // queue holds b,c; d is dropped

	require.Equal(t, uint64(1), writer.DroppedCount())

	close(gate)
	require.NoError(t, writer.Shutdown())

	var got []string
	for _, line := range opener.getSinks()[0].getLines() {
		got = append(got, message(t, line))
	}

	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestAsyncWriter_OverflowDropOldest(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})

	opener := &memoryOpener{onOpen: func(s *memorySink) {
		s.gate = gate
		s.started = started
	}}

	writer, err := New(Config{
		MaxQueueSize: 2,
		Overflow:     OverflowDropOldest,
		Policy:       NewStaticName("test.log"),
		Opener:       opener,
		ErrorHandler: func(error) {},
	})
	require.NoError(t, err)

	writer.Log("a")
	<-started

	writer.Log("b")
	writer.Log("c")
	writer.Log("d") // evicts b; queue holds c,d

	require.Equal(t, uint64(1), writer.DroppedCount())

	close(gate)
	require.NoError(t, writer.Shutdown())

	var got []string
	for _, line := range opener.getSinks()[0].getLines() {
		got = append(got, message(t, line))
	}

	require.Equal(t, []string{"a", "c", "d"}, got)
}

func TestAsyncWriter_BoundedMemory(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})

	opener := &memoryOpener{onOpen: func(s *memorySink) {
		s.gate = gate
		s.started = started
	}}

	const capacity = 8

	writer, err := New(Config{
		MaxQueueSize: capacity,
		Policy:       NewStaticName("test.log"),
		Opener:       opener,
		ErrorHandler: func(error) {},
	})
	require.NoError(t, err)

	writer.Log("first")
	<-started

	const burst = 1000

	for i := range burst {
		writer.Log(fmt.Sprintf("burst-%d", i))

		if depth := writer.Metrics().QueueDepth; depth > capacity {
			t.Fatalf("queue depth %d exceeded capacity %d", depth, capacity)
		}
	}

	metrics := writer.Metrics()
	require.Equal(t, uint64(capacity+1), metrics.Enqueued)
	require.Equal(t, uint64(burst-capacity), metrics.Dropped)

	close(gate)
	require.NoError(t, writer.Shutdown())

	require.Len(t, opener.getSinks()[0].getLines(), capacity+1)
}

func TestAsyncWriter_TwoProducers(t *testing.T) {
	writer, opener := newTestWriter(t, Config{})

	const perProducer = 50

	var wg sync.WaitGroup

	wg.Add(2)

	for p := range 2 {
		go func(id int) {
			defer wg.Done()

			for i := range perProducer {
				writer.Log(fmt.Sprintf("p%d-%d", id, i))
			}
		}(p)
	}

	wg.Wait()
	require.NoError(t, writer.Shutdown())

	lines := opener.getSinks()[0].getLines()
	require.Len(t, lines, 2*perProducer)

	// Interleaving between producers is nondeterministic, but each
	// producer's own messages must appear in that producer's order.
	next := map[int]int{}

	for _, line := range lines {
		var id, seq int

		_, err := fmt.Sscanf(message(t, line), "p%d-%d", &id, &seq)
		require.NoError(t, err)
		require.Equal(t, next[id], seq, "producer %d out of order", id)
		next[id]++
	}

	require.Equal(t, perProducer, next[0])
	require.Equal(t, perProducer, next[1])
}

func TestAsyncWriter_CountRotation(t *testing.T) {
	writer, opener := newTestWriter(t, Config{
		Policy: NewCountRotation(5, "app.log"),
	})

	const n = 12

	for i := range n {
		writer.Log(fmt.Sprintf("msg-%d", i))
	}

	require.NoError(t, writer.Shutdown())

	sinks := opener.getSinks()
	require.Len(t, sinks, 3)

	require.Equal(t, "app.log.1", sinks[0].name)
	require.Equal(t, "app.log.2", sinks[1].name)
	require.Equal(t, "app.log.3", sinks[2].name)

	require.Len(t, sinks[0].getLines(), 5)
	require.Len(t, sinks[1].getLines(), 5)
	require.Len(t, sinks[2].getLines(), 2)

	// Submission order is preserved across the partition boundaries.
	i := 0

	for _, sink := range sinks {
		for _, line := range sink.getLines() {
			require.Equal(t, fmt.Sprintf("msg-%d", i), message(t, line))
			i++
		}

		require.True(t, sink.isClosed())
	}

	require.Equal(t, uint64(2), writer.Metrics().Rotations)
}

func TestAsyncWriter_InitialOpenFailure(t *testing.T) {
	opener := &memoryOpener{openErr: fmt.Errorf("disk on fire")}

	_, err := New(Config{
		Policy: NewStaticName("test.log"),
		Opener: opener,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "opening initial sink")
}

func TestAsyncWriter_SinkWriteFailure(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []error
	)

	opener := &memoryOpener{onOpen: func(s *memorySink) {
		s.writeErr = fmt.Errorf("disk full")
	}}

	writer, err := New(Config{
		Policy: NewStaticName("test.log"),
		Opener: opener,
		ErrorHandler: func(err error) {
			mu.Lock()
			defer mu.Unlock()

			reported = append(reported, err)
		},
	})
	require.NoError(t, err)

	writer.Log("one")
	writer.Log("two")
	writer.Log("three")

	// A persistently broken sink must never block shutdown.
	require.NoError(t, writer.Shutdown())

	metrics := writer.Metrics()
	require.Equal(t, uint64(3), metrics.WriteErrors)
	require.Equal(t, uint64(0), metrics.Processed)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
}

func TestAsyncWriter_RotationOpenFailureRecovers(t *testing.T) {
	writer, opener := newTestWriter(t, Config{
		Policy: NewCountRotation(1, "app.log"),
	})

	// First item lands in the initial sink.
	writer.Log("ok-1")

	waitFor(t, func() bool { return writer.Metrics().Processed == 1 })

	// Break the opener: the next item forces a rotation that fails, so the
	// item is dropped but the consumer keeps running.
	opener.setOpenErr(fmt.Errorf("no space left"))
	writer.Log("lost")

	waitFor(t, func() bool { return writer.Metrics().WriteErrors == 1 })

	// Heal the opener: the next item re-opens a sink and goes through.
	opener.setOpenErr(nil)
	writer.Log("ok-2")

	require.NoError(t, writer.Shutdown())

	metrics := writer.Metrics()
	require.Equal(t, uint64(2), metrics.Processed)
	require.Equal(t, uint64(1), metrics.WriteErrors)

	sinks := opener.getSinks()
	require.Len(t, sinks, 2)
	require.Equal(t, "ok-2", message(t, sinks[1].getLines()[0]))
}

func TestAsyncWriter_MetricsReporter(t *testing.T) {
	var (
		mu   sync.Mutex
		last Metrics
	)

	opener := &memoryOpener{}

	writer, err := New(Config{
		Policy: NewStaticName("test.log"),
		Opener: opener,
		MetricsReporter: func(m Metrics) {
			mu.Lock()
			defer mu.Unlock()

			last = m
		},
	})
	require.NoError(t, err)

	writer.Log("observed")
	require.NoError(t, writer.Shutdown())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, uint64(1), last.Processed)
}

func TestAsyncWriter_LineFormat(t *testing.T) {
	writer, opener := newTestWriter(t, Config{TimeFormat: time.RFC3339})

	before := time.Now().Add(-time.Second)
	writer.Log("formatted")
	after := time.Now().Add(time.Second)

	require.NoError(t, writer.Shutdown())

	lines := opener.getSinks()[0].getLines()
	require.Len(t, lines, 1)

	line := lines[0]
	require.Equal(t, byte('['), line[0])

	end := strings.Index(line, "] ")
	require.Positive(t, end)

	stamp, err := time.Parse(time.RFC3339, line[1:end])
	require.NoError(t, err)
	require.True(t, stamp.After(before) && stamp.Before(after), "timestamp %v outside [%v, %v]", stamp, before, after)
	require.Equal(t, "formatted", line[end+2:])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}
