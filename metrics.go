package logsink

// Metrics is a point-in-time snapshot of a writer's internal counters. It is
// the observable trace of the writer's only user-visible failure mode: data
// loss through dropped or unwritable items.
type Metrics struct {
	// Enqueued counts items accepted into the queue.
	Enqueued uint64
	// Processed counts items successfully written to a sink.
	Processed uint64
	// Dropped counts items lost to overflow or to submission after
	// shutdown.
	Dropped uint64
	// WriteErrors counts items lost to sink open or write failures.
	WriteErrors uint64
	// Rotations counts sink replacements performed after start-up.
	Rotations uint64
	// QueueDepth is the number of items currently buffered.
	QueueDepth int
}
