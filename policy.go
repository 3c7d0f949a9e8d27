package logsink

import (
	"strconv"
	"time"
)

// IntervalRotation rotates the sink once a wall-clock interval has elapsed
// since the previous rotation, naming each sink by formatting the current
// time with a layout such as "log_20060102_150405.txt".
//
// The policy is stateful and, like every RotationPolicy, queried only by the
// writer's consumer goroutine, so it carries no lock.
type IntervalRotation struct {
	interval time.Duration
	pattern  string
	last     time.Time
	now      func() time.Time
}

// NewIntervalRotation creates a policy rotating every interval. An empty
// pattern falls back to DefaultFileNamePattern.
func NewIntervalRotation(interval time.Duration, pattern string) *IntervalRotation {
	if pattern == "" {
		pattern = DefaultFileNamePattern
	}

	p := &IntervalRotation{
		interval: interval,
		pattern:  pattern,
		now:      time.Now,
	}
	p.last = p.now()

	return p
}

// ShouldRotate reports whether the interval has elapsed, and resets the
// countdown when it has.
func (p *IntervalRotation) ShouldRotate() bool {
	now := p.now()
	if now.Sub(p.last) >= p.interval {
		p.last = now

		return true
	}

	return false
}

// NextSinkName names the next sink after the current time.
func (p *IntervalRotation) NextSinkName() string {
	return p.now().Format(p.pattern)
}

// CountRotation rotates the sink after every N written items, producing
// sequentially numbered names such as "app.log.1", "app.log.2", and so on.
type CountRotation struct {
	every  int
	prefix string
	seen   int
	seq    int
}

// NewCountRotation creates a policy rotating after every n items. A
// non-positive n is treated as 1.
func NewCountRotation(n int, prefix string) *CountRotation {
	if n <= 0 {
		n = 1
	}

	if prefix == "" {
		prefix = "app.log"
	}

	return &CountRotation{every: n, prefix: prefix}
}

// ShouldRotate counts queries; the writer asks once per item, so the policy
// requests a rotation on the item that would exceed the per-sink budget.
func (p *CountRotation) ShouldRotate() bool {
	p.seen++
	if p.seen > p.every {
		p.seen = 1

		return true
	}

	return false
}

// NextSinkName advances the sequence number.
func (p *CountRotation) NextSinkName() string {
	p.seq++

	return p.prefix + "." + strconv.Itoa(p.seq)
}

// StaticName is a policy that never rotates and always names the same sink.
// It pairs with sinks that manage rotation themselves, such as the
// size-rotating sink in pkg/sizesink.
type StaticName struct {
	name string
}

// NewStaticName creates a never-rotating policy for the given sink name.
func NewStaticName(name string) *StaticName {
	return &StaticName{name: name}
}

// ShouldRotate always reports false.
func (*StaticName) ShouldRotate() bool { return false }

// NextSinkName returns the fixed name.
func (p *StaticName) NextSinkName() string { return p.name }
