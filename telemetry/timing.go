package telemetry

import (
	"io"
	"sync"
	"time"
)

// TimingCollector builds a tree of timed operations. It is safe for
// concurrent use, so timers may be started from several goroutines.
type TimingCollector struct {
	mu    sync.Mutex
	roots []*span
	stack []*span // running timers started through Start
	now   func() time.Time
}

type span struct {
	name     string
	start    time.Time
	end      time.Time
	children []*span
}

func (s *span) duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// NewTimingCollector creates an empty collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{now: time.Now}
}

// Start begins timing an operation.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &span{name: name, start: c.now()}
	if n := len(c.stack); n > 0 {
		parent := c.stack[n-1]
		parent.children = append(parent.children, s)
	} else {
		c.roots = append(c.roots, s)
	}
	c.stack = append(c.stack, s)
	return &timingTimer{collector: c, span: s, stacked: true}
}

// Report writes the timing tree to w.
func (c *TimingCollector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, root := range c.roots {
		writeTree(w, root)
	}
}

type timingTimer struct {
	collector *TimingCollector
	span      *span
	stacked   bool
	once      sync.Once
}

// End stops the timer.
func (t *timingTimer) End() {
	t.once.Do(func() {
		c := t.collector
		c.mu.Lock()
		defer c.mu.Unlock()

		t.span.end = c.now()
		if !t.stacked {
			return
		}
		for i := len(c.stack) - 1; i >= 0; i-- {
			if c.stack[i] == t.span {
				c.stack = append(c.stack[:i], c.stack[i+1:]...)
				break
			}
		}
	})
}

// Child starts a nested timer. Children do not move the collector's
// current position, so siblings can run concurrently.
func (t *timingTimer) Child(name string) Timer {
	c := t.collector
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &span{name: name, start: c.now()}
	t.span.children = append(t.span.children, s)
	return &timingTimer{collector: c, span: s}
}
