package telemetry

import (
	"io"
	"sync"
	"time"

	"github.com/finmodel/finmodel/output"
)

// TimingCollector records a tree of timers. Sibling timers sharing a name
// are merged into one node, so a per-period timer started for every period
// of a run shows up once with its total duration and a count.
type TimingCollector struct {
	mu     sync.Mutex
	roots  []*timerNode
	styles *output.Styles
}

type timerNode struct {
	name     string
	count    int
	elapsed  time.Duration
	running  map[int]time.Time // start time per open span
	nextSpan int
	children []*timerNode
}

// Option configures a TimingCollector.
type Option func(*TimingCollector)

// WithStyles renders the report with terminal styles.
func WithStyles(styles *output.Styles) Option {
	return func(c *TimingCollector) {
		c.styles = styles
	}
}

// NewTimingCollector creates a new timing collector.
func NewTimingCollector(opts ...Option) *TimingCollector {
	c := &TimingCollector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a top-level timer.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := findOrAdd(&c.roots, name)
	return c.open(node)
}

// Report writes the timing tree to w. Timers that never ended are
// reported up to the time of the call.
func (c *TimingCollector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, root := range c.roots {
		formatTimingTree(w, root, c.styles, now)
	}
}

// open starts a new span on node. The caller holds c.mu.
func (c *TimingCollector) open(node *timerNode) Timer {
	if node.running == nil {
		node.running = make(map[int]time.Time)
	}
	span := node.nextSpan
	node.nextSpan++
	node.count++
	node.running[span] = time.Now()
	return &timingTimer{collector: c, node: node, span: span}
}

func findOrAdd(nodes *[]*timerNode, name string) *timerNode {
	for _, n := range *nodes {
		if n.name == name {
			return n
		}
	}
	n := &timerNode{name: name}
	*nodes = append(*nodes, n)
	return n
}

// duration is the recorded time plus the time of spans still open at now.
func (n *timerNode) duration(now time.Time) time.Duration {
	d := n.elapsed
	for _, start := range n.running {
		d += now.Sub(start)
	}
	return d
}

type timingTimer struct {
	collector *TimingCollector
	node      *timerNode
	span      int
}

// End stops the timer. Ending a timer twice has no effect.
func (t *timingTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	start, ok := t.node.running[t.span]
	if !ok {
		return
	}
	delete(t.node.running, t.span)
	t.node.elapsed += time.Since(start)
}

// Child starts a timer nested under this one.
func (t *timingTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	node := findOrAdd(&t.node.children, name)
	return t.collector.open(node)
}
