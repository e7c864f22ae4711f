package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestNoOpCollector(t *testing.T) {
	collector := noOpCollector{}

	timer := collector.Start("test")
	timer.Child("child").End()
	timer.End()

	var buf bytes.Buffer
	collector.Report(&buf)
	assert.Equal(t, 0, buf.Len())
}

func TestFromContextReturnsNoOpWhenMissing(t *testing.T) {
	collector := FromContext(context.Background())
	_, ok := collector.(noOpCollector)
	assert.True(t, ok, "got %T", collector)
}

func TestWithCollector(t *testing.T) {
	collector := NewTimingCollector()
	ctx := WithCollector(context.Background(), collector)

	retrieved, ok := FromContext(ctx).(*TimingCollector)
	assert.True(t, ok)
	assert.True(t, retrieved == collector)
}

func TestStartTimer(t *testing.T) {
	t.Run("WithoutCollector", func(t *testing.T) {
		timer := StartTimer(context.Background(), "noop")
		_, ok := timer.(noOpTimer)
		assert.True(t, ok)
		timer.End()
	})

	t.Run("NestsUnderRootTimer", func(t *testing.T) {
		collector := NewTimingCollector()
		ctx := WithCollector(context.Background(), collector)
		root := collector.Start("calc")
		ctx = WithRootTimer(ctx, root)

		StartTimer(ctx, "pipeline.validate").End()
		StartTimer(ctx, "pipeline.calculate").End()
		root.End()

		var buf bytes.Buffer
		collector.Report(&buf)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, 3, len(lines))
		assert.True(t, strings.HasPrefix(lines[0], "calc: "))
		assert.True(t, strings.HasPrefix(lines[1], "├─ pipeline.validate: "))
		assert.True(t, strings.HasPrefix(lines[2], "└─ pipeline.calculate: "))
	})

	t.Run("TopLevelWithoutRoot", func(t *testing.T) {
		collector := NewTimingCollector()
		ctx := WithCollector(context.Background(), collector)
		StartTimer(ctx, "first").End()
		StartTimer(ctx, "second").End()

		var buf bytes.Buffer
		collector.Report(&buf)
		assert.Contains(t, buf.String(), "first: ")
		assert.Contains(t, buf.String(), "second: ")
		assert.NotContains(t, buf.String(), "─")
	})
}

func TestTimingCollectorMergesSiblings(t *testing.T) {
	collector := NewTimingCollector()

	root := collector.Start("calculate")
	for i := 0; i < 3; i++ {
		period := root.Child("period")
		time.Sleep(time.Millisecond)
		period.End()
	}
	root.End()

	var buf bytes.Buffer
	collector.Report(&buf)
	assert.Contains(t, buf.String(), "└─ period: ")
	assert.Contains(t, buf.String(), "(×3)")
	assert.Equal(t, 1, strings.Count(buf.String(), "period"))
}

func TestTimingCollectorDeepNesting(t *testing.T) {
	collector := NewTimingCollector()

	t1 := collector.Start("Level 1")
	t2 := t1.Child("Level 2")
	t3 := t2.Child("Level 3")
	t3.End()
	t2.End()
	t1.End()

	var buf bytes.Buffer
	collector.Report(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 3, len(lines))
	assert.True(t, strings.HasPrefix(lines[2], "   └─ Level 3: "), "got %q", lines[2])
}

func TestTimerEndIsIdempotent(t *testing.T) {
	collector := NewTimingCollector()
	timer := collector.Start("once")
	timer.End()
	elapsed := collector.roots[0].elapsed
	time.Sleep(2 * time.Millisecond)
	timer.End()
	assert.Equal(t, elapsed, collector.roots[0].elapsed)
}

func TestReportIncludesRunningTimers(t *testing.T) {
	collector := NewTimingCollector()
	collector.Start("running")
	time.Sleep(2 * time.Millisecond)

	var buf bytes.Buffer
	collector.Report(&buf)
	assert.Contains(t, buf.String(), "running: ")
	assert.True(t, collector.roots[0].duration(time.Now()) > 0)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{1 * time.Millisecond, "1ms"},
		{10 * time.Millisecond, "10ms"},
		{999 * time.Millisecond, "999ms"},
		{1 * time.Second, "1.00s"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func TestTimingCollectorEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	NewTimingCollector().Report(&buf)
	assert.Equal(t, 0, buf.Len())
}
