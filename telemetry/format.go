package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/finmodel/finmodel/output"
)

// slowThreshold marks timings highlighted as slow in styled reports.
const slowThreshold = 100 * time.Millisecond

// formatTimingTree writes a root timer and its children:
//
//	calc model.yaml: 12ms
//	├─ pipeline.validate: 1ms
//	└─ pipeline.calculate: 9ms
//	   └─ period: 8ms (×12)
func formatTimingTree(w io.Writer, root *timerNode, styles *output.Styles, now time.Time) {
	name := root.name
	if styles != nil {
		name = styles.Keyword(name)
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", name, formatTiming(root, styles, now))

	for i, child := range root.children {
		formatNode(w, child, "", i == len(root.children)-1, styles, now)
	}
}

func formatNode(w io.Writer, node *timerNode, prefix string, isLast bool, styles *output.Styles, now time.Time) {
	branch, extension := "├─ ", "│  "
	if isLast {
		branch, extension = "└─ ", "   "
	}

	tree := prefix + branch
	if styles != nil {
		tree = styles.Dim(tree)
	}
	_, _ = fmt.Fprintf(w, "%s%s: %s\n", tree, node.name, formatTiming(node, styles, now))

	for i, child := range node.children {
		formatNode(w, child, prefix+extension, i == len(node.children)-1, styles, now)
	}
}

func formatTiming(node *timerNode, styles *output.Styles, now time.Time) string {
	d := node.duration(now)
	text := formatDuration(d)
	if node.count > 1 {
		text = fmt.Sprintf("%s (×%d)", text, node.count)
	}
	if styles != nil {
		return styles.Timing(text, d >= slowThreshold)
	}
	return text
}

// formatDuration shows milliseconds below one second and seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}
