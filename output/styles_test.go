package output

import (
	"bytes"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestStylesKeepText(t *testing.T) {
	var buf bytes.Buffer
	styles := NewStyles(&buf)

	tests := []struct {
		name  string
		style func(string) string
		text  string
	}{
		{"Error", styles.Error, "failed"},
		{"Account", styles.Account, "retained_earnings"},
		{"Amount", styles.Amount, "1,234.50"},
		{"Negative", styles.Negative, "-30.00"},
		{"Period", styles.Period, "2025"},
		{"Keyword", styles.Keyword, "calc"},
		{"Dim", styles.Dim, "secondary"},
		{"FastTiming", func(s string) string { return styles.Timing(s, false) }, "3ms"},
		{"SlowTiming", func(s string) string { return styles.Timing(s, true) }, "3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.style(tt.text), tt.text)
		})
	}
}

func TestStylesPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	styles := NewStyles(&buf)

	// A buffer is not a terminal, so no escape sequences are emitted.
	assert.Equal(t, "value", styles.Negative("value"))
	assert.Equal(t, "value", styles.Keyword("value"))
}
