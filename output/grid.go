package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
)

const (
	// ColumnSpacing is the number of spaces between grid columns.
	ColumnSpacing = 2
	// IndentWidth is the label indentation per hierarchy level.
	IndentWidth = 2
	// MinLabelWidth is the narrowest label column a width limit can produce.
	MinLabelWidth = 8

	labelHeader = "Account"
	truncation  = "..."
)

// Cell is one value of the grid.
type Cell struct {
	Value decimal.Decimal
	// Failed marks a value that could not be calculated.
	Failed bool
	// Missing marks a value absent from the store.
	Missing bool
}

// Row is one account line of the grid.
type Row struct {
	Label string
	Depth int
	Cells []Cell
}

// Grid renders account values per period as an aligned table. Label
// widths are measured in terminal cells, so wide CJK account names align.
type Grid struct {
	// Places is the number of decimal places shown.
	Places int32

	// LabelWidth is the width of the label column.
	// If 0, it is selected from the contents.
	LabelWidth int

	// MaxWidth bounds the line width by shrinking the label column.
	// If 0, lines are never truncated.
	MaxWidth int

	styles *Styles
}

// GridOption is a functional option for configuring a Grid.
type GridOption func(*Grid)

// WithPlaces sets the number of decimal places.
func WithPlaces(places int32) GridOption {
	return func(g *Grid) {
		g.Places = places
	}
}

// WithLabelWidth sets a fixed label column width.
func WithLabelWidth(width int) GridOption {
	return func(g *Grid) {
		g.LabelWidth = width
	}
}

// WithMaxWidth limits the rendered line width, typically to the terminal width.
func WithMaxWidth(width int) GridOption {
	return func(g *Grid) {
		g.MaxWidth = width
	}
}

// NewGrid creates a grid that styles its output with styles.
func NewGrid(styles *Styles, opts ...GridOption) *Grid {
	g := &Grid{
		Places: 2,
		styles: styles,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// gridMetrics holds calculated width information for rendering.
type gridMetrics struct {
	labelWidth   int
	columnWidths []int
}

func (m gridMetrics) lineWidth() int {
	width := m.labelWidth
	for _, w := range m.columnWidths {
		width += ColumnSpacing + w
	}
	return width
}

// calculateMetrics performs a single pass over the rows to size every column.
func (g *Grid) calculateMetrics(columns []string, rows []Row) gridMetrics {
	m := gridMetrics{
		labelWidth:   runewidth.StringWidth(labelHeader),
		columnWidths: make([]int, len(columns)),
	}
	for i, c := range columns {
		m.columnWidths[i] = runewidth.StringWidth(c)
	}

	for _, row := range rows {
		m.labelWidth = max(m.labelWidth, runewidth.StringWidth(indent(row.Depth)+row.Label))
		for i, cell := range row.Cells {
			if i >= len(columns) {
				break
			}
			m.columnWidths[i] = max(m.columnWidths[i], runewidth.StringWidth(g.cellText(cell)))
		}
	}

	if g.LabelWidth > 0 {
		m.labelWidth = g.LabelWidth
	}
	if g.MaxWidth > 0 && m.lineWidth() > g.MaxWidth {
		values := m.lineWidth() - m.labelWidth
		m.labelWidth = max(MinLabelWidth, g.MaxWidth-values)
	}
	return m
}

// Render writes the header, a separator and one line per row.
func (g *Grid) Render(w io.Writer, columns []string, rows []Row) error {
	m := g.calculateMetrics(columns, rows)

	var buf strings.Builder
	buf.WriteString(g.styles.Keyword(runewidth.FillRight(labelHeader, m.labelWidth)))
	for i, c := range columns {
		buf.WriteString(strings.Repeat(" ", ColumnSpacing))
		buf.WriteString(g.styles.Period(runewidth.FillLeft(c, m.columnWidths[i])))
	}
	buf.WriteByte('\n')
	buf.WriteString(g.styles.Dim(strings.Repeat("-", m.lineWidth())))
	buf.WriteByte('\n')

	for _, row := range rows {
		label := runewidth.Truncate(indent(row.Depth)+row.Label, m.labelWidth, truncation)
		buf.WriteString(g.styles.Account(runewidth.FillRight(label, m.labelWidth)))
		for i := range columns {
			buf.WriteString(strings.Repeat(" ", ColumnSpacing))
			var cell Cell
			if i < len(row.Cells) {
				cell = row.Cells[i]
			} else {
				cell.Missing = true
			}
			buf.WriteString(g.styleCell(cell, runewidth.FillLeft(g.cellText(cell), m.columnWidths[i])))
		}
		buf.WriteByte('\n')
	}

	_, err := io.WriteString(w, buf.String())
	return err
}

func (g *Grid) cellText(c Cell) string {
	switch {
	case c.Failed:
		return "ERR"
	case c.Missing:
		return "-"
	default:
		return FormatNumber(c.Value, g.Places)
	}
}

func (g *Grid) styleCell(c Cell, text string) string {
	switch {
	case c.Failed:
		return g.styles.Error(text)
	case c.Missing, c.Value.IsZero():
		return g.styles.Dim(text)
	case c.Value.IsNegative():
		return g.styles.Negative(text)
	default:
		return g.styles.Amount(text)
	}
}

func indent(depth int) string {
	return strings.Repeat(" ", depth*IndentWidth)
}

// FormatNumber renders d with a fixed number of places and comma
// thousands separators, e.g. -1,234.50.
func FormatNumber(d decimal.Decimal, places int32) string {
	s := d.Abs().StringFixed(places)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if d.Round(places).IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%s", sign, grouped.String(), frac)
}
