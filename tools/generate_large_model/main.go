// Large Model Generator
//
// This tool generates a large model file for performance testing and profiling.
// It creates a three-statement model with many product lines, a formula per
// line and monthly periods to stress-test the resolver and the pipeline.
//
// Usage:
//
//	go run main.go > large.yaml
//	go run main.go 2000 120 > large.yaml  # Specify product lines and periods
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLines   = 500
	defaultPeriods = 60
	actualPeriods  = 12
)

var (
	products = []string{
		"Widgets", "Gadgets", "Gizmos", "Sprockets", "Cogs",
		"Levers", "Pulleys", "Valves", "Pumps", "Gears",
	}

	// The generated file is reproducible for a given size.
	rng = rand.New(rand.NewSource(1))
)

func main() {
	lines := defaultLines
	periods := defaultPeriods
	if len(os.Args) > 1 {
		if n, err := strconv.Atoi(os.Args[1]); err == nil && n > 0 {
			lines = n
		}
	}
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > actualPeriods {
			periods = n
		}
	}

	var b strings.Builder
	writeHeader(&b)
	writePeriods(&b, periods)
	writeAccounts(&b, lines)
	writeValues(&b, lines)

	fmt.Print(b.String())
	fmt.Fprintf(os.Stderr, "\nGenerated %d bytes with %d product lines and %d periods\n", b.Len(), lines, periods)
}

func writeHeader(b *strings.Builder) {
	fmt.Fprintln(b, "# Large model for performance testing")
	fmt.Fprintln(b, "# Generated:", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(b)
	fmt.Fprintln(b, "settings:")
	fmt.Fprintln(b, "  revenueAccountId: sales")
	fmt.Fprintln(b, "  retainedEarningsAccountId: retained_earnings")
	fmt.Fprintln(b, "  cashAccountId: cash")
	fmt.Fprintln(b)
}

func writePeriods(b *strings.Builder, periods int) {
	fmt.Fprintln(b, "periods:")
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < periods; i++ {
		d := start.AddDate(0, i, 0)
		fmt.Fprintf(b, "  - {id: %q, sequence: %d, year: %d, month: %d, historical: %t}\n",
			periodID(i), i+1, d.Year(), int(d.Month()), i < actualPeriods)
	}
	fmt.Fprintln(b)
}

func writeAccounts(b *strings.Builder, lines int) {
	fmt.Fprintln(b, "accounts:")

	groups := []struct {
		id, name, polarity string
		section            int
	}{
		{"sales", "Sales", "credit", 1},
		{"cogs", "Cost of goods sold", "debit", 2},
		{"opex", "Operating expenses", "debit", 3},
		{"margins", "Margins", "", 6},
	}
	for _, g := range groups {
		param := "{type: childrenSum}"
		if g.id == "margins" {
			param = "null"
		}
		account(b, g.id, g.name, "", "pl", g.polarity, [3]int{1, g.section, 0}, param, "")
	}

	for i := 1; i <= lines; i++ {
		name := lineName(i)
		account(b, lineID("sales", i), name+" sales", "sales", "pl", "credit", [3]int{1, 1, i},
			fmt.Sprintf("{type: growthRate, value: %s}", rate(0.01, 0.05)), "")
		account(b, lineID("cogs", i), name+" cost", "cogs", "pl", "debit", [3]int{1, 2, i},
			fmt.Sprintf("{type: percentage, value: %s, base: %s}", rate(0.4, 0.7), lineID("sales", i)), "")
		account(b, lineID("opex", i), name+" overhead", "opex", "pl", "debit", [3]int{1, 3, i},
			fmt.Sprintf("{type: percentageOfRevenue, value: %s}", rate(0.001, 0.01)), "")
		account(b, lineID("margin", i), name+" margin", "margins", "pl", "", [3]int{1, 6, i},
			fmt.Sprintf("{type: formula, text: \"ROUND((%s - %s) / %s, 4)\"}",
				lineID("sales", i), lineID("cogs", i), lineID("sales", i)), "")
		account(b, lineID("receivables", i), name+" receivables", "", "bs", "debit", [3]int{2, 1, i + 10},
			fmt.Sprintf("{type: percentage, value: %s, base: %s}", rate(0.2, 0.5), lineID("sales", i)), "")
	}

	account(b, "depreciation", "Depreciation", "", "pl", "debit", [3]int{1, 4, 1},
		"{type: constant, value: 100}", "{type: adjustment, target: ppe, operation: subtract}")
	account(b, "net_income", "Net income", "", "pl", "credit", [3]int{1, 5, 1},
		`{type: formula, text: "sales - cogs - opex - depreciation"}`, "{type: baseProfit}")
	account(b, "capex", "Capital expenditure", "", "ppe", "debit", [3]int{3, 1, 1},
		"{type: constant, value: 150}", "{type: adjustment, target: ppe, operation: add}")
	account(b, "cash", "Cash", "", "bs", "debit", [3]int{2, 1, 1}, "", "")
	account(b, "ppe", "Property, plant and equipment", "", "bs", "debit", [3]int{2, 1, 2}, "", "")
	account(b, "retained_earnings", "Retained earnings", "", "bs", "credit", [3]int{2, 3, 1}, "", "")
	fmt.Fprintln(b)
}

func writeValues(b *strings.Builder, lines int) {
	first := periodID(0)
	fmt.Fprintln(b, "values:")
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(b, "  %s: {%q: %s}\n", lineID("sales", i), first, amount(1000, 50000))
		fmt.Fprintf(b, "  %s: {%q: %s}\n", lineID("receivables", i), first, amount(100, 5000))
	}
	fmt.Fprintf(b, "  cash: {%q: %s}\n", first, amount(10000, 100000))
	fmt.Fprintf(b, "  ppe: {%q: %s}\n", first, amount(50000, 500000))
	fmt.Fprintf(b, "  retained_earnings: {%q: %s}\n", first, amount(10000, 100000))
}

func account(b *strings.Builder, id, name, parent, sheet, polarity string, order [3]int, param, impact string) {
	fmt.Fprintf(b, "  - id: %s\n    name: %q\n", id, name)
	if parent != "" {
		fmt.Fprintf(b, "    parent: %s\n", parent)
	}
	fmt.Fprintf(b, "    sheet: %s\n", sheet)
	if polarity != "" {
		fmt.Fprintf(b, "    polarity: %s\n", polarity)
	}
	fmt.Fprintf(b, "    order: [%d, %d, %d]\n", order[0], order[1], order[2])
	if param != "" {
		fmt.Fprintf(b, "    parameter: %s\n", param)
	}
	if impact != "" {
		fmt.Fprintf(b, "    impact: %s\n", impact)
	}
}

func periodID(i int) string {
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
	return d.Format("2006-01")
}

func lineID(prefix string, i int) string {
	return fmt.Sprintf("%s_%04d", prefix, i)
}

func lineName(i int) string {
	return fmt.Sprintf("%s %d", products[i%len(products)], i)
}

func rate(lo, hi float64) string {
	return strconv.FormatFloat(lo+rng.Float64()*(hi-lo), 'f', 4, 64)
}

func amount(lo, hi int) string {
	return strconv.Itoa(lo + rng.Intn(hi-lo))
}
