// Package report renders aggregation results and stored runs as terminal tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-curling-metrics/internal/aggregator"
)

// NoData is printed where a statistic is undefined.
const NoData = "—"

// StatOptions selects the columns PrintStatTable shows.
type StatOptions struct {
	Spread  bool // SD and median
	AtLeast bool // P(>=k) for every configured k
	Exactly bool // P(=k) for every configured k

	// Rate treats outcomes as 0/1 and prints the mean as a percentage with a
	// 95% Wilson interval instead of an average.
	Rate bool
}

// Points is the usual column set for end and shot scores.
var Points = StatOptions{Spread: true, AtLeast: true, Exactly: true}

// Rate is the column set for win/loss style outcomes.
var Rate = StatOptions{Rate: true}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignCenter},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))
}

// PrintTitle prints a section header.
func PrintTitle(w io.Writer, title string) {
	fmt.Fprintf(w, "\n--- %s ---\n\n", title)
}

// PrintStatTable prints one row per cell of t. Cells without records still
// appear, with NoData in every statistic.
func PrintStatTable(w io.Writer, title string, t *aggregator.Table, opts StatOptions) {
	PrintTitle(w, title)

	header := make([]any, 0, len(t.Dims)+8)
	for _, d := range t.Dims {
		header = append(header, strings.ToUpper(d))
	}
	header = append(header, "N")
	if opts.Rate {
		header = append(header, "RATE", "95% CI")
	} else {
		header = append(header, "AVG")
		if opts.Spread {
			header = append(header, "SD", "MED")
		}
		if opts.AtLeast {
			for _, k := range t.AtLeast {
				header = append(header, fmt.Sprintf("%s+", fmtThreshold(k)))
			}
		}
		if opts.Exactly {
			for _, k := range t.Exactly {
				header = append(header, fmt.Sprintf("P(%s)", fmtThreshold(k)))
			}
		}
	}
	header = append(header, "SAMPLE")

	table := newTable(w)
	table.Header(header...)
	for _, r := range t.Rows {
		row := make([]any, 0, len(header))
		for _, k := range r.Keys {
			row = append(row, k)
		}
		row = append(row, strconv.Itoa(r.Count))
		if opts.Rate {
			row = append(row, fmtPct(r.Mean), fmtWilson(r))
		} else {
			row = append(row, fmtFloat(r.Mean, 2))
			if opts.Spread {
				row = append(row, fmtFloat(r.StdDev, 2), fmtFloat(r.Median, 1))
			}
			if opts.AtLeast {
				for _, e := range r.AtLeast {
					row = append(row, fmtPct(e))
				}
			}
			if opts.Exactly {
				for _, e := range r.Exactly {
					row = append(row, fmtPct(e))
				}
			}
		}
		row = append(row, SampleFlag(r.Count))
		table.Append(row...)
	}
	table.Render()
}

// CellFunc renders one cell of a pivoted cross table.
type CellFunc func(aggregator.Row) string

// MeanCell prints the average with its sample size.
func MeanCell(r aggregator.Row) string {
	if !r.Mean.OK {
		return NoData
	}
	return fmt.Sprintf("%.2f (%d)", r.Mean.Value, r.Count)
}

// CountCell prints the number of records in the cell.
func CountCell(r aggregator.Row) string {
	return strconv.Itoa(r.Count)
}

// AtLeastCell prints P(>=k) for the i-th configured threshold.
func AtLeastCell(i int) CellFunc {
	return func(r aggregator.Row) string {
		if i >= len(r.AtLeast) || !r.AtLeast[i].OK {
			return NoData
		}
		return fmt.Sprintf("%s (%d)", fmtPct(r.AtLeast[i]), r.Count)
	}
}

// AtLeastLabel names the i-th configured threshold of t, e.g. "2+".
func AtLeastLabel(t *aggregator.Table, i int) string {
	if i >= len(t.AtLeast) {
		return NoData
	}
	return fmtThreshold(t.AtLeast[i]) + "+"
}

// PrintCrossTable pivots a two dimensional table: the first dimension's
// levels become rows and the second's become columns.
func PrintCrossTable(w io.Writer, title string, t *aggregator.Table, cell CellFunc) error {
	if len(t.Dims) != 2 {
		return fmt.Errorf("cross table needs 2 dimensions, got %d", len(t.Dims))
	}
	PrintTitle(w, title)

	header := []any{fmt.Sprintf("%s \\ %s", strings.ToUpper(t.Dims[0]), strings.ToUpper(t.Dims[1]))}
	for _, l := range t.Levels[1] {
		header = append(header, l)
	}
	table := newTable(w)
	table.Header(header...)
	for _, a := range t.Levels[0] {
		row := []any{a}
		for _, b := range t.Levels[1] {
			r, ok := t.Row(a, b)
			if !ok {
				row = append(row, NoData)
				continue
			}
			row = append(row, cell(r))
		}
		table.Append(row...)
	}
	table.Render()
	return nil
}

// PrintDistribution prints the share of records per level.
func PrintDistribution(w io.Writer, title, label string, shares []aggregator.Share) {
	PrintTitle(w, title)
	table := newTable(w)
	table.Header(strings.ToUpper(label), "N", "SHARE")
	for _, s := range shares {
		table.Append(s.Level, strconv.Itoa(s.Count), fmtPct(s.Share))
	}
	table.Render()
}

// PrintNetTable prints net end scores per cell of net alongside the steal
// rate from steal, a table over the same dimensions with 0/1 outcomes.
func PrintNetTable(w io.Writer, title string, net, steal *aggregator.Table) {
	PrintTitle(w, title)

	header := make([]any, 0, len(net.Dims)+len(net.AtLeast)+4)
	for _, d := range net.Dims {
		header = append(header, strings.ToUpper(d))
	}
	header = append(header, "N", "AVG NET", "STEAL")
	for _, k := range net.AtLeast {
		header = append(header, fmt.Sprintf("%s+ NET", fmtThreshold(k)))
	}
	header = append(header, "SAMPLE")

	table := newTable(w)
	table.Header(header...)
	for _, r := range net.Rows {
		row := make([]any, 0, len(header))
		for _, k := range r.Keys {
			row = append(row, k)
		}
		st, _ := steal.Row(r.Keys...)
		row = append(row, strconv.Itoa(r.Count), fmtFloat(r.Mean, 2), fmtPct(st.Mean))
		for _, e := range r.AtLeast {
			row = append(row, fmtPct(e))
		}
		row = append(row, SampleFlag(r.Count))
		table.Append(row...)
	}
	table.Render()
}

// Leverage compares power play and standard ends under the same label.
type Leverage struct {
	Label     string
	PowerPlay aggregator.Row
	Standard  aggregator.Row
}

// PrintLeverage prints expected points with and without the power play and
// the difference between them.
func PrintLeverage(w io.Writer, title string, rows []Leverage) {
	PrintTitle(w, title)
	table := newTable(w)
	table.Header("SCOPE", "PP N", "PP AVG", "STD N", "STD AVG", "DELTA")
	for _, l := range rows {
		delta := aggregator.Compare(l.PowerPlay.Mean, l.Standard.Mean)
		d := NoData
		if delta.OK {
			d = fmt.Sprintf("%+.2f", delta.Value)
		}
		table.Append(
			l.Label,
			strconv.Itoa(l.PowerPlay.Count),
			fmtFloat(l.PowerPlay.Mean, 2),
			strconv.Itoa(l.Standard.Count),
			fmtFloat(l.Standard.Mean, 2),
			d,
		)
	}
	table.Render()
}

func fmtFloat(e aggregator.Estimate, prec int) string {
	if !e.OK {
		return NoData
	}
	return strconv.FormatFloat(e.Value, 'f', prec, 64)
}

func fmtPct(e aggregator.Estimate) string {
	if !e.OK {
		return NoData
	}
	return fmt.Sprintf("%.0f%%", 100*e.Value)
}

func fmtThreshold(k float64) string {
	return strconv.FormatFloat(k, 'g', -1, 64)
}

// fmtWilson prints the interval of a 0/1 mean.
func fmtWilson(r aggregator.Row) string {
	if !r.Mean.OK {
		return NoData
	}
	hits := int(math.Round(r.Mean.Value * float64(r.Count)))
	lo, hi := wilsonCI(hits, r.Count)
	return fmt.Sprintf("%.0f–%.0f%%", 100*lo, 100*hi)
}

// SampleFlag rates a sample size as OK, LOW or VERY_LOW.
func SampleFlag(n int) string {
	switch {
	case n >= 50:
		return "OK"
	case n >= 20:
		return "LOW"
	default:
		return "VERY_LOW"
	}
}

// wilsonCI computes the 95% Wilson score confidence interval for a proportion.
// Returns (lo, hi) as fractions in [0, 1].
func wilsonCI(hits, n int) (lo, hi float64) {
	if n == 0 {
		return 0, 1
	}
	z := 1.96
	p := float64(hits) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}
