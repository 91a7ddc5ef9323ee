// Package report renders compact per-partition summaries.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/parcelprep/internal/frame"
)

// maxTop is the number of most common values listed for text columns.
const maxTop = 3

// Summary is a markdown-friendly description of one table.
type Summary struct {
	Name string
	Rows int
	Cols []ColumnSummary
}

// ColumnSummary captures kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|text|datetime
	NonNull int
	Missing int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	// Text top values, or first/last date for datetime columns
	TopValues []CategoryCount
	First     string
	Last      string
}

type CategoryCount struct {
	Value string
	Count int
}

// MissingPct is the share of null cells, in percent.
func (c ColumnSummary) MissingPct() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Missing) * 100.0 / float64(total)
}

// Summarize describes every column of f.
func Summarize(name string, f *frame.Frame) Summary {
	s := Summary{Name: name, Rows: f.Len()}
	for _, c := range f.Columns() {
		cs := ColumnSummary{Name: c.Name, Kind: c.Kind.String(), NonNull: c.NonNull(), Missing: c.NullCount()}
		switch c.Kind {
		case frame.Float:
			vals := c.Floats()
			if len(vals) > 0 {
				cs.Min, cs.Max = vals[0], vals[0]
				sum := 0.0
				for _, v := range vals {
					if v < cs.Min {
						cs.Min = v
					}
					if v > cs.Max {
						cs.Max = v
					}
					sum += v
				}
				cs.Mean = sum / float64(len(vals))
			}
		case frame.Text:
			counts := map[string]int{}
			for i, v := range c.Text {
				if !c.IsNull(i) {
					counts[v]++
				}
			}
			for v, n := range counts {
				cs.TopValues = append(cs.TopValues, CategoryCount{Value: v, Count: n})
			}
			sort.Slice(cs.TopValues, func(i, j int) bool {
				a, b := cs.TopValues[i], cs.TopValues[j]
				if a.Count != b.Count {
					return a.Count > b.Count
				}
				return a.Value < b.Value
			})
			if len(cs.TopValues) > maxTop {
				cs.TopValues = cs.TopValues[:maxTop]
			}
		case frame.Time:
			first, last := -1, -1
			for i, t := range c.Time {
				if c.IsNull(i) {
					continue
				}
				if first < 0 || t.Before(c.Time[first]) {
					first = i
				}
				if last < 0 || t.After(c.Time[last]) {
					last = i
				}
			}
			if first >= 0 {
				cs.First = c.Time[first].Format("2006-01-02")
				cs.Last = c.Time[last].Format("2006-01-02")
			}
		}
		s.Cols = append(s.Cols, cs)
	}
	return s
}

// Markdown renders the summary in the CLI's bracketed-section layout.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("Partition: %s\n", s.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", s.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(s.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range s.Cols {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, c.MissingPct()))
		switch c.Kind {
		case "numeric":
			if c.NonNull > 0 {
				b.WriteString(fmt.Sprintf(" - min %.4g, max %.4g, mean %.4g", c.Min, c.Max, c.Mean))
			}
		case "text":
			if len(c.TopValues) > 0 {
				b.WriteString(" - top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
		case "datetime":
			if c.First != "" {
				b.WriteString(fmt.Sprintf(" - %s to %s", c.First, c.Last))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Markdown renders several summaries separated by blank lines.
func Markdown(summaries ...Summary) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = s.Markdown()
	}
	return strings.Join(parts, "\n")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
