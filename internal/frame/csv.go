package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// WriteCSV writes f as comma-delimited UTF-8 with the index as the first,
// unnamed column. Nulls are written as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	header := append([]string{""}, f.Names()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(header))
	for i := 0; i < f.Len(); i++ {
		rec[0] = strconv.Itoa(f.index[i])
		for j, c := range f.cols {
			rec[j+1] = formatCell(c, i)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(c *Column, i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Kind {
	case Float:
		return strconv.FormatFloat(c.Float[i], 'f', -1, 64)
	case Time:
		t := c.Time[i]
		if t.Equal(t.Truncate(24 * time.Hour)) {
			return t.Format(dateLayout)
		}
		return t.Format(time.RFC3339)
	default:
		return c.Text[i]
	}
}

// ReadCSV reads a table written by WriteCSV. The first column is the index.
// A column whose non-empty cells all parse as numbers becomes numeric; any
// other column is text. Dates come back as text.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New()
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return New()
	}
	names := append([]string(nil), header[1:]...)
	cells := make([][]string, len(names))
	var index []int
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad index %q: %w", row, rec[0], err)
		}
		index = append(index, label)
		for j := range names {
			v := ""
			if j+1 < len(rec) {
				v = rec[j+1]
			}
			cells[j] = append(cells[j], v)
		}
	}
	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = inferColumn(name, cells[j], len(index))
	}
	return NewWithIndex(index, cols...)
}

func inferColumn(name string, raw []string, n int) *Column {
	if raw == nil {
		raw = make([]string, n)
	}
	nums := make([]float64, len(raw))
	valid := make([]bool, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return NewText(name, raw, nil)
		}
		nums[i] = x
		valid[i] = true
	}
	return NewFloat(name, nums, valid)
}
