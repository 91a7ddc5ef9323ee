package frame

import (
	"math"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	Float Kind = iota
	Text
	Time
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "numeric"
	case Text:
		return "text"
	case Time:
		return "datetime"
	default:
		return "unknown"
	}
}

// Column is a named, nullable, typed vector. Only the slice matching Kind is
// populated. Valid[i] is false for a null cell.
//
// Columns held by a Frame are shared between frames and must be treated as
// read-only; build a new column and swap it in with Frame.With instead.
type Column struct {
	Name  string
	Kind  Kind
	Float []float64
	Text  []string
	Time  []time.Time
	Valid []bool
}

// NewFloat builds a numeric column. A nil valid slice marks every non-NaN
// value as present.
func NewFloat(name string, vals []float64, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(vals))
		for i, v := range vals {
			valid[i] = !math.IsNaN(v)
		}
	}
	return &Column{Name: name, Kind: Float, Float: vals, Valid: valid}
}

// NewText builds a text column. A nil valid slice treats "" as null.
func NewText(name string, vals []string, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(vals))
		for i, v := range vals {
			valid[i] = v != ""
		}
	}
	return &Column{Name: name, Kind: Text, Text: vals, Valid: valid}
}

// NewTime builds a datetime column. A nil valid slice treats the zero time as null.
func NewTime(name string, vals []time.Time, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(vals))
		for i, v := range vals {
			valid[i] = !v.IsZero()
		}
	}
	return &Column{Name: name, Kind: Time, Time: vals, Valid: valid}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Valid) }

// IsNull reports whether cell i is null.
func (c *Column) IsNull(i int) bool {
	if !c.Valid[i] {
		return true
	}
	return c.Kind == Float && math.IsNaN(c.Float[i])
}

// NonNull counts present cells.
func (c *Column) NonNull() int {
	n := 0
	for i := range c.Valid {
		if !c.IsNull(i) {
			n++
		}
	}
	return n
}

// NullCount counts null cells.
func (c *Column) NullCount() int { return c.Len() - c.NonNull() }

// FloatAt returns the numeric value at i and whether it is present.
func (c *Column) FloatAt(i int) (float64, bool) {
	if c.Kind != Float || c.IsNull(i) {
		return 0, false
	}
	return c.Float[i], true
}

// Floats returns the present numeric values in row order.
func (c *Column) Floats() []float64 {
	if c.Kind != Float {
		return nil
	}
	out := make([]float64, 0, len(c.Float))
	for i, v := range c.Float {
		if !c.IsNull(i) {
			out = append(out, v)
		}
	}
	return out
}

// Clone deep-copies the column.
func (c *Column) Clone() *Column {
	cp := &Column{Name: c.Name, Kind: c.Kind, Valid: append([]bool(nil), c.Valid...)}
	switch c.Kind {
	case Float:
		cp.Float = append([]float64(nil), c.Float...)
	case Text:
		cp.Text = append([]string(nil), c.Text...)
	case Time:
		cp.Time = append([]time.Time(nil), c.Time...)
	}
	return cp
}

// take gathers the given row positions into a new column.
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Valid: make([]bool, len(rows))}
	switch c.Kind {
	case Float:
		out.Float = make([]float64, len(rows))
	case Text:
		out.Text = make([]string, len(rows))
	case Time:
		out.Time = make([]time.Time, len(rows))
	}
	for j, r := range rows {
		out.Valid[j] = c.Valid[r]
		switch c.Kind {
		case Float:
			out.Float[j] = c.Float[r]
		case Text:
			out.Text[j] = c.Text[r]
		case Time:
			out.Time[j] = c.Time[r]
		}
	}
	return out
}
