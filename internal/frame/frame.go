package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrLengthMismatch is returned when columns (or the index) differ in length.
	ErrLengthMismatch = errors.New("column length mismatch")
	// ErrNoSuchColumn is returned when a named column does not exist.
	ErrNoSuchColumn = errors.New("no such column")
)

// Frame is a labeled two-dimensional table. Rows are identified by an integer
// index label that is carried through filtering and splitting; it is not a
// primary key and only needs to be unique within the originating table.
type Frame struct {
	index []int
	cols  []*Column
	pos   map[string]int
}

// New builds a frame with a default 0..n-1 index.
func New(cols ...*Column) (*Frame, error) {
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return NewWithIndex(idx, cols...)
}

// NewWithIndex builds a frame with an explicit index.
func NewWithIndex(index []int, cols ...*Column) (*Frame, error) {
	f := &Frame{index: index, cols: make([]*Column, 0, len(cols)), pos: make(map[string]int, len(cols))}
	for _, c := range cols {
		if c.Len() != len(index) {
			return nil, fmt.Errorf("column %q has %d rows, index has %d: %w", c.Name, c.Len(), len(index), ErrLengthMismatch)
		}
		if _, dup := f.pos[c.Name]; dup {
			return nil, fmt.Errorf("%q: %w", c.Name, ErrDuplicateColumn)
		}
		f.pos[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// Len returns the row count.
func (f *Frame) Len() int { return len(f.index) }

// Width returns the column count.
func (f *Frame) Width() int { return len(f.cols) }

// Index returns a copy of the row labels.
func (f *Frame) Index() []int { return append([]int(nil), f.index...) }

// Label returns the index label of row i.
func (f *Frame) Label(i int) int { return f.index[i] }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. The slice is a copy; the columns are not.
func (f *Frame) Columns() []*Column { return append([]*Column(nil), f.cols...) }

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.pos[name]
	return ok
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.pos[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNoSuchColumn)
	}
	return f.cols[i], nil
}

// RowNonNull counts the present cells in row i.
func (f *Frame) RowNonNull(i int) int {
	n := 0
	for _, c := range f.cols {
		if !c.IsNull(i) {
			n++
		}
	}
	return n
}

// Take returns a new frame holding the given row positions, in that order.
func (f *Frame) Take(rows []int) *Frame {
	idx := make([]int, len(rows))
	for j, r := range rows {
		idx[j] = f.index[r]
	}
	out := &Frame{index: idx, cols: make([]*Column, len(f.cols)), pos: f.copyPos()}
	for i, c := range f.cols {
		out.cols[i] = c.take(rows)
	}
	return out
}

// Filter keeps rows where keep[i] is true, preserving order.
func (f *Frame) Filter(keep []bool) *Frame {
	rows := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}
	if len(rows) == f.Len() {
		return f
	}
	return f.Take(rows)
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewWithIndex(f.Index(), cols...)
}

// DropIfPresent removes whichever of the named columns exist and reports the
// names that were absent.
func (f *Frame) DropIfPresent(names ...string) (*Frame, []string) {
	gone := make(map[string]bool, len(names))
	var missing []string
	for _, n := range names {
		if f.Has(n) {
			gone[n] = true
		} else {
			missing = append(missing, n)
		}
	}
	if len(gone) == 0 {
		return f, missing
	}
	keep := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !gone[c.Name] {
			keep = append(keep, c)
		}
	}
	out, _ := NewWithIndex(f.index, keep...)
	return out, missing
}

// With adds col, or replaces the column of the same name in place.
func (f *Frame) With(col *Column) (*Frame, error) {
	if col.Len() != f.Len() {
		return nil, fmt.Errorf("column %q has %d rows, frame has %d: %w", col.Name, col.Len(), f.Len(), ErrLengthMismatch)
	}
	cols := f.Columns()
	if i, ok := f.pos[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return NewWithIndex(f.index, cols...)
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{index: f.Index(), cols: make([]*Column, len(f.cols)), pos: f.copyPos()}
	for i, c := range f.cols {
		out.cols[i] = c.Clone()
	}
	return out
}

func (f *Frame) copyPos() map[string]int {
	m := make(map[string]int, len(f.pos))
	for k, v := range f.pos {
		m[k] = v
	}
	return m
}
