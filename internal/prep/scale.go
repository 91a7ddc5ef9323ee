package prep

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/parcelprep/internal/frame"
)

// MinMaxScaler maps each column linearly so the fitted min is 0 and the
// fitted max is 1. Values outside the fitted range are not clipped.
type MinMaxScaler struct {
	Columns []string  `json:"columns"`
	Min     []float64 `json:"min"`
	Max     []float64 `json:"max"`
}

// FitMinMax records min and max of each column over train's non-null values.
func FitMinMax(train *frame.Frame, columns []string) (*MinMaxScaler, error) {
	s := &MinMaxScaler{
		Columns: append([]string(nil), columns...),
		Min:     make([]float64, len(columns)),
		Max:     make([]float64, len(columns)),
	}
	for j, name := range columns {
		c, err := numericColumn(train, "fit scaler", name)
		if err != nil {
			return nil, err
		}
		vals := c.Floats()
		if len(vals) == 0 {
			return nil, colErr("fit scaler", name, ErrNoObservations)
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range vals {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.Min[j], s.Max[j] = lo, hi
	}
	return s, nil
}

// Transform returns a new frame holding only the scaled columns, with f's
// index and row order. A zero-range column is shifted but not stretched.
func (s *MinMaxScaler) Transform(f *frame.Frame) (*frame.Frame, error) {
	cols := make([]*frame.Column, len(s.Columns))
	for j, name := range s.Columns {
		c, err := numericColumn(f, "scale", name)
		if err != nil {
			return nil, err
		}
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			span = 1
		}
		vals := make([]float64, c.Len())
		valid := make([]bool, c.Len())
		for i := range vals {
			if v, ok := c.FloatAt(i); ok {
				vals[i], valid[i] = (v-s.Min[j])/span, true
			}
		}
		cols[j] = frame.NewFloat(name, vals, valid)
	}
	return frame.NewWithIndex(f.Index(), cols...)
}

// ScalePartitions fits on train and scales all three partitions.
func ScalePartitions(train, validate, test *frame.Frame, columns []string) (Partitions, *MinMaxScaler, error) {
	s, err := FitMinMax(train, columns)
	if err != nil {
		return Partitions{}, nil, err
	}
	var out Partitions
	if out.Train, err = s.Transform(train); err != nil {
		return Partitions{}, nil, fmt.Errorf("train: %w", err)
	}
	if out.Validate, err = s.Transform(validate); err != nil {
		return Partitions{}, nil, fmt.Errorf("validate: %w", err)
	}
	if out.Test, err = s.Transform(test); err != nil {
		return Partitions{}, nil, fmt.Errorf("test: %w", err)
	}
	return out, s, nil
}
