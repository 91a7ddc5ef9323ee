package prep

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
)

const (
	LandUseColumn = "propertylandusedesc"
	DateColumn    = "transactiondate"
	TargetColumn  = "logerror"

	// AnomalousDate is a lone 2018 transaction in a 2017 dataset; it is
	// replaced by the modal transaction date.
	AnomalousDate   = "2018-05-25"
	ReplacementDate = "2017-06-30"
)

var (
	// SingleUnitLandUses are the residential categories kept by FilterSingleUnit.
	SingleUnitLandUses = []string{
		"Single Family Residential",
		"Mobile Home",
		"Manufactured, Modular, Prefabricated Homes",
	}
	// SparseColumns are too sparse to impute and are always removed.
	SparseColumns = []string{
		"heatingorsystemtypeid", "buildingqualitytypeid", "propertyzoningdesc",
		"unitcnt", "heatingorsystemdesc",
	}
	// RedundantColumns carry no signal: a single assessment year and row ids
	// (the join yields one id per source table).
	RedundantColumns = []string{"assessmentyear", "id", "id.1"}
)

// CleanOptions parameterizes PrepZillow.
type CleanOptions struct {
	OutlierK       float64
	OutlierColumns []string
	ColKeepFrac    float64
	RowKeepFrac    float64
}

// DefaultCleanOptions mirrors the values the dataset was explored with.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		OutlierK:       1.5,
		OutlierColumns: []string{"calculatedfinishedsquarefeet", "bedroomcnt", "bathroomcnt"},
		ColKeepFrac:    0.5,
		RowKeepFrac:    0.5,
	}
}

// FilterCategories keeps rows whose text column value is in allowed.
func FilterCategories(f *frame.Frame, column string, allowed []string) (*frame.Frame, error) {
	c, err := f.Column(column)
	if err != nil {
		return nil, colErr("filter", column, ErrMissingColumn)
	}
	if c.Kind != frame.Text {
		return nil, colErr("filter", column, fmt.Errorf("%w: want text, have %s", ErrColumnKind, c.Kind))
	}
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	keep := make([]bool, f.Len())
	for i := range keep {
		keep[i] = !c.IsNull(i) && ok[c.Text[i]]
	}
	return f.Filter(keep), nil
}

// FilterSingleUnit keeps single-unit residential parcels.
func FilterSingleUnit(f *frame.Frame) (*frame.Frame, error) {
	return FilterCategories(f, LandUseColumn, SingleUnitLandUses)
}

// Fence is an open interval (Lower, Upper) a value must fall strictly inside.
type Fence struct {
	Column string
	Lower  float64
	Upper  float64
}

// TukeyFence computes (Q1 - k*IQR, Q3 + k*IQR) over the non-null values of a
// numeric column.
func TukeyFence(f *frame.Frame, column string, k float64) (Fence, error) {
	c, err := numericColumn(f, "tukey fence", column)
	if err != nil {
		return Fence{}, err
	}
	q1, q3 := quartiles(c)
	iqr := q3 - q1
	return Fence{Column: column, Lower: q1 - k*iqr, Upper: q3 + k*iqr}, nil
}

// RemoveOutliers drops every row that falls outside the Tukey fence of any
// listed column. All fences are computed on the input table, so the result
// does not depend on column order. Null cells never fall inside a fence, so
// their rows are dropped as well.
func RemoveOutliers(f *frame.Frame, k float64, columns []string) (*frame.Frame, error) {
	keep := make([]bool, f.Len())
	for i := range keep {
		keep[i] = true
	}
	for _, name := range columns {
		fence, err := TukeyFence(f, name, k)
		if err != nil {
			return nil, err
		}
		c, _ := f.Column(name)
		dropped := 0
		for i := range keep {
			v, ok := c.FloatAt(i)
			if !ok || v <= fence.Lower || v >= fence.Upper {
				if keep[i] {
					dropped++
				}
				keep[i] = false
			}
		}
		logging.Debug().Str("column", name).Float64("lower", fence.Lower).Float64("upper", fence.Upper).
			Int("dropped", dropped).Msg("outlier fence")
	}
	return f.Filter(keep), nil
}

// HandleMissingValues prunes sparse columns, then sparse rows.
//
// A column survives when its non-null count is at least
// round(colKeepFrac * rows). A row survives when its non-null count is at least
// round(rowKeepFrac * columns), using the width left after the column pass.
// The two passes repeat until neither drops anything, so the result is a
// fixed point: running it again with the same fractions is a no-op.
func HandleMissingValues(f *frame.Frame, colKeepFrac, rowKeepFrac float64) *frame.Frame {
	for {
		rows, width := f.Len(), f.Width()

		colThresh := int(math.RoundToEven(colKeepFrac * float64(f.Len())))
		var sparse []string
		for _, c := range f.Columns() {
			if c.NonNull() < colThresh {
				sparse = append(sparse, c.Name)
			}
		}
		f, _ = f.DropIfPresent(sparse...)

		rowThresh := int(math.RoundToEven(rowKeepFrac * float64(f.Width())))
		keep := make([]bool, f.Len())
		for i := range keep {
			keep[i] = f.RowNonNull(i) >= rowThresh
		}
		f = f.Filter(keep)

		if f.Len() == rows && f.Width() == width {
			return f
		}
		logging.Debug().Strs("columns_dropped", sparse).Int("rows_dropped", rows-f.Len()).
			Msg("pruned sparse data")
	}
}

// DropSparseColumns removes SparseColumns and RedundantColumns. Names already
// pruned upstream are skipped.
func DropSparseColumns(f *frame.Frame) *frame.Frame {
	names := append(append([]string(nil), SparseColumns...), RedundantColumns...)
	out, missing := f.DropIfPresent(names...)
	if len(missing) > 0 {
		logging.Debug().Strs("columns", missing).Msg("fixed drop: columns already absent")
	}
	return out
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NormalizeDates rewrites the literal date from to to, then converts the
// column to datetime. A column that is already datetime has matching dates
// rewritten in place.
func NormalizeDates(f *frame.Frame, column, from, to string) (*frame.Frame, error) {
	c, err := f.Column(column)
	if err != nil {
		return nil, colErr("normalize dates", column, ErrMissingColumn)
	}
	fromT, err := parseDate(from)
	if err != nil {
		return nil, fmt.Errorf("normalize dates: bad source date %q: %w", from, err)
	}
	toT, err := parseDate(to)
	if err != nil {
		return nil, fmt.Errorf("normalize dates: bad replacement date %q: %w", to, err)
	}
	vals := make([]time.Time, c.Len())
	valid := make([]bool, c.Len())
	for i := range vals {
		if c.IsNull(i) {
			continue
		}
		var t time.Time
		switch c.Kind {
		case frame.Time:
			t = c.Time[i]
		case frame.Text:
			if t, err = parseDate(c.Text[i]); err != nil {
				return nil, colErr("normalize dates", column, fmt.Errorf("row %d: %w", f.Label(i), err))
			}
		default:
			return nil, colErr("normalize dates", column, fmt.Errorf("%w: want text or datetime, have %s", ErrColumnKind, c.Kind))
		}
		if t.Equal(fromT) {
			t = toT
		}
		vals[i], valid[i] = t, true
	}
	return f.With(frame.NewTime(column, vals, valid))
}

// AbsTarget replaces a numeric column with its absolute value. Applied to
// logerror it turns a signed-error target into an error-magnitude target.
func AbsTarget(f *frame.Frame, column string) (*frame.Frame, error) {
	c, err := numericColumn(f, "abs target", column)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, c.Len())
	for i, v := range c.Float {
		vals[i] = math.Abs(v)
	}
	return f.With(frame.NewFloat(column, vals, append([]bool(nil), c.Valid...)))
}

// PrepZillow runs the cleaning steps in order: single-unit filter, outlier
// removal, null pruning, fixed column drops, date normalization, absolute
// target.
func PrepZillow(f *frame.Frame, opt CleanOptions) (*frame.Frame, error) {
	f, err := FilterSingleUnit(f)
	if err != nil {
		return nil, err
	}
	logging.Debug().Int("rows", f.Len()).Msg("filtered to single-unit properties")

	if f, err = RemoveOutliers(f, opt.OutlierK, opt.OutlierColumns); err != nil {
		return nil, err
	}
	f = HandleMissingValues(f, opt.ColKeepFrac, opt.RowKeepFrac)
	f = DropSparseColumns(f)

	if f, err = NormalizeDates(f, DateColumn, AnomalousDate, ReplacementDate); err != nil {
		return nil, err
	}
	if f, err = AbsTarget(f, TargetColumn); err != nil {
		return nil, err
	}
	logging.Info().Int("rows", f.Len()).Int("columns", f.Width()).Msg("cleaned")
	return f, nil
}
