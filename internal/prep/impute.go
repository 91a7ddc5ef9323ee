package prep

import (
	"fmt"

	"github.com/KaramelBytes/parcelprep/internal/frame"
)

// Strategy is how an imputer derives its fill value.
type Strategy string

const (
	MostFrequent Strategy = "most_frequent"
	Mean         Strategy = "mean"
)

// ImputeSpec names the columns to fill. Columns in neither list are left alone.
type ImputeSpec struct {
	Discrete   []string
	Continuous []string
}

// Fill is one fitted column statistic.
type Fill struct {
	Column   string   `json:"column"`
	Strategy Strategy `json:"strategy"`
	Number   float64  `json:"number"`
	Text     string   `json:"text,omitempty"`
	kind     frame.Kind
}

// Imputer holds fill values fitted on a training partition.
type Imputer struct {
	Fills []Fill
}

// FitImputer learns the mode of each discrete column and the mean of each
// continuous column from train alone.
func FitImputer(train *frame.Frame, spec ImputeSpec) (*Imputer, error) {
	seen := make(map[string]bool, len(spec.Discrete))
	for _, n := range spec.Discrete {
		seen[n] = true
	}
	for _, n := range spec.Continuous {
		if seen[n] {
			return nil, colErr("fit imputer", n, ErrRoleConflict)
		}
	}

	im := &Imputer{}
	for _, name := range spec.Discrete {
		c, err := train.Column(name)
		if err != nil {
			return nil, colErr("fit imputer", name, ErrMissingColumn)
		}
		fill := Fill{Column: name, Strategy: MostFrequent, kind: c.Kind}
		switch c.Kind {
		case frame.Float:
			vals := c.Floats()
			if len(vals) == 0 {
				return nil, colErr("fit imputer", name, ErrNoObservations)
			}
			fill.Number = mode(vals)
		case frame.Text:
			v, ok := textMode(c)
			if !ok {
				return nil, colErr("fit imputer", name, ErrNoObservations)
			}
			fill.Text = v
		default:
			return nil, colErr("fit imputer", name, fmt.Errorf("%w: cannot impute %s", ErrColumnKind, c.Kind))
		}
		im.Fills = append(im.Fills, fill)
	}
	for _, name := range spec.Continuous {
		c, err := numericColumn(train, "fit imputer", name)
		if err != nil {
			return nil, err
		}
		vals := c.Floats()
		if len(vals) == 0 {
			return nil, colErr("fit imputer", name, ErrNoObservations)
		}
		im.Fills = append(im.Fills, Fill{Column: name, Strategy: Mean, Number: mean(vals), kind: frame.Float})
	}
	return im, nil
}

// Transform returns a copy of f with nulls in the fitted columns replaced.
func (im *Imputer) Transform(f *frame.Frame) (*frame.Frame, error) {
	for _, fill := range im.Fills {
		c, err := f.Column(fill.Column)
		if err != nil {
			return nil, colErr("impute", fill.Column, ErrMissingColumn)
		}
		if c.Kind != fill.kind {
			return nil, colErr("impute", fill.Column, fmt.Errorf("%w: fitted on %s, have %s", ErrColumnKind, fill.kind, c.Kind))
		}
		out := c.Clone()
		for i := range out.Valid {
			if !out.IsNull(i) {
				continue
			}
			switch fill.kind {
			case frame.Float:
				out.Float[i] = fill.Number
			case frame.Text:
				out.Text[i] = fill.Text
			}
			out.Valid[i] = true
		}
		if f, err = f.With(out); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ImputePartitions fits on p.Train and applies the same fills to all three.
func ImputePartitions(p Partitions, spec ImputeSpec) (Partitions, *Imputer, error) {
	im, err := FitImputer(p.Train, spec)
	if err != nil {
		return Partitions{}, nil, err
	}
	var out Partitions
	if out.Train, err = im.Transform(p.Train); err != nil {
		return Partitions{}, nil, fmt.Errorf("train: %w", err)
	}
	if out.Validate, err = im.Transform(p.Validate); err != nil {
		return Partitions{}, nil, fmt.Errorf("validate: %w", err)
	}
	if out.Test, err = im.Transform(p.Test); err != nil {
		return Partitions{}, nil, fmt.Errorf("test: %w", err)
	}
	return out, im, nil
}
