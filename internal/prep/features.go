package prep

import (
	"fmt"
	"math"
	"strconv"

	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
)

const (
	FIPSColumn    = "fips"
	CountyColumn  = "county"
	TaxAmount     = "taxamount"
	TaxValue      = "taxvaluedollarcnt"
	TaxRateColumn = "tax_rate"

	// MaxTaxRate is the highest plausible effective property tax rate.
	MaxTaxRate = 0.2
)

// Counties maps the county part of a California FIPS code to its name.
var Counties = map[string]string{
	"037": "Los Angeles",
	"059": "Orange",
	"111": "Ventura",
}

// DeriveCounty turns the numeric fips column into text and adds a county
// column holding everything after the state digit, mapped through Counties.
// Unknown codes are kept as their digits.
func DeriveCounty(f *frame.Frame) (*frame.Frame, error) {
	c, err := numericColumn(f, "derive county", FIPSColumn)
	if err != nil {
		return nil, err
	}
	fips := make([]string, c.Len())
	county := make([]string, c.Len())
	unmapped := map[string]int{}
	for i := range fips {
		v, ok := c.FloatAt(i)
		if !ok {
			return nil, colErr("derive county", FIPSColumn, fmt.Errorf("%w: row %d", ErrNullKey, f.Label(i)))
		}
		fips[i] = strconv.FormatInt(int64(v), 10)
		code := ""
		if len(fips[i]) > 1 {
			code = fips[i][1:]
		}
		if name, ok := Counties[code]; ok {
			county[i] = name
		} else {
			county[i] = code
			unmapped[code]++
		}
	}
	if len(unmapped) > 0 {
		logging.Warn().Interface("codes", unmapped).Msg("fips codes without a county name kept as digits")
	}
	if f, err = f.With(frame.NewText(FIPSColumn, fips, nil)); err != nil {
		return nil, err
	}
	return f.With(frame.NewText(CountyColumn, county, nil))
}

// DeriveTaxRate adds tax_rate = round(taxamount / taxvaluedollarcnt, 3) and
// drops rows above MaxTaxRate. A null or zero assessed value gives a null
// rate, and those rows are kept.
func DeriveTaxRate(f *frame.Frame) (*frame.Frame, error) {
	amt, err := numericColumn(f, "derive tax rate", TaxAmount)
	if err != nil {
		return nil, err
	}
	val, err := numericColumn(f, "derive tax rate", TaxValue)
	if err != nil {
		return nil, err
	}
	rate := make([]float64, f.Len())
	valid := make([]bool, f.Len())
	keep := make([]bool, f.Len())
	for i := range rate {
		a, okA := amt.FloatAt(i)
		v, okV := val.FloatAt(i)
		keep[i] = true
		if !okA || !okV || v == 0 {
			continue
		}
		r := roundHalfEven(a/v, 3)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		rate[i], valid[i] = r, true
		keep[i] = r <= MaxTaxRate
	}
	out, err := f.With(frame.NewFloat(TaxRateColumn, rate, valid))
	if err != nil {
		return nil, err
	}
	before := out.Len()
	out = out.Filter(keep)
	logging.Debug().Int("dropped", before-out.Len()).Msg("implausible tax rates removed")
	return out, nil
}
