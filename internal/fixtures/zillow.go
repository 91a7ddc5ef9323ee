// Package fixtures builds synthetic tables shaped like the joined Zillow
// result set, for tests.
package fixtures

import (
	"math"
	"math/rand"

	"github.com/KaramelBytes/parcelprep/internal/frame"
)

// Anomalies records which generated rows carry deliberate defects.
type Anomalies struct {
	BedOutlier  int // bedroomcnt = 20
	SqftOutlier int // calculatedfinishedsquarefeet = 50000
	Duplex      int // propertylandusedesc outside the single-unit list
	BadTaxRate  int // taxamount = 0.5 * taxvaluedollarcnt
	LateSale    int // transactiondate = 2018-05-25
	UnknownFIPS int // fips = 6999
	MissingSqft int // calculatedfinishedsquarefeet null
}

// Zillow returns n rows (n >= 20) generated from seed, and the row
// positions of the planted anomalies.
func Zillow(n int, seed int64) (*frame.Frame, Anomalies) {
	rng := rand.New(rand.NewSource(seed))
	a := Anomalies{BedOutlier: 1, SqftOutlier: 2, Duplex: 3, BadTaxRate: 4, LateSale: 5, UnknownFIPS: 6, MissingSqft: 7}

	num := func() []float64 { return make([]float64, n) }
	id, parcel, logerr := num(), num(), num()
	beds, baths, sqft, bathnbr, fullbath := num(), num(), num(), num(), num()
	city, zip, year, tract := num(), num(), num(), num()
	sqft12, lot, structVal, value, landVal, tax := num(), num(), num(), num(), num(), num()
	fips, lat, lon, assessYear := num(), num(), num(), num()
	heatID, qualityID, units, pool := num(), num(), num(), num()
	landUse := make([]string, n)
	dates := make([]string, n)
	zoning := make([]string, n)
	heatDesc := make([]string, n)

	fipsCodes := []float64{6037, 6059, 6111}
	uses := []string{"Single Family Residential", "Single Family Residential", "Mobile Home", "Manufactured, Modular, Prefabricated Homes"}
	nan := math.NaN()
	maybe := func(v float64, p float64) float64 {
		if rng.Float64() < p {
			return nan
		}
		return v
	}

	for i := 0; i < n; i++ {
		id[i] = float64(i + 1)
		parcel[i] = float64(10000000 + i)
		logerr[i] = rng.NormFloat64() * 0.1
		dates[i] = "2017-0" + string(rune('1'+rng.Intn(9))) + "-15"
		landUse[i] = uses[rng.Intn(len(uses))]

		beds[i] = float64(2 + rng.Intn(3))
		baths[i] = float64(1 + rng.Intn(3))
		sqft[i] = 1200 + float64(rng.Intn(1200))
		bathnbr[i] = maybe(baths[i], 0.05)
		fullbath[i] = maybe(baths[i], 0.05)
		city[i] = maybe(float64(12447+rng.Intn(5)), 0.05)
		zip[i] = maybe(float64(96000+rng.Intn(50)), 0.05)
		year[i] = maybe(float64(1950+rng.Intn(60)), 0.05)
		tract[i] = maybe(60371000000000+float64(rng.Intn(1000)), 0.05)
		sqft12[i] = maybe(sqft[i], 0.05)
		lot[i] = maybe(4000+float64(rng.Intn(6000)), 0.05)
		structVal[i] = maybe(100000+float64(rng.Intn(200000)), 0.05)
		landVal[i] = 50000 + float64(rng.Intn(200000))
		value[i] = maybe(structVal[i]+landVal[i], 0.02)
		if math.IsNaN(value[i]) {
			value[i] = 400000
		}
		tax[i] = maybe(value[i]*(0.011+rng.Float64()*0.004), 0.05)

		fips[i] = fipsCodes[rng.Intn(len(fipsCodes))]
		lat[i] = 34000000 + float64(rng.Intn(100000))
		lon[i] = -118000000 - float64(rng.Intn(100000))
		assessYear[i] = 2016

		heatID[i] = maybe(2, 0.35)
		qualityID[i] = maybe(float64(4+rng.Intn(4)), 0.35)
		units[i] = maybe(1, 0.35)
		pool[i] = maybe(1, 0.9)
		if rng.Float64() < 0.6 {
			zoning[i] = "LAR1"
			heatDesc[i] = "Central"
		}
	}

	beds[a.BedOutlier] = 20
	sqft[a.SqftOutlier] = 50000
	landUse[a.Duplex] = "Duplex (2 Units, Any Combination)"
	value[a.BadTaxRate] = 100000
	tax[a.BadTaxRate] = 50000
	dates[a.LateSale] = "2018-05-25"
	fips[a.UnknownFIPS] = 6999
	sqft[a.MissingSqft] = nan

	f, err := frame.New(
		frame.NewFloat("id", id, nil),
		frame.NewFloat("parcelid", parcel, nil),
		frame.NewFloat("logerror", logerr, nil),
		frame.NewText("transactiondate", dates, nil),
		frame.NewFloat("bathroomcnt", baths, nil),
		frame.NewFloat("bedroomcnt", beds, nil),
		frame.NewFloat("buildingqualitytypeid", qualityID, nil),
		frame.NewFloat("calculatedbathnbr", bathnbr, nil),
		frame.NewFloat("calculatedfinishedsquarefeet", sqft, nil),
		frame.NewFloat("finishedsquarefeet12", sqft12, nil),
		frame.NewFloat("fips", fips, nil),
		frame.NewFloat("fullbathcnt", fullbath, nil),
		frame.NewFloat("heatingorsystemtypeid", heatID, nil),
		frame.NewFloat("latitude", lat, nil),
		frame.NewFloat("longitude", lon, nil),
		frame.NewFloat("lotsizesquarefeet", lot, nil),
		frame.NewFloat("poolcnt", pool, nil),
		frame.NewText("propertyzoningdesc", zoning, nil),
		frame.NewFloat("regionidcity", city, nil),
		frame.NewFloat("regionidzip", zip, nil),
		frame.NewFloat("unitcnt", units, nil),
		frame.NewFloat("yearbuilt", year, nil),
		frame.NewFloat("structuretaxvaluedollarcnt", structVal, nil),
		frame.NewFloat("taxvaluedollarcnt", value, nil),
		frame.NewFloat("assessmentyear", assessYear, nil),
		frame.NewFloat("landtaxvaluedollarcnt", landVal, nil),
		frame.NewFloat("taxamount", tax, nil),
		frame.NewFloat("censustractandblock", tract, nil),
		frame.NewText("heatingorsystemdesc", heatDesc, nil),
		frame.NewText("propertylandusedesc", landUse, nil),
	)
	if err != nil {
		panic(err)
	}
	return f, a
}
