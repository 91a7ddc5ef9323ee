package acquire

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/parcelprep/internal/config"
	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
)

// ZillowQuery joins the 2017 transactions to their property records and
// every type lookup table, keeping geolocated parcels only.
const ZillowQuery = `SELECT *
FROM predictions_2017
JOIN properties_2017 USING (parcelid)
LEFT JOIN airconditioningtype USING (airconditioningtypeid)
LEFT JOIN architecturalstyletype USING (architecturalstyletypeid)
LEFT JOIN buildingclasstype USING (buildingclasstypeid)
LEFT JOIN heatingorsystemtype USING (heatingorsystemtypeid)
LEFT JOIN propertylandusetype USING (propertylandusetypeid)
LEFT JOIN storytype USING (storytypeid)
LEFT JOIN typeconstructiontype USING (typeconstructiontypeid)
WHERE latitude IS NOT NULL
  AND longitude IS NOT NULL`

// SQLSource runs ZillowQuery against an open database.
type SQLSource struct {
	DB *sql.DB
}

// Fetch runs the query and converts the result set into a frame.
func (s SQLSource) Fetch(ctx context.Context) (*frame.Frame, error) {
	rows, err := s.DB.QueryContext(ctx, ZillowQuery)
	if err != nil {
		return nil, fmt.Errorf("query zillow: %w", err)
	}
	defer rows.Close()
	f, err := ReadRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read zillow rows: %w", err)
	}
	return f, nil
}

// DBSource connects on demand, so a run served from the cache never opens
// the database.
type DBSource struct {
	DB config.DB
}

// Fetch opens the database, runs ZillowQuery and closes the connection.
func (s DBSource) Fetch(ctx context.Context) (*frame.Frame, error) {
	db, err := Open(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	logging.Info().Str("url", RedactedURL(s.DB)).Msg("querying database")
	return SQLSource{DB: db}.Fetch(ctx)
}

// ReadRows drains a result set into a frame. Repeated column names get a
// .1, .2 suffix.
func ReadRows(rows *sql.Rows) (*frame.Frame, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	raw := make([]string, len(types))
	for i, t := range types {
		raw[i] = t.Name()
	}
	names := dedupeNames(raw)
	cells := make([][]any, len(types))
	dest := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for j, v := range dest {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			cells[j] = append(cells[j], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	cols := make([]*frame.Column, len(types))
	for j, t := range types {
		cols[j] = buildColumn(names[j], numericDBType(t.DatabaseTypeName()), cells[j])
	}
	return frame.New(cols...)
}

func dedupeNames(names []string) []string {
	seen := map[string]int{}
	out := make([]string, len(names))
	for i, n := range names {
		if k := seen[n]; k > 0 {
			out[i] = n + "." + strconv.Itoa(k)
		} else {
			out[i] = n
		}
		seen[n]++
	}
	return out
}

func numericDBType(name string) bool {
	name = strings.ToUpper(name)
	for _, p := range []string{"DECIMAL", "NUMERIC", "INT", "FLOAT", "DOUBLE", "REAL"} {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// buildColumn picks the narrowest kind that holds every non-null value.
func buildColumn(name string, numericType bool, vals []any) *frame.Column {
	n := len(vals)
	nums := make([]float64, n)
	times := make([]time.Time, n)
	valid := make([]bool, n)
	allNum, allTime := true, true
	for i, v := range vals {
		if v == nil {
			continue
		}
		valid[i] = true
		if x, ok := toFloat(v, numericType); ok {
			nums[i] = x
		} else {
			allNum = false
		}
		if t, ok := v.(time.Time); ok {
			times[i] = t
		} else {
			allTime = false
		}
	}
	switch {
	case allNum:
		return frame.NewFloat(name, nums, valid)
	case allTime:
		return frame.NewTime(name, times, valid)
	}
	text := make([]string, n)
	for i, v := range vals {
		if v == nil {
			continue
		}
		if t, ok := v.(time.Time); ok {
			text[i] = t.Format("2006-01-02")
		} else {
			text[i] = fmt.Sprint(v)
		}
	}
	return frame.NewText(name, text, valid)
}

func toFloat(v any, numericType bool) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case int:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint8:
		return float64(x), true
	case interface{ Float64() float64 }:
		return x.Float64(), true
	case string:
		if !numericType {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
