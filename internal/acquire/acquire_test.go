package acquire

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/parcelprep/internal/config"
	"github.com/KaramelBytes/parcelprep/internal/frame"
)

var zillowSchema = []string{
	`CREATE TABLE predictions_2017 (id INTEGER, parcelid INTEGER, logerror DOUBLE, transactiondate VARCHAR)`,
	`CREATE TABLE properties_2017 (
		parcelid INTEGER, airconditioningtypeid INTEGER, architecturalstyletypeid INTEGER,
		buildingclasstypeid INTEGER, heatingorsystemtypeid INTEGER, propertylandusetypeid INTEGER,
		storytypeid INTEGER, typeconstructiontypeid INTEGER, bedroomcnt DOUBLE,
		taxamount DECIMAL(10,2), fips DOUBLE, latitude DOUBLE, longitude DOUBLE)`,
	`CREATE TABLE airconditioningtype (airconditioningtypeid INTEGER, airconditioningdesc VARCHAR)`,
	`CREATE TABLE architecturalstyletype (architecturalstyletypeid INTEGER, architecturalstyledesc VARCHAR)`,
	`CREATE TABLE buildingclasstype (buildingclasstypeid INTEGER, buildingclassdesc VARCHAR)`,
	`CREATE TABLE heatingorsystemtype (heatingorsystemtypeid INTEGER, heatingorsystemdesc VARCHAR)`,
	`CREATE TABLE propertylandusetype (propertylandusetypeid INTEGER, propertylandusedesc VARCHAR)`,
	`CREATE TABLE storytype (storytypeid INTEGER, storydesc VARCHAR)`,
	`CREATE TABLE typeconstructiontype (typeconstructiontypeid INTEGER, typeconstructiondesc VARCHAR)`,
	`INSERT INTO heatingorsystemtype VALUES (2, 'Central')`,
	`INSERT INTO propertylandusetype VALUES (261, 'Single Family Residential'), (246, 'Duplex (2 Units, Any Combination)')`,
	`INSERT INTO properties_2017 VALUES
		(11, NULL, NULL, NULL, 2, 261, NULL, NULL, 3, 4500.50, 6037, 34000000, -118000000),
		(12, NULL, NULL, NULL, NULL, 246, NULL, NULL, 4, 5100.00, 6059, 33900000, -117900000),
		(13, NULL, NULL, NULL, NULL, 261, NULL, NULL, 2, 3000.00, 6111, NULL, -118100000)`,
	`INSERT INTO predictions_2017 VALUES
		(1, 11, 0.025, '2017-01-01'),
		(2, 12, -0.1, '2017-02-01'),
		(3, 13, 0.3, '2017-03-01')`,
}

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), config.DB{Driver: "duckdb"})
	if err != nil {
		t.Fatalf("Open duckdb: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range zillowSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func TestSQLSourceFetch(t *testing.T) {
	db := openDuckDB(t)
	f, err := SQLSource{DB: db}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("rows = %d, want 2 (parcel without latitude excluded)", f.Len())
	}
	for _, name := range []string{"parcelid", "logerror", "propertylandusedesc", "heatingorsystemdesc", "taxamount", "fips"} {
		if !f.Has(name) {
			t.Fatalf("missing column %s in %v", name, f.Names())
		}
	}
	tax, _ := f.Column("taxamount")
	if tax.Kind != frame.Float {
		t.Fatalf("taxamount kind = %s, want numeric", tax.Kind)
	}
	land, _ := f.Column("propertylandusedesc")
	if land.Kind != frame.Text {
		t.Fatalf("propertylandusedesc kind = %s, want text", land.Kind)
	}
	heat, _ := f.Column("heatingorsystemdesc")
	if heat.NullCount() != 1 {
		t.Fatalf("heatingorsystemdesc nulls = %d, want 1 (left join miss)", heat.NullCount())
	}
}

func TestReadRowsBuildsKinds(t *testing.T) {
	db := openDuckDB(t)
	rows, err := db.Query(`SELECT 1.5::DOUBLE AS x, 'a' AS s, DATE '2017-06-30' AS d, NULL::INTEGER AS n`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	f, err := ReadRows(rows)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	want := map[string]frame.Kind{"x": frame.Float, "s": frame.Text, "d": frame.Time, "n": frame.Float}
	for name, kind := range want {
		c, err := f.Column(name)
		if err != nil {
			t.Fatalf("column %s: %v", name, err)
		}
		if c.Kind != kind {
			t.Fatalf("%s kind = %s, want %s", name, c.Kind, kind)
		}
	}
	n, _ := f.Column("n")
	if !n.IsNull(0) {
		t.Fatal("NULL became a value")
	}
}

func TestDedupeNames(t *testing.T) {
	got := dedupeNames([]string{"id", "parcelid", "id", "id"})
	if diff := cmp.Diff([]string{"id", "parcelid", "id.1", "id.2"}, got); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestConnectionURL(t *testing.T) {
	got := ConnectionURL("mysql+pymysql", "analyst", "pw", "db.example.internal", "zillow")
	if got != "mysql+pymysql://analyst:pw@db.example.internal/zillow" {
		t.Fatalf("ConnectionURL = %q", got)
	}
	red := RedactedURL(config.DB{Driver: "mysql", User: "analyst", Password: "pw", Host: "h", Name: "zillow"})
	if strings.Contains(red, "pw") {
		t.Fatalf("password not redacted: %s", red)
	}
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.DB{Driver: "mysql", User: "u", Password: "p", Host: "h:3306", Name: "zillow"})
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "u:p@tcp(h:3306)/zillow") {
		t.Fatalf("DSN = %q", dsn)
	}
	if _, err := DSN(config.DB{Driver: "mysql"}); err == nil {
		t.Fatal("expected error without host")
	}
}

func TestOpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Open(ctx, config.DB{Driver: "mysql", User: "u", Password: "p", Host: "127.0.0.1:1", Name: "zillow"})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}
	if strings.Contains(err.Error(), ":p@") {
		t.Fatalf("error leaks password: %v", err)
	}
}

type countingFetcher struct {
	calls int
	f     *frame.Frame
}

func (c *countingFetcher) Fetch(context.Context) (*frame.Frame, error) {
	c.calls++
	return c.f, nil
}

func TestLoadOrFetch(t *testing.T) {
	raw, err := frame.New(
		frame.NewFloat("parcelid", []float64{11, 12}, nil),
		frame.NewText("propertylandusedesc", []string{"Mobile Home", ""}, nil),
	)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	src := &countingFetcher{f: raw}
	cache := Cache{Path: filepath.Join(t.TempDir(), "zillow_data.csv")}
	ctx := context.Background()

	first, err := cache.LoadOrFetch(ctx, src, true)
	if err != nil {
		t.Fatalf("first LoadOrFetch: %v", err)
	}
	if src.calls != 1 || first.Len() != 2 || !cache.Exists() {
		t.Fatalf("first call: calls=%d rows=%d exists=%v", src.calls, first.Len(), cache.Exists())
	}

	second, err := cache.LoadOrFetch(ctx, src, true)
	if err != nil {
		t.Fatalf("second LoadOrFetch: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("cached call hit the source (calls=%d)", src.calls)
	}
	if diff := cmp.Diff(first.Names(), second.Names()); diff != "" {
		t.Fatalf("cached columns differ (-fetched +cached):\n%s", diff)
	}
	land, _ := second.Column("propertylandusedesc")
	if land.Text[0] != "Mobile Home" || !land.IsNull(1) {
		t.Fatalf("cached values differ: %+v", land)
	}

	if _, err := cache.LoadOrFetch(ctx, src, false); err != nil {
		t.Fatalf("refresh LoadOrFetch: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("refresh did not fetch (calls=%d)", src.calls)
	}
}

func TestCacheMissing(t *testing.T) {
	cache := Cache{Path: filepath.Join(t.TempDir(), "absent.csv")}
	if _, err := cache.Load(); !errors.Is(err, ErrCacheMissing) {
		t.Fatalf("want ErrCacheMissing, got %v", err)
	}
	if _, err := cache.LoadOrFetch(context.Background(), nil, true); !errors.Is(err, ErrCacheMissing) {
		t.Fatalf("want ErrCacheMissing without a source, got %v", err)
	}
	if err := cache.Invalidate(); err != nil {
		t.Fatalf("Invalidate on missing file: %v", err)
	}
}

func TestDBSourceUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	src := DBSource{DB: config.DB{Driver: "mysql", User: "u", Host: "127.0.0.1:1", Name: "zillow"}}
	if _, err := src.Fetch(ctx); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}
}
