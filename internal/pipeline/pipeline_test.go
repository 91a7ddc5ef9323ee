package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/parcelprep/internal/acquire"
	"github.com/KaramelBytes/parcelprep/internal/config"
	"github.com/KaramelBytes/parcelprep/internal/fixtures"
	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/prep"
)

func testConfig(t *testing.T) *config.Global {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.CachePath = filepath.Join(dir, "zillow_data.csv")
	cfg.OutputDir = filepath.Join(dir, "prepared")
	cfg.DB.Driver = "duckdb"
	return cfg
}

type fakeSource struct {
	calls int
	f     *frame.Frame
}

func (s *fakeSource) Fetch(context.Context) (*frame.Frame, error) {
	s.calls++
	return s.f, nil
}

func seedCache(t *testing.T, cfg *config.Global) *frame.Frame {
	t.Helper()
	raw, _ := fixtures.Zillow(400, 1)
	if err := (acquire.Cache{Path: cfg.CachePath}).Store(raw); err != nil {
		t.Fatalf("Store: %v", err)
	}
	return raw
}

func TestRunOffline(t *testing.T) {
	cfg := testConfig(t)
	raw := seedCache(t, cfg)

	res, err := Run(context.Background(), Options{Config: cfg, Offline: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := res.Manifest
	if m.Rows.Raw != raw.Len() {
		t.Fatalf("raw rows = %d, want %d", m.Rows.Raw, raw.Len())
	}
	if got := m.Rows.Train + m.Rows.Validate + m.Rows.Test; got != m.Rows.Cleaned {
		t.Fatalf("partition sizes sum to %d, cleaned has %d", got, m.Rows.Cleaned)
	}
	if m.RunID == "" || m.Seed != cfg.Seed {
		t.Fatalf("manifest run id %q seed %d", m.RunID, m.Seed)
	}
	if len(m.Fills) != len(cfg.Roles.Discrete)+len(cfg.Roles.Continuous) {
		t.Fatalf("fills = %d, want one per role column", len(m.Fills))
	}

	for _, fill := range m.Fills {
		for name, p := range map[string]*frame.Frame{
			"train": res.Partitions.Train, "validate": res.Partitions.Validate, "test": res.Partitions.Test,
		} {
			c, err := p.Column(fill.Column)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if n := c.NullCount(); n != 0 {
				t.Errorf("%s.%s has %d nulls after imputation", name, fill.Column, n)
			}
		}
	}

	if diff := cmp.Diff(cfg.Roles.Scale, res.Scaled.Train.Names()); diff != "" {
		t.Fatalf("scaled columns (-want +got):\n%s", diff)
	}
	for _, c := range res.Scaled.Train.Columns() {
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.FloatAt(i); ok && (v < 0 || v > 1) {
				t.Fatalf("train %s row %d scaled to %v", c.Name, i, v)
			}
		}
	}
	if diff := cmp.Diff(res.Partitions.Test.Index(), res.Scaled.Test.Index()); diff != "" {
		t.Fatalf("scaled test index differs (-imputed +scaled):\n%s", diff)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	seedCache(t, cfg)
	a, err := Run(context.Background(), Options{Config: cfg, Offline: true})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	b, err := Run(context.Background(), Options{Config: cfg, Offline: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if diff := cmp.Diff(a.Partitions.Validate.Index(), b.Partitions.Validate.Index()); diff != "" {
		t.Fatalf("validate rows differ between runs (-first +second):\n%s", diff)
	}
	if a.Manifest.RunID == b.Manifest.RunID {
		t.Fatal("run ids should be unique")
	}
}

func TestRunFetchesThenUsesCache(t *testing.T) {
	cfg := testConfig(t)
	raw, _ := fixtures.Zillow(200, 7)
	src := &fakeSource{f: raw}
	ctx := context.Background()

	if _, err := Run(ctx, Options{Config: cfg, Source: src}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}
	if _, err := os.Stat(cfg.CachePath); err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if _, err := Run(ctx, Options{Config: cfg, Source: src}); err != nil {
		t.Fatalf("cached Run: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("cached run queried the source (calls=%d)", src.calls)
	}
	if _, err := Run(ctx, Options{Config: cfg, Source: src, Refresh: true}); err != nil {
		t.Fatalf("refresh Run: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("refresh did not query the source (calls=%d)", src.calls)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if _, err := Run(ctx, Options{Config: cfg, Offline: true}); !errors.Is(err, acquire.ErrCacheMissing) {
		t.Fatalf("offline without cache: want ErrCacheMissing, got %v", err)
	}
	if _, err := Run(ctx, Options{Config: cfg, Offline: true, Refresh: true}); err == nil {
		t.Fatal("offline+refresh should be rejected")
	}
	bad := *cfg
	bad.TestFrac = 1
	if _, err := Run(ctx, Options{Config: &bad, Offline: true}); err == nil {
		t.Fatal("invalid config should be rejected")
	}
}

func TestRunRejectsUnknownRoleColumns(t *testing.T) {
	cfg := testConfig(t)
	seedCache(t, cfg)
	tests := []struct {
		name   string
		mutate func(*config.Roles)
		column string
	}{
		{"continuous", func(r *config.Roles) { r.Continuous = append(r.Continuous, "taxamout") }, "taxamout"},
		{"discrete", func(r *config.Roles) { r.Discrete = append(r.Discrete, "yearbult") }, "yearbult"},
		{"scale", func(r *config.Roles) { r.Scale = append(r.Scale, "bedroomcount") }, "bedroomcount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.Roles = config.Roles{
				Discrete:   append([]string(nil), cfg.Roles.Discrete...),
				Continuous: append([]string(nil), cfg.Roles.Continuous...),
				Scale:      append([]string(nil), cfg.Roles.Scale...),
			}
			tt.mutate(&c.Roles)
			_, err := Run(context.Background(), Options{Config: &c, Offline: true})
			if !errors.Is(err, prep.ErrMissingColumn) {
				t.Fatalf("want ErrMissingColumn, got %v", err)
			}
			var ce *prep.ColumnError
			if !errors.As(err, &ce) || ce.Column != tt.column {
				t.Fatalf("want *ColumnError for %q, got %v", tt.column, err)
			}
		})
	}
}

func TestRunSkipsRoleColumnsPrunedByCleaning(t *testing.T) {
	cfg := testConfig(t)
	seedCache(t, cfg)
	c := *cfg
	c.Roles.Continuous = append(append([]string(nil), cfg.Roles.Continuous...), "poolcnt")

	res, err := Run(context.Background(), Options{Config: &c, Offline: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(map[string][]string{"continuous": {"poolcnt"}}, res.Manifest.Skipped); diff != "" {
		t.Fatalf("skipped roles (-want +got):\n%s", diff)
	}
}

func TestResultWrite(t *testing.T) {
	cfg := testConfig(t)
	seedCache(t, cfg)
	res, err := Run(context.Background(), Options{Config: cfg, Offline: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	paths, err := res.Write(cfg.OutputDir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	want := []string{"train.csv", "validate.csv", "test.csv", "train_scaled.csv", "validate_scaled.csv", "test_scaled.csv", "manifest.json"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("written files (-want +got):\n%s", diff)
	}

	fh, err := os.Open(filepath.Join(cfg.OutputDir, TrainFile))
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	train, err := frame.ReadCSV(fh)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if diff := cmp.Diff(res.Partitions.Train.Index(), train.Index()); diff != "" {
		t.Fatalf("train.csv index (-want +got):\n%s", diff)
	}

	b, err := os.ReadFile(filepath.Join(cfg.OutputDir, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.RunID != res.Manifest.RunID || m.Rows != res.Manifest.Rows {
		t.Fatalf("manifest round trip: got %+v", m)
	}
	if diff := cmp.Diff(res.Manifest.Scaler.Columns, m.Scaler.Columns); diff != "" {
		t.Fatalf("scaler columns (-want +got):\n%s", diff)
	}
}
