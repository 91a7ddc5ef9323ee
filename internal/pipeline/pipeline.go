// Package pipeline runs acquisition, cleaning, partitioning, imputation and
// scaling once, in that order, and writes the resulting partitions.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/parcelprep/internal/acquire"
	"github.com/KaramelBytes/parcelprep/internal/config"
	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
	"github.com/KaramelBytes/parcelprep/internal/prep"
	"github.com/KaramelBytes/parcelprep/internal/utils"
)

// Options configures one run.
type Options struct {
	Config *config.Global
	// Source is queried when the cache cannot be used. Nil restricts the run
	// to an existing cache file.
	Source acquire.Fetcher
	// Refresh ignores an existing cache and refetches from Source.
	Refresh bool
	// Offline requires the cache and never touches Source.
	Offline bool
}

// RowCounts records table sizes at each stage.
type RowCounts struct {
	Raw      int `json:"raw"`
	Cleaned  int `json:"cleaned"`
	Train    int `json:"train"`
	Validate int `json:"validate"`
	Test     int `json:"test"`
}

// Manifest describes a run well enough to reproduce its fitted transforms.
type Manifest struct {
	RunID     string              `json:"run_id"`
	Seed      int64               `json:"seed"`
	CreatedAt time.Time           `json:"created_at"`
	Cache     string              `json:"cache"`
	Rows      RowCounts           `json:"rows"`
	Columns   []string            `json:"columns"`
	Fills     []prep.Fill         `json:"fills"`
	Scaler    *prep.MinMaxScaler  `json:"scaler"`
	Skipped   map[string][]string `json:"skipped_roles,omitempty"`
}

// Result holds the imputed partitions, their scaled projections, and the
// manifest.
type Result struct {
	Partitions prep.Partitions
	Scaled     prep.Partitions
	Manifest   Manifest
}

// Run executes the pipeline once.
func Run(ctx context.Context, opt Options) (*Result, error) {
	cfg := opt.Config
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if opt.Offline && opt.Refresh {
		return nil, errors.New("offline and refresh are mutually exclusive")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, runID := logging.ForRun()
	log.Info().Int64("seed", cfg.Seed).Str("cache", cfg.CachePath).Bool("offline", opt.Offline).
		Bool("refresh", opt.Refresh).Msg("pipeline started")

	cache := acquire.Cache{Path: cfg.CachePath}
	var (
		raw *frame.Frame
		err error
	)
	if opt.Offline {
		raw, err = cache.Load()
	} else {
		raw, err = cache.LoadOrFetch(ctx, opt.Source, !opt.Refresh)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	cleaned, err := prep.PrepZillow(raw, prep.CleanOptions{
		OutlierK:       cfg.OutlierK,
		OutlierColumns: cfg.OutlierColumns,
		ColKeepFrac:    cfg.ColKeepFrac,
		RowKeepFrac:    cfg.RowKeepFrac,
	})
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if cleaned, err = prep.DeriveCounty(cleaned); err != nil {
		return nil, fmt.Errorf("derive county: %w", err)
	}
	if cleaned, err = prep.DeriveTaxRate(cleaned); err != nil {
		return nil, fmt.Errorf("derive tax rate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skipped := map[string][]string{}
	var spec prep.ImputeSpec
	if spec.Discrete, err = resolveRoles(raw, cleaned, cfg.Roles.Discrete, "discrete", skipped, log); err != nil {
		return nil, err
	}
	if spec.Continuous, err = resolveRoles(raw, cleaned, cfg.Roles.Continuous, "continuous", skipped, log); err != nil {
		return nil, err
	}
	scaleCols, err := resolveRoles(raw, cleaned, cfg.Roles.Scale, "scale", skipped, log)
	if err != nil {
		return nil, err
	}

	parts, err := prep.Split(cleaned, prep.NewRand(cfg.Seed), cfg.TestFrac, cfg.ValidateFrac)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	imputed, im, err := prep.ImputePartitions(parts, spec)
	if err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	scaled, scaler, err := prep.ScalePartitions(imputed.Train, imputed.Validate, imputed.Test, scaleCols)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}

	res := &Result{
		Partitions: imputed,
		Scaled:     scaled,
		Manifest: Manifest{
			RunID:     runID,
			Seed:      cfg.Seed,
			CreatedAt: time.Now().UTC(),
			Cache:     cfg.CachePath,
			Rows: RowCounts{
				Raw:      raw.Len(),
				Cleaned:  cleaned.Len(),
				Train:    imputed.Train.Len(),
				Validate: imputed.Validate.Len(),
				Test:     imputed.Test.Len(),
			},
			Columns: cleaned.Names(),
			Fills:   im.Fills,
			Scaler:  scaler,
		},
	}
	if len(skipped) > 0 {
		res.Manifest.Skipped = skipped
	}
	log.Info().Int("raw", raw.Len()).Int("cleaned", cleaned.Len()).Int("train", imputed.Train.Len()).
		Int("validate", imputed.Validate.Len()).Int("test", imputed.Test.Len()).Msg("pipeline finished")
	return res, nil
}

// resolveRoles returns the role columns present after cleaning. A column
// that existed in the raw table but was pruned by the null thresholds is
// recorded in skipped and logged. A name found in neither table is an error.
func resolveRoles(raw, cleaned *frame.Frame, cols []string, role string, skipped map[string][]string, log zerolog.Logger) ([]string, error) {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		switch {
		case cleaned.Has(c):
			out = append(out, c)
		case raw.Has(c):
			skipped[role] = append(skipped[role], c)
		default:
			return nil, &prep.ColumnError{Op: role + " roles", Column: c, Err: prep.ErrMissingColumn}
		}
	}
	if len(skipped[role]) > 0 {
		log.Warn().Str("role", role).Strs("columns", skipped[role]).Msg("role columns pruned by cleaning")
	}
	return out, nil
}

// Output file names written by Write.
const (
	TrainFile    = "train.csv"
	ValidateFile = "validate.csv"
	TestFile     = "test.csv"
	ManifestFile = "manifest.json"
)

// Write stores the partitions, the scaled partitions, and manifest.json in
// dir, returning the paths written.
func (r *Result) Write(dir string) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := []struct {
		name string
		f    *frame.Frame
	}{
		{TrainFile, r.Partitions.Train},
		{ValidateFile, r.Partitions.Validate},
		{TestFile, r.Partitions.Test},
		{scaledName(TrainFile), r.Scaled.Train},
		{scaledName(ValidateFile), r.Scaled.Validate},
		{scaledName(TestFile), r.Scaled.Test},
	}
	var written []string
	for _, item := range files {
		path := filepath.Join(dir, item.name)
		var buf bytes.Buffer
		if err := frame.WriteCSV(&buf, item.f); err != nil {
			return written, fmt.Errorf("encode %s: %w", item.name, err)
		}
		if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	b, err := utils.PrettyJSON(r.Manifest)
	if err != nil {
		return written, fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := utils.SafeWriteFile(path, b); err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	return append(written, path), nil
}

func scaledName(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + "_scaled" + ext
}
