package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
	"github.com/KaramelBytes/parcelprep/internal/utils"
)

// DefaultCachePath is used for both reading and writing the snapshot.
const DefaultCachePath = "zillow_data.csv"

// Cache is a CSV snapshot of the raw table at a single path.
type Cache struct {
	Path string
}

func (c Cache) path() string {
	if c.Path == "" {
		return DefaultCachePath
	}
	return c.Path
}

// Exists reports whether the snapshot file is present.
func (c Cache) Exists() bool { return utils.FileExists(c.path()) }

// Load reads the snapshot. A missing file wraps ErrCacheMissing.
func (c Cache) Load() (*frame.Frame, error) {
	fh, err := os.Open(c.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMissing, c.path())
		}
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer fh.Close()
	f, err := frame.ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", c.path(), err)
	}
	return f, nil
}

// Store writes the snapshot atomically.
func (c Cache) Store(f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf, f); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := utils.SafeWriteFile(c.path(), buf.Bytes()); err != nil {
		return fmt.Errorf("write cache %s: %w", c.path(), err)
	}
	return nil
}

// Invalidate removes the snapshot. Removing a missing file is not an error.
func (c Cache) Invalidate() error {
	if err := os.Remove(c.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache: %w", err)
	}
	return nil
}

// LoadOrFetch returns the cached table when useCache is set and the file
// exists. Otherwise it fetches from src, refreshes the cache, and returns
// the fetched table.
func (c Cache) LoadOrFetch(ctx context.Context, src Fetcher, useCache bool) (*frame.Frame, error) {
	if useCache && c.Exists() {
		f, err := c.Load()
		if err != nil {
			return nil, err
		}
		logging.Info().Str("path", c.path()).Int("rows", f.Len()).Int("columns", f.Width()).Msg("loaded cached table")
		return f, nil
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %s and no database source configured", ErrCacheMissing, c.path())
	}
	f, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Store(f); err != nil {
		return nil, err
	}
	logging.Info().Str("path", c.path()).Int("rows", f.Len()).Int("columns", f.Width()).Msg("fetched and cached table")
	return f, nil
}
