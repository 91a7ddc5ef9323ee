package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/parcelprep/internal/acquire"
	"github.com/KaramelBytes/parcelprep/internal/fixtures"
	"github.com/KaramelBytes/parcelprep/internal/pipeline"
)

// resetFlags clears values and Changed state left over from a previous
// Execute, since cobra commands are package singletons.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its stdout.
func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func TestCLI_PrepareOffline(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgPath := filepath.Join(home, "parcelprep.yaml")
	cachePath := filepath.Join(home, "zillow_data.csv")
	outDir := filepath.Join(home, "out")

	raw, _ := fixtures.Zillow(300, 3)
	if err := (acquire.Cache{Path: cachePath}).Store(raw); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	runCmd(t, "--config", cfgPath, "config", "set", "cache_path", cachePath)

	out := runCmd(t, "--config", cfgPath, "acquire", "--offline")
	if !strings.Contains(out, "300 rows") {
		t.Fatalf("acquire output: %s", out)
	}

	out = runCmd(t, "--config", cfgPath, "--log-format", "json", "prepare", "--offline", "--out", outDir, "--seed", "42", "--summary")
	for _, want := range []string{"✓ Prepared run", "(seed 42)", "[DATASET SUMMARY]", "Partition: validate", "[SCHEMA]"} {
		if !strings.Contains(out, want) {
			t.Errorf("prepare output missing %q:\n%s", want, out)
		}
	}
	b, err := os.ReadFile(filepath.Join(outDir, pipeline.ManifestFile))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	var m pipeline.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Seed != 42 || m.Rows.Raw != 300 {
		t.Fatalf("manifest seed %d raw %d", m.Seed, m.Rows.Raw)
	}
	for _, name := range []string{"train.csv", "validate_scaled.csv", "test.csv"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	out = runCmd(t, "--config", cfgPath, "cache", "clear")
	if !strings.Contains(out, "✓ Removed") {
		t.Fatalf("cache clear output: %s", out)
	}
	if _, err := execute("--config", cfgPath, "prepare", "--offline", "--out", outDir); !errors.Is(err, acquire.ErrCacheMissing) {
		t.Fatalf("prepare after clear: want ErrCacheMissing, got %v", err)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgPath := filepath.Join(home, "parcelprep.yaml")

	runCmd(t, "--config", cfgPath, "config", "set", "db.password", "hunter2secret")
	runCmd(t, "--config", cfgPath, "config", "set", "roles.scale", "bedroomcnt, bathroomcnt")
	runCmd(t, "--config", cfgPath, "config", "set", "seed", "7")

	out := runCmd(t, "--config", cfgPath, "config", "show")
	for _, want := range []string{"seed: 7\n", "roles.scale: bedroomcnt,bathroomcnt\n", "db.password: hun****ret\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter2secret") {
		t.Fatal("password printed in clear")
	}

	for _, args := range [][]string{
		{"config", "set", "test_frac", "1.5"},
		{"config", "set", "db.driver", "postgres"},
		{"config", "set", "nope", "1"},
	} {
		if _, err := execute(append([]string{"--config", cfgPath}, args...)...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestCLI_FlagConflicts(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if _, err := execute("acquire", "--offline", "--refresh"); err == nil {
		t.Fatal("acquire --offline --refresh should fail")
	}
	if _, err := execute("prepare", "--offline", "--refresh"); err == nil {
		t.Fatal("prepare --offline --refresh should fail")
	}
}
