package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DB holds database connection settings. Credentials are normally supplied
// through PARCELPREP_DB_USER / PARCELPREP_DB_PASSWORD rather than the file.
type DB struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Name     string `mapstructure:"name" yaml:"name"`
	// DSN overrides the assembled connection string. For duckdb it is the
	// database file path; empty means in-memory.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Roles names the columns each generic transform operates on.
type Roles struct {
	Discrete   []string `mapstructure:"discrete" yaml:"discrete"`
	Continuous []string `mapstructure:"continuous" yaml:"continuous"`
	Scale      []string `mapstructure:"scale" yaml:"scale"`
}

// Global configuration structure.
type Global struct {
	DB        DB     `mapstructure:"db" yaml:"db"`
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	Seed         int64   `mapstructure:"seed" yaml:"seed"`
	TestFrac     float64 `mapstructure:"test_frac" yaml:"test_frac"`
	ValidateFrac float64 `mapstructure:"validate_frac" yaml:"validate_frac"`

	OutlierK       float64  `mapstructure:"outlier_k" yaml:"outlier_k"`
	OutlierColumns []string `mapstructure:"outlier_columns" yaml:"outlier_columns"`
	ColKeepFrac    float64  `mapstructure:"col_keep_frac" yaml:"col_keep_frac"`
	RowKeepFrac    float64  `mapstructure:"row_keep_frac" yaml:"row_keep_frac"`

	Roles Roles `mapstructure:"roles" yaml:"roles"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

var (
	DefaultDiscrete = []string{
		"calculatedbathnbr", "fullbathcnt", "regionidcity",
		"regionidzip", "yearbuilt", "censustractandblock",
	}
	DefaultContinuous = []string{
		"calculatedfinishedsquarefeet", "finishedsquarefeet12", "lotsizesquarefeet",
		"structuretaxvaluedollarcnt", "taxvaluedollarcnt", "landtaxvaluedollarcnt", "taxamount",
	}
	DefaultScale = []string{
		"bathroomcnt", "bedroomcnt", "calculatedfinishedsquarefeet", "lotsizesquarefeet",
		"yearbuilt", "structuretaxvaluedollarcnt", "taxvaluedollarcnt",
		"landtaxvaluedollarcnt", "taxamount", "tax_rate",
	}
	DefaultOutlierColumns = []string{"calculatedfinishedsquarefeet", "bedroomcnt", "bathroomcnt"}
)

// Validate rejects settings the pipeline cannot run with.
func (c *Global) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"test_frac": c.TestFrac, "validate_frac": c.ValidateFrac,
	} {
		if v <= 0 || v >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0,1), got %v", name, v))
		}
	}
	for name, v := range map[string]float64{
		"col_keep_frac": c.ColKeepFrac, "row_keep_frac": c.RowKeepFrac,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}
	if c.OutlierK <= 0 {
		errs = append(errs, fmt.Errorf("outlier_k must be positive, got %v", c.OutlierK))
	}
	seen := make(map[string]bool, len(c.Roles.Discrete))
	for _, n := range c.Roles.Discrete {
		seen[n] = true
	}
	for _, n := range c.Roles.Continuous {
		if seen[n] {
			errs = append(errs, fmt.Errorf("column %q is both discrete and continuous", n))
		}
	}
	switch c.DB.Driver {
	case "mysql", "duckdb":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be mysql or duckdb, got %q", c.DB.Driver))
	}
	return errors.Join(errs...)
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".parcelprep"), nil
}

// Save writes the configuration to cfgFile, or to ~/.parcelprep/config.yaml
// when cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("PARCELPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "zillow")
	v.SetDefault("db.dsn", "")
	v.SetDefault("cache_path", "zillow_data.csv")
	v.SetDefault("output_dir", "prepared")
	v.SetDefault("seed", 123)
	v.SetDefault("test_frac", 0.2)
	v.SetDefault("validate_frac", 0.3)
	v.SetDefault("outlier_k", 1.5)
	v.SetDefault("outlier_columns", DefaultOutlierColumns)
	v.SetDefault("col_keep_frac", 0.5)
	v.SetDefault("row_keep_frac", 0.5)
	v.SetDefault("roles.discrete", DefaultDiscrete)
	v.SetDefault("roles.continuous", DefaultContinuous)
	v.SetDefault("roles.scale", DefaultScale)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
