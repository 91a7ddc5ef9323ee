package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/parcelprep/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set parcelprep configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "db.driver: %s\n", cfg.DB.Driver)
		if cfg.DB.Host != "" {
			fmt.Fprintf(out, "db.host: %s\n", cfg.DB.Host)
		}
		if cfg.DB.User != "" {
			fmt.Fprintf(out, "db.user: %s\n", cfg.DB.User)
		}
		fmt.Fprintf(out, "db.password: %s\n", mask(cfg.DB.Password))
		fmt.Fprintf(out, "db.name: %s\n", cfg.DB.Name)
		if cfg.DB.DSN != "" {
			fmt.Fprintf(out, "db.dsn: %s\n", cfg.DB.DSN)
		}
		fmt.Fprintf(out, "cache_path: %s\n", cfg.CachePath)
		fmt.Fprintf(out, "output_dir: %s\n", cfg.OutputDir)
		fmt.Fprintf(out, "seed: %d\n", cfg.Seed)
		fmt.Fprintf(out, "test_frac: %.3f\n", cfg.TestFrac)
		fmt.Fprintf(out, "validate_frac: %.3f\n", cfg.ValidateFrac)
		fmt.Fprintf(out, "outlier_k: %.3f\n", cfg.OutlierK)
		fmt.Fprintf(out, "outlier_columns: %s\n", strings.Join(cfg.OutlierColumns, ","))
		fmt.Fprintf(out, "col_keep_frac: %.3f\n", cfg.ColKeepFrac)
		fmt.Fprintf(out, "row_keep_frac: %.3f\n", cfg.RowKeepFrac)
		fmt.Fprintf(out, "roles.discrete: %s\n", strings.Join(cfg.Roles.Discrete, ","))
		fmt.Fprintf(out, "roles.continuous: %s\n", strings.Join(cfg.Roles.Continuous, ","))
		fmt.Fprintf(out, "roles.scale: %s\n", strings.Join(cfg.Roles.Scale, ","))
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("refusing to save invalid config: %w", err)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	parseFrac := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %v", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "db.driver":
		switch strings.ToLower(val) {
		case "mysql", "duckdb":
			c.DB.Driver = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid db.driver: %s (use mysql or duckdb)", val)
		}
	case "db.host":
		c.DB.Host = val
	case "db.user":
		c.DB.User = val
	case "db.password":
		c.DB.Password = val
	case "db.name":
		c.DB.Name = val
	case "db.dsn":
		c.DB.DSN = val
	case "cache_path":
		c.CachePath = val
	case "output_dir":
		c.OutputDir = val
	case "seed":
		i, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid int for seed: %v", val)
		}
		c.Seed = i
	case "test_frac":
		c.TestFrac, err = parseFrac()
	case "validate_frac":
		c.ValidateFrac, err = parseFrac()
	case "outlier_k":
		c.OutlierK, err = parseFrac()
	case "col_keep_frac":
		c.ColKeepFrac, err = parseFrac()
	case "row_keep_frac":
		c.RowKeepFrac, err = parseFrac()
	case "outlier_columns":
		c.OutlierColumns = splitList(val)
	case "roles.discrete":
		c.Roles.Discrete = splitList(val)
	case "roles.continuous":
		c.Roles.Continuous = splitList(val)
	case "roles.scale":
		c.Roles.Scale = splitList(val)
	case "log_level":
		c.LogLevel = val
	case "log_format":
		switch val {
		case "console", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
