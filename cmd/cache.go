package cmd

import (
	"fmt"

	"github.com/KaramelBytes/parcelprep/internal/acquire"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or invalidate the raw table cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the cached CSV snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		cache := acquire.Cache{Path: c.CachePath}
		if !cache.Exists() {
			fmt.Fprintf(cmd.OutOrStdout(), "No cache at %s\n", c.CachePath)
			return nil
		}
		if err := cache.Invalidate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", c.CachePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
