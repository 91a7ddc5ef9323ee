package cmd

import (
	"fmt"

	"github.com/KaramelBytes/parcelprep/internal/acquire"
	"github.com/KaramelBytes/parcelprep/internal/pipeline"
	"github.com/KaramelBytes/parcelprep/internal/report"
	"github.com/spf13/cobra"
)

var (
	prepOut     string
	prepRefresh bool
	prepOffline bool
	prepSeed    int64
	prepSummary bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean, split, impute and scale the dataset",
	Long: `Runs the full pipeline once and writes train/validate/test CSVs, their scaled
projections, and manifest.json to the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		run := *c
		if cmd.Flags().Changed("seed") {
			run.Seed = prepSeed
		}
		if prepOut != "" {
			run.OutputDir = prepOut
		}

		res, err := pipeline.Run(cmd.Context(), pipeline.Options{
			Config:  &run,
			Source:  acquire.DBSource{DB: run.DB},
			Refresh: prepRefresh,
			Offline: prepOffline,
		})
		if err != nil {
			return err
		}
		paths, err := res.Write(run.OutputDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		m := res.Manifest
		fmt.Fprintf(out, "✓ Prepared run %s (seed %d)\n", m.RunID, m.Seed)
		fmt.Fprintf(out, "  Rows: raw %d → cleaned %d → train %d / validate %d / test %d\n",
			m.Rows.Raw, m.Rows.Cleaned, m.Rows.Train, m.Rows.Validate, m.Rows.Test)
		for _, p := range paths {
			fmt.Fprintf(out, "  Wrote %s\n", p)
		}
		if prepSummary {
			fmt.Fprintln(out)
			fmt.Fprint(out, report.Markdown(
				report.Summarize("train", res.Partitions.Train),
				report.Summarize("validate", res.Partitions.Validate),
				report.Summarize("test", res.Partitions.Test),
			))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().StringVarP(&prepOut, "out", "o", "", "output directory (overrides config output_dir)")
	prepareCmd.Flags().BoolVar(&prepRefresh, "refresh", false, "ignore the cache and query the database")
	prepareCmd.Flags().BoolVar(&prepOffline, "offline", false, "require the cache; never connect to the database")
	prepareCmd.Flags().Int64Var(&prepSeed, "seed", 0, "random seed for the split (overrides config seed)")
	prepareCmd.Flags().BoolVar(&prepSummary, "summary", false, "print a markdown summary of each partition")
}
