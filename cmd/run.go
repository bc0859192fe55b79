package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/saberlab/internal/pipeline"
)

var (
	runFilter bool
	runField  string
	runYear   int
	runFlags  samplerFlags
	runRead   readFlags
)

var runCmd = &cobra.Command{
	Use:   "run <raw-file>",
	Short: "Split, optionally filter by year, and fit the model in one pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadedConfig()
		if err != nil {
			return err
		}
		c, err := runFlags.apply(cmd, base)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("field") {
			c.Filter.Field = runField
		}
		if cmd.Flags().Changed("year") {
			c.Filter.Year = runYear
		}
		ro, err := runRead.options()
		if err != nil {
			return err
		}
		dir := outputDir(c, args[0])
		progress, done := newProgress((c.Sampler.Draws+c.Sampler.Tune)*c.Sampler.Chains, "sampling")
		res, err := pipeline.Run(cmd.Context(), c, pipeline.Options{
			Input:    args[0],
			OutDir:   dir,
			Filter:   runFilter,
			Plots:    c.Output.Plots,
			Read:     ro,
			Progress: progress,
		}, appLogger())
		done()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, sw := range res.Split.Warnings {
			fmt.Fprintf(w, "%s %s\n", warning("⚠"), sw.String())
		}
		fmt.Fprintf(w, "Split: %s\n", res.SplitPath)
		if res.FilteredPath != "" {
			fmt.Fprintf(w, "Filtered: %s (%d rows)\n", res.FilteredPath, res.Filtered.Len())
		}
		printReport(w, res.Report, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runFilter, "filter", false, "apply the year filter to the split table before modeling")
	runCmd.Flags().StringVar(&runField, "field", "", "period field for --filter (overrides config)")
	runCmd.Flags().IntVar(&runYear, "year", 0, "year for --filter (overrides config)")
	runFlags.register(runCmd)
	runRead.register(runCmd)
}
