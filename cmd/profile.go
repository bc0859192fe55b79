package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/saberlab/internal/profile"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

var (
	profOutputPath string
	profSampleRows int
	profMaxRows    int
	profGroupBy    []string
	profCorr       bool
	profOutlierThr float64
	profTopValues  int
	profRead       readFlags
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Summarize a CSV/TSV/XLSX table column by column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := profRead.read(args[0])
		if err != nil {
			return err
		}
		opt := profile.DefaultOptions()
		opt.SampleRows = profSampleRows
		opt.MaxRows = profMaxRows
		opt.GroupBy = profGroupBy
		opt.Correlations = profCorr
		opt.OutlierThreshold = profOutlierThr
		if profTopValues > 0 {
			opt.TopValues = profTopValues
		}
		rep, err := profile.Analyze(t, opt)
		if err != nil {
			return err
		}
		md := rep.Markdown()
		if profOutputPath != "" {
			if err := utils.SafeWriteFile(profOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote profile to %s\n", success("✓"), profOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile (Markdown)")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of leading rows to include")
	profileCmd.Flags().IntVar(&profMaxRows, "max-rows", 0, "maximum rows to process (0 = unlimited)")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outlier counts (0 disables)")
	profileCmd.Flags().IntVar(&profTopValues, "top", 8, "frequent values listed per categorical column")
	profRead.register(profileCmd)
}
