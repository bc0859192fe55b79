package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/saberlab/internal/split"
	"github.com/KaramelBytes/saberlab/internal/table"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

var (
	splitOutput    string
	splitOutDir    string
	splitSeparator string
	splitStrict    bool
	splitRead      readFlags
)

var splitCmd = &cobra.Command{
	Use:   "split <raw-file>",
	Short: "Split a single-column export into the named survey fields",
	Long: `Split reads the first column of the input, splits every value on the separator,
trims each part and names the resulting columns with the configured schema. Schema
mismatches are reported as warnings, or as an error with --strict.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		lg := appLogger()
		raw, err := splitRead.read(args[0])
		if err != nil {
			return err
		}
		opt := split.Options{Schema: c.Split.Schema, Separator: c.Split.Separator, Strict: c.Split.Strict}
		if cmd.Flags().Changed("separator") {
			opt.Separator = splitSeparator
		}
		if cmd.Flags().Changed("strict") {
			opt.Strict = splitStrict
		}
		res, err := split.Split(raw, opt, lg)
		if err != nil {
			return err
		}
		dir := splitOutDir
		if dir == "" && c.Output.Dir != "." {
			dir = c.Output.Dir
		}
		out := utils.OutputPath(splitOutput, dir, args[0], "_split.csv")
		if err := table.WriteCSV(out, res.Table); err != nil {
			return err
		}
		lg.Debug("split written", zap.String("path", out))

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Source column: %s\n", res.SourceColumn)
		for _, sw := range res.Warnings {
			fmt.Fprintf(w, "%s %s\n", warning("⚠"), sw.String())
		}
		fmt.Fprintf(w, "%s Wrote %d rows x %d columns to %s\n", success("✓"), res.Table.Len(), res.Table.Width(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVarP(&splitOutput, "output", "o", "", "output CSV path (default: <input>_split.csv)")
	splitCmd.Flags().StringVar(&splitOutDir, "out-dir", "", "directory for the output when -o is not set")
	splitCmd.Flags().StringVar(&splitSeparator, "separator", ",", "separator inside the raw column")
	splitCmd.Flags().BoolVar(&splitStrict, "strict", false, "fail on any schema mismatch")
	splitRead.register(splitCmd)
}
