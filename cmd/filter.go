package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/saberlab/internal/filter"
	"github.com/KaramelBytes/saberlab/internal/table"
	"github.com/KaramelBytes/saberlab/internal/utils"
)

var (
	filterOutput string
	filterOutDir string
	filterField  string
	filterYear   int
	filterRead   readFlags
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Keep the rows of one year",
	Long: `Filter keeps the rows whose period field equals the target year and writes them,
header included. No matching rows yields a header-only file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		field, year := c.Filter.Field, c.Filter.Year
		if cmd.Flags().Changed("field") {
			field = filterField
		}
		if cmd.Flags().Changed("year") {
			year = filterYear
		}
		in, err := filterRead.read(args[0])
		if err != nil {
			return err
		}
		out, err := filter.ByYear(in, field, year, appLogger())
		if err != nil {
			return err
		}
		dir := filterOutDir
		if dir == "" && c.Output.Dir != "." {
			dir = c.Output.Dir
		}
		path := utils.OutputPath(filterOutput, dir, args[0], "_"+strconv.Itoa(year)+".csv")
		if err := table.WriteCSV(path, out); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if out.Len() == 0 {
			fmt.Fprintf(w, "%s No rows with %s = %d\n", warning("⚠"), field, year)
		}
		fmt.Fprintf(w, "%s Kept %d of %d rows; wrote %s\n", success("✓"), out.Len(), in.Len(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "output CSV path (default: <input>_<year>.csv)")
	filterCmd.Flags().StringVar(&filterOutDir, "out-dir", "", "directory for the output when -o is not set")
	filterCmd.Flags().StringVar(&filterField, "field", "PERIODO", "period field to match")
	filterCmd.Flags().IntVar(&filterYear, "year", 2020, "year to keep")
	filterRead.register(filterCmd)
}
