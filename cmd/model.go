package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/pipeline"
	"github.com/KaramelBytes/saberlab/internal/report"
)

// samplerFlags override the sampler and output settings for model and run.
type samplerFlags struct {
	draws   int
	tune    int
	chains  int
	seed    uint64
	hdi     float64
	noPlots bool
	outDir  string
}

func (sf *samplerFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&sf.draws, "draws", 0, "retained draws per chain (overrides config)")
	cmd.Flags().IntVar(&sf.tune, "tune", 0, "tuning iterations per chain (overrides config)")
	cmd.Flags().IntVar(&sf.chains, "chains", 0, "number of chains (overrides config)")
	cmd.Flags().Uint64Var(&sf.seed, "seed", 0, "random seed (overrides config)")
	cmd.Flags().Float64Var(&sf.hdi, "hdi", 0, "HDI probability in (0,1) (overrides config)")
	cmd.Flags().BoolVar(&sf.noPlots, "no-plots", false, "skip the PNG figures")
	cmd.Flags().StringVar(&sf.outDir, "out-dir", "", "directory for report and figures")
}

func (sf *samplerFlags) reset() {
	*sf = samplerFlags{}
}

// apply returns a copy of base with the changed flags applied.
func (sf *samplerFlags) apply(cmd *cobra.Command, base *cfgpkg.Global) (*cfgpkg.Global, error) {
	c := *base
	f := cmd.Flags()
	if f.Changed("draws") {
		c.Sampler.Draws = sf.draws
	}
	if f.Changed("tune") {
		c.Sampler.Tune = sf.tune
	}
	if f.Changed("chains") {
		c.Sampler.Chains = sf.chains
	}
	if f.Changed("seed") {
		c.Sampler.Seed = sf.seed
	}
	if f.Changed("hdi") {
		c.HDIProb = sf.hdi
	}
	if sf.noPlots {
		c.Output.Plots = false
	}
	if sf.outDir != "" {
		c.Output.Dir = sf.outDir
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return &c, nil
}

var (
	modelFlags samplerFlags
	modelRead  readFlags
)

var modelCmd = &cobra.Command{
	Use:   "model <cleaned-file>",
	Short: "Fit the Bayesian score model and report posterior summaries",
	Long: `Model prepares the cleaned table (years, amenity flags, stratum digits, numeric score),
samples the posterior of

  score ~ Normal(alpha + beta_compu*compu + beta_internet*internet + beta_estrato*estrato, sigma)

and writes model_report.md, model_report.json and, unless --no-plots, posterior.png and
predictive.png.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadedConfig()
		if err != nil {
			return err
		}
		c, err := modelFlags.apply(cmd, base)
		if err != nil {
			return err
		}
		t, err := modelRead.read(args[0])
		if err != nil {
			return err
		}
		progress, done := newProgress((c.Sampler.Draws+c.Sampler.Tune)*c.Sampler.Chains, "sampling")
		rep, err := pipeline.Model(cmd.Context(), t, c, pipeline.ModelOptions{
			OutDir:   outputDir(c, args[0]),
			Plots:    c.Output.Plots,
			Progress: progress,
		}, appLogger())
		done()
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep, outputDir(c, args[0]))
		return nil
	},
}

// outputDir resolves the report directory: the configured one, or the
// input's directory when left at the default.
func outputDir(c *cfgpkg.Global, input string) string {
	if c.Output.Dir == "" || c.Output.Dir == "." {
		return filepath.Dir(input)
	}
	return c.Output.Dir
}

func printReport(w io.Writer, rep *report.Report, dir string) {
	fmt.Fprintln(w, rep.SummaryTable())
	fmt.Fprintf(w, "Observations: %d (dropped %d of %d rows)\n", rep.Observations, rep.Prep.Rows-rep.Prep.Kept, rep.Prep.Rows)
	for _, n := range rep.Notes {
		fmt.Fprintf(w, "%s %s\n", warning("⚠"), n)
	}
	for _, p := range rep.Plots {
		fmt.Fprintf(w, "Figure: %s\n", p)
	}
	fmt.Fprintf(w, "%s Run %s written to %s\n", success("✓"), rep.RunID, dir)
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelFlags.register(modelCmd)
	modelRead.register(modelCmd)
}
