package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultSchema is the positional header of the raw survey export. The last
// entries are placeholder and count columns carried by the export.
var DefaultSchema = []string{
	"GÉNERO", "AÑO", "PAÍS DE RESIDENCIA", "DEPARTAMENTO DE RESIDENCIA",
	"MUNICIPIO DE RESIDENCIA", "VALOR DE LA MATRÍCULA UNIVERSITARIA",
	"PAGO PROPIO DE MATRÍCULA", "NIVEL DE EDUCACIÓN DEL PADRE",
	"NIVEL DE EDUCACIÓN DE LA MADRE", "ESTRATO DE VIVIENDA",
	"INTERNET EN VIVIENDA", "COMPUTADOR EN VIVIENDA", "LAVADORA EN VIVIENDA",
	"HORNO MICROHONDAS EN VIVIENDA", "TELEVISIÓN EN VIVIENDA",
	"AUTOMÓVIL EN VIVIENDA", "MOTOCICLETA EN VIVIENDA", "CONSOLA EN VIVIENDA",
	"BAÑO COMPARTIDO EN VIVIENDA", "HORAS DE TRABAJO SEMANALES DEL ESTUDIANTE",
	"NOMBRE DE LA INSTITUCIÓN EDUCATIVA", "PROGRAMA ACADÉMICO DEL ESTUDIANTE",
	"PUNTAJE GLOBAL", "--", "CANTIDAD DE DATOS", "--",
}

// Global configuration structure.
type Global struct {
	Split      Split      `mapstructure:"split" yaml:"split"`
	Filter     Filter     `mapstructure:"filter" yaml:"filter"`
	Model      Model      `mapstructure:"model" yaml:"model"`
	Priors     Priors     `mapstructure:"priors" yaml:"priors"`
	Sampler    Sampler    `mapstructure:"sampler" yaml:"sampler"`
	HDIProb    float64    `mapstructure:"hdi_prob" yaml:"hdi_prob"`
	Predictive Predictive `mapstructure:"predictive" yaml:"predictive"`
	Output     Output     `mapstructure:"output" yaml:"output"`
}

// Split configures the column splitter.
type Split struct {
	Schema    []string `mapstructure:"schema" yaml:"schema"`
	Separator string   `mapstructure:"separator" yaml:"separator"`
	Strict    bool     `mapstructure:"strict" yaml:"strict"`
}

// Filter configures the year filter.
type Filter struct {
	Field string `mapstructure:"field" yaml:"field"`
	Year  int    `mapstructure:"year" yaml:"year"`
}

// Model names the fields the score model reads and the accepted values.
type Model struct {
	YearField     string `mapstructure:"year_field" yaml:"year_field"`
	Years         []int  `mapstructure:"years" yaml:"years"`
	ScoreField    string `mapstructure:"score_field" yaml:"score_field"`
	ComputerField string `mapstructure:"computer_field" yaml:"computer_field"`
	InternetField string `mapstructure:"internet_field" yaml:"internet_field"`
	StratumField  string `mapstructure:"stratum_field" yaml:"stratum_field"`
	Affirmative   string `mapstructure:"affirmative" yaml:"affirmative"`
	Negative      string `mapstructure:"negative" yaml:"negative"`
}

// Priors holds the regression prior hyperparameters. Slopes are centered at 0.
type Priors struct {
	AlphaMu        float64 `mapstructure:"alpha_mu" yaml:"alpha_mu" json:"alpha_mu"`
	AlphaSD        float64 `mapstructure:"alpha_sd" yaml:"alpha_sd" json:"alpha_sd"`
	BetaComputerSD float64 `mapstructure:"beta_compu_sd" yaml:"beta_compu_sd" json:"beta_compu_sd"`
	BetaInternetSD float64 `mapstructure:"beta_internet_sd" yaml:"beta_internet_sd" json:"beta_internet_sd"`
	BetaStratumSD  float64 `mapstructure:"beta_estrato_sd" yaml:"beta_estrato_sd" json:"beta_estrato_sd"`
	SigmaSD        float64 `mapstructure:"sigma_sd" yaml:"sigma_sd" json:"sigma_sd"`
}

// Sampler configures MCMC.
type Sampler struct {
	Draws  int    `mapstructure:"draws" yaml:"draws" json:"draws"`
	Tune   int    `mapstructure:"tune" yaml:"tune" json:"tune"`
	Chains int    `mapstructure:"chains" yaml:"chains" json:"chains"`
	Seed   uint64 `mapstructure:"seed" yaml:"seed" json:"seed"`
}

// Predictive configures posterior-predictive reporting.
type Predictive struct {
	SampleColumns int `mapstructure:"sample_columns" yaml:"sample_columns"`
	Bins          int `mapstructure:"bins" yaml:"bins"`
}

// Output configures where results go.
type Output struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Plots bool   `mapstructure:"plots" yaml:"plots"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Global {
	return &Global{
		Split:  Split{Schema: append([]string(nil), DefaultSchema...), Separator: ","},
		Filter: Filter{Field: "PERIODO", Year: 2020},
		Model: Model{
			YearField:     "AÑO",
			Years:         []int{2020, 2021},
			ScoreField:    "PUNTAJE GLOBAL",
			ComputerField: "COMPUTADOR EN VIVIENDA",
			InternetField: "INTERNET EN VIVIENDA",
			StratumField:  "ESTRATO DE VIVIENDA",
			Affirmative:   "si",
			Negative:      "no",
		},
		Priors: Priors{
			AlphaMu:        300,
			AlphaSD:        100,
			BetaComputerSD: 50,
			BetaInternetSD: 50,
			BetaStratumSD:  10,
			SigmaSD:        50,
		},
		Sampler:    Sampler{Draws: 1000, Tune: 500, Chains: 4, Seed: 42},
		HDIProb:    0.80,
		Predictive: Predictive{SampleColumns: 100, Bins: 30},
		Output:     Output{Dir: ".", Plots: true},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("split.schema", d.Split.Schema)
	v.SetDefault("split.separator", d.Split.Separator)
	v.SetDefault("split.strict", d.Split.Strict)
	v.SetDefault("filter.field", d.Filter.Field)
	v.SetDefault("filter.year", d.Filter.Year)
	v.SetDefault("model.year_field", d.Model.YearField)
	v.SetDefault("model.years", d.Model.Years)
	v.SetDefault("model.score_field", d.Model.ScoreField)
	v.SetDefault("model.computer_field", d.Model.ComputerField)
	v.SetDefault("model.internet_field", d.Model.InternetField)
	v.SetDefault("model.stratum_field", d.Model.StratumField)
	v.SetDefault("model.affirmative", d.Model.Affirmative)
	v.SetDefault("model.negative", d.Model.Negative)
	v.SetDefault("priors.alpha_mu", d.Priors.AlphaMu)
	v.SetDefault("priors.alpha_sd", d.Priors.AlphaSD)
	v.SetDefault("priors.beta_compu_sd", d.Priors.BetaComputerSD)
	v.SetDefault("priors.beta_internet_sd", d.Priors.BetaInternetSD)
	v.SetDefault("priors.beta_estrato_sd", d.Priors.BetaStratumSD)
	v.SetDefault("priors.sigma_sd", d.Priors.SigmaSD)
	v.SetDefault("sampler.draws", d.Sampler.Draws)
	v.SetDefault("sampler.tune", d.Sampler.Tune)
	v.SetDefault("sampler.chains", d.Sampler.Chains)
	v.SetDefault("sampler.seed", d.Sampler.Seed)
	v.SetDefault("hdi_prob", d.HDIProb)
	v.SetDefault("predictive.sample_columns", d.Predictive.SampleColumns)
	v.SetDefault("predictive.bins", d.Predictive.Bins)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.plots", d.Output.Plots)
}

// Validate reports every invalid setting at once.
func (c *Global) Validate() error {
	var err error
	if len(c.Split.Schema) == 0 {
		err = multierr.Append(err, fmt.Errorf("split.schema must not be empty"))
	}
	if c.Split.Separator == "" {
		err = multierr.Append(err, fmt.Errorf("split.separator must not be empty"))
	}
	if strings.TrimSpace(c.Filter.Field) == "" {
		err = multierr.Append(err, fmt.Errorf("filter.field must not be empty"))
	}
	for name, f := range map[string]string{
		"model.year_field":     c.Model.YearField,
		"model.score_field":    c.Model.ScoreField,
		"model.computer_field": c.Model.ComputerField,
		"model.internet_field": c.Model.InternetField,
		"model.stratum_field":  c.Model.StratumField,
	} {
		if strings.TrimSpace(f) == "" {
			err = multierr.Append(err, fmt.Errorf("%s must not be empty", name))
		}
	}
	if len(c.Model.Years) == 0 {
		err = multierr.Append(err, fmt.Errorf("model.years must list at least one year"))
	}
	for name, sd := range map[string]float64{
		"priors.alpha_sd":         c.Priors.AlphaSD,
		"priors.beta_compu_sd":    c.Priors.BetaComputerSD,
		"priors.beta_internet_sd": c.Priors.BetaInternetSD,
		"priors.beta_estrato_sd":  c.Priors.BetaStratumSD,
		"priors.sigma_sd":         c.Priors.SigmaSD,
	} {
		if !(sd > 0) {
			err = multierr.Append(err, fmt.Errorf("%s must be > 0, got %v", name, sd))
		}
	}
	if c.Sampler.Draws < 1 {
		err = multierr.Append(err, fmt.Errorf("sampler.draws must be >= 1, got %d", c.Sampler.Draws))
	}
	if c.Sampler.Tune < 0 {
		err = multierr.Append(err, fmt.Errorf("sampler.tune must be >= 0, got %d", c.Sampler.Tune))
	}
	if c.Sampler.Chains < 1 {
		err = multierr.Append(err, fmt.Errorf("sampler.chains must be >= 1, got %d", c.Sampler.Chains))
	}
	if !(c.HDIProb > 0 && c.HDIProb < 1) {
		err = multierr.Append(err, fmt.Errorf("hdi_prob must be in (0,1), got %v", c.HDIProb))
	}
	if c.Predictive.Bins < 1 {
		err = multierr.Append(err, fmt.Errorf("predictive.bins must be >= 1, got %d", c.Predictive.Bins))
	}
	return err
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.saberlab/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := defaultDir()
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
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
// Nested keys map to env vars with '_' separators, e.g. SABERLAB_SAMPLER_SEED.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SABERLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		if dir, err := defaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".saberlab"), nil
}
