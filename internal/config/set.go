package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Set assigns a single dotted key from its string form. Lists are
// comma-separated. The result is validated before returning.
func Set(c *Global, key, val string) error {
	var err error
	switch key {
	case "split.schema":
		c.Split.Schema = splitList(val)
	case "split.separator":
		c.Split.Separator = val
	case "split.strict":
		c.Split.Strict, err = strconv.ParseBool(val)
	case "filter.field":
		c.Filter.Field = val
	case "filter.year":
		c.Filter.Year, err = strconv.Atoi(val)
	case "model.year_field":
		c.Model.YearField = val
	case "model.years":
		var years []int
		for _, s := range splitList(val) {
			y, e := strconv.Atoi(s)
			if e != nil {
				return fmt.Errorf("invalid int in model.years: %q", s)
			}
			years = append(years, y)
		}
		c.Model.Years = years
	case "model.score_field":
		c.Model.ScoreField = val
	case "model.computer_field":
		c.Model.ComputerField = val
	case "model.internet_field":
		c.Model.InternetField = val
	case "model.stratum_field":
		c.Model.StratumField = val
	case "model.affirmative":
		c.Model.Affirmative = strings.ToLower(strings.TrimSpace(val))
	case "model.negative":
		c.Model.Negative = strings.ToLower(strings.TrimSpace(val))
	case "priors.alpha_mu":
		c.Priors.AlphaMu, err = strconv.ParseFloat(val, 64)
	case "priors.alpha_sd":
		c.Priors.AlphaSD, err = strconv.ParseFloat(val, 64)
	case "priors.beta_compu_sd":
		c.Priors.BetaComputerSD, err = strconv.ParseFloat(val, 64)
	case "priors.beta_internet_sd":
		c.Priors.BetaInternetSD, err = strconv.ParseFloat(val, 64)
	case "priors.beta_estrato_sd":
		c.Priors.BetaStratumSD, err = strconv.ParseFloat(val, 64)
	case "priors.sigma_sd":
		c.Priors.SigmaSD, err = strconv.ParseFloat(val, 64)
	case "sampler.draws":
		c.Sampler.Draws, err = strconv.Atoi(val)
	case "sampler.tune":
		c.Sampler.Tune, err = strconv.Atoi(val)
	case "sampler.chains":
		c.Sampler.Chains, err = strconv.Atoi(val)
	case "sampler.seed":
		c.Sampler.Seed, err = strconv.ParseUint(val, 10, 64)
	case "hdi_prob":
		c.HDIProb, err = strconv.ParseFloat(val, 64)
	case "predictive.sample_columns":
		c.Predictive.SampleColumns, err = strconv.Atoi(val)
	case "predictive.bins":
		c.Predictive.Bins, err = strconv.Atoi(val)
	case "output.dir":
		c.Output.Dir = val
	case "output.plots":
		c.Output.Plots, err = strconv.ParseBool(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
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
