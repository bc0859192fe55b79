package model

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Convergence thresholds used by Diagnose.
const (
	MaxRHat        = 1.01
	MinESSPerChain = 100
	MinAcceptance  = 0.05
	MaxAcceptance  = 0.90
)

// ParamSummary is one row of the posterior summary table.
type ParamSummary struct {
	Name    string  `json:"name"`
	Mean    float64 `json:"mean"`
	SD      float64 `json:"sd"`
	HDILow  float64 `json:"hdi_low"`
	HDIHigh float64 `json:"hdi_high"`
	MCSE    float64 `json:"mcse"`
	ESS     float64 `json:"ess"`
	RHat    float64 `json:"r_hat"`
}

// Summarize computes mean, sample sd, the HDI at prob, and the convergence
// diagnostics for every parameter in the trace.
func Summarize(tr *Trace, prob float64) ([]ParamSummary, error) {
	if tr == nil || tr.Chains() == 0 || tr.DrawsPerChain() == 0 {
		return nil, ErrEmptySample
	}
	out := make([]ParamSummary, len(tr.Names))
	for p, name := range tr.Names {
		flat := tr.Flat(p)
		mean, err := stats.Mean(flat)
		if err != nil {
			return nil, fmt.Errorf("%s mean: %w", name, err)
		}
		sd := 0.0
		if len(flat) > 1 {
			if sd, err = stats.StandardDeviationSample(flat); err != nil {
				return nil, fmt.Errorf("%s sd: %w", name, err)
			}
		}
		lo, hi, err := HDI(flat, prob)
		if err != nil {
			return nil, fmt.Errorf("%s hdi: %w", name, err)
		}
		chains := tr.Param(p)
		ess := EffectiveSampleSize(chains)
		mcse := math.NaN()
		if ess > 0 {
			mcse = sd / math.Sqrt(ess)
		}
		out[p] = ParamSummary{
			Name:    name,
			Mean:    mean,
			SD:      sd,
			HDILow:  lo,
			HDIHigh: hi,
			MCSE:    mcse,
			ESS:     ess,
			RHat:    RHat(chains),
		}
	}
	return out, nil
}

// Diagnose returns human-readable convergence warnings. An empty result
// means no check tripped; warnings never invalidate the fit.
func Diagnose(sum []ParamSummary, tr *Trace) []string {
	var notes []string
	minESS := float64(MinESSPerChain * tr.Chains())
	for _, s := range sum {
		if !math.IsNaN(s.RHat) && s.RHat > MaxRHat {
			notes = append(notes, fmt.Sprintf("%s: r_hat %.3f exceeds %.2f", s.Name, s.RHat, MaxRHat))
		}
		if math.IsNaN(s.ESS) || s.ESS < minESS {
			notes = append(notes, fmt.Sprintf("%s: effective sample size %.0f below %.0f", s.Name, s.ESS, minESS))
		}
	}
	for c, a := range tr.Acceptance {
		if a < MinAcceptance || a > MaxAcceptance {
			notes = append(notes, fmt.Sprintf("chain %d: acceptance rate %.2f outside [%.2f, %.2f]", c, a, MinAcceptance, MaxAcceptance))
		}
	}
	return notes
}

// splitChains halves every chain, dropping the middle draw of odd lengths.
func splitChains(chains [][]float64) [][]float64 {
	var out [][]float64
	for _, c := range chains {
		half := len(c) / 2
		if half == 0 {
			continue
		}
		out = append(out, c[:half], c[len(c)-half:])
	}
	return out
}

// chainMoments returns per-chain means and sample variances.
func chainMoments(chains [][]float64) (means, vars []float64) {
	means = make([]float64, len(chains))
	vars = make([]float64, len(chains))
	for i, c := range chains {
		means[i], _ = stats.Mean(c)
		if len(c) > 1 {
			vars[i], _ = stats.VarS(c)
		}
	}
	return means, vars
}

// varianceEstimates returns the within-chain variance W and the pooled
// marginal posterior variance estimate.
func varianceEstimates(chains [][]float64) (w, varPlus float64) {
	n := float64(len(chains[0]))
	means, vars := chainMoments(chains)
	w, _ = stats.Mean(vars)
	b := 0.0
	if len(means) > 1 {
		v, _ := stats.VarS(means)
		b = n * v
	}
	return w, (n-1)/n*w + b/n
}

// RHat is the split potential scale reduction factor. It is NaN when the
// chains are too short or carry no variance.
func RHat(chains [][]float64) float64 {
	split := splitChains(chains)
	if len(split) < 2 || len(split[0]) < 2 {
		return math.NaN()
	}
	w, varPlus := varianceEstimates(split)
	if w == 0 {
		return math.NaN()
	}
	return math.Sqrt(varPlus / w)
}

// EffectiveSampleSize estimates the number of independent draws using the
// multi-chain autocorrelation with Geyer's initial monotone sequence.
func EffectiveSampleSize(chains [][]float64) float64 {
	split := splitChains(chains)
	if len(split) == 0 || len(split[0]) < 4 {
		return math.NaN()
	}
	m, n := len(split), len(split[0])
	w, varPlus := varianceEstimates(split)
	if varPlus == 0 || w == 0 {
		return math.NaN()
	}
	means, _ := chainMoments(split)
	rho := func(lag int) float64 {
		acov := 0.0
		for c, chain := range split {
			s := 0.0
			for i := 0; i+lag < n; i++ {
				s += (chain[i] - means[c]) * (chain[i+lag] - means[c])
			}
			acov += s / float64(n)
		}
		acov /= float64(m)
		return 1 - (w-acov)/varPlus
	}

	tau := -1.0
	prev := math.Inf(1)
	for t := 0; t+1 < n; t += 2 {
		pair := rho(t) + rho(t+1)
		if pair <= 0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		tau += 2 * pair
		prev = pair
	}
	total := float64(m * n)
	// Capped at total*log10(total).
	tau = math.Max(tau, 1/math.Log10(total))
	return total / tau
}
