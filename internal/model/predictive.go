package model

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/montanaflynn/stats"
)

// PredictiveOptions controls posterior-predictive simulation.
type PredictiveOptions struct {
	Seed    uint64
	HDIProb float64
	// SampleColumns is how many leading draws of each chain contribute
	// their predictions for every observation to Predictive.Sample.
	SampleColumns int
}

// ProfileInterval is the predictive interval shared by every observation
// with the same covariates.
type ProfileInterval struct {
	Computer float64 `json:"compu"`
	Internet float64 `json:"internet"`
	Stratum  float64 `json:"estrato"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// Predictive summarizes the posterior-predictive distribution.
type Predictive struct {
	HDIProb      float64 `json:"hdi_prob"`
	Observations int     `json:"observations"`
	Draws        int     `json:"draws"`
	// Mean, Low and High average the per-observation predictive mean and
	// interval bounds.
	Mean     float64           `json:"mean"`
	Low      float64           `json:"low"`
	High     float64           `json:"high"`
	Profiles []ProfileInterval `json:"profiles"`
	// Sample holds the predictions of the first SampleColumns draws of each
	// chain for every observation, ordered by chain, draw, observation. It
	// feeds the histogram.
	Sample []float64 `json:"-"`
}

type profileKey struct{ compu, internet, estrato float64 }

type profileAcc struct {
	count           int
	mean, low, high float64
}

// PosteriorPredictive simulates one predictive score per posterior draw and
// observation. Each observation's interval is the HDI of its own simulated
// scores, and Sample is cut from the same simulation, so the histogram and
// the averaged bounds describe the same draws. Profile intervals average
// the intervals of the observations sharing those covariates.
func PosteriorPredictive(tr *Trace, ds *Dataset, opt PredictiveOptions) (*Predictive, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, ErrNoObservations
	}
	if tr == nil || tr.Chains() == 0 || tr.DrawsPerChain() == 0 {
		return nil, ErrEmptySample
	}
	if err := checkProb(opt.HDIProb); err != nil {
		return nil, fmt.Errorf("predictive interval: %w", err)
	}
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15))
	nObs, perChain := ds.Len(), tr.DrawsPerChain()
	keep := min(max(opt.SampleColumns, 0), perChain)

	p := &Predictive{
		HDIProb:      opt.HDIProb,
		Observations: nObs,
		Draws:        tr.Chains() * perChain,
		Sample:       make([]float64, tr.Chains()*keep*nObs),
	}
	sim := make([]float64, p.Draws)
	profiles := map[profileKey]*profileAcc{}
	for j := 0; j < nObs; j++ {
		compu, internet, estrato := ds.Computer[j], ds.Internet[j], ds.Stratum[j]
		k := 0
		for c, chain := range tr.Draws {
			for i, d := range chain {
				mu := d[0] + d[1]*compu + d[2]*internet + d[3]*estrato
				y := mu + d[4]*rng.NormFloat64()
				sim[k] = y
				k++
				if i < keep {
					p.Sample[(c*keep+i)*nObs+j] = y
				}
			}
		}
		mean, err := stats.Mean(sim)
		if err != nil {
			return nil, fmt.Errorf("predictive mean: %w", err)
		}
		sort.Float64s(sim)
		lo, hi := hdiSorted(sim, opt.HDIProb)

		key := profileKey{compu, internet, estrato}
		acc := profiles[key]
		if acc == nil {
			acc = &profileAcc{}
			profiles[key] = acc
		}
		acc.count++
		acc.mean += mean
		acc.low += lo
		acc.high += hi
		p.Mean += mean
		p.Low += lo
		p.High += hi
	}
	n := float64(nObs)
	p.Mean /= n
	p.Low /= n
	p.High /= n

	keys := make([]profileKey, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.estrato != b.estrato {
			return a.estrato < b.estrato
		}
		if a.compu != b.compu {
			return a.compu < b.compu
		}
		return a.internet < b.internet
	})
	for _, k := range keys {
		acc := profiles[k]
		c := float64(acc.count)
		p.Profiles = append(p.Profiles, ProfileInterval{
			Computer: k.compu,
			Internet: k.internet,
			Stratum:  k.estrato,
			Count:    acc.count,
			Mean:     acc.mean / c,
			Low:      acc.low / c,
			High:     acc.high / c,
		})
	}
	return p, nil
}
