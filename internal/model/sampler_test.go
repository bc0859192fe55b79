package model

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/saberlab/internal/config"
	"github.com/KaramelBytes/saberlab/internal/table"
)

func synthetic(n int) *Dataset {
	r := rand.New(rand.NewPCG(7, 7))
	ds := &Dataset{}
	for i := 0; i < n; i++ {
		compu := float64(r.IntN(2))
		inet := float64(r.IntN(2))
		estrato := float64(1 + r.IntN(6))
		ds.Computer = append(ds.Computer, compu)
		ds.Internet = append(ds.Internet, inet)
		ds.Stratum = append(ds.Stratum, estrato)
		ds.Score = append(ds.Score, 250+12*compu+6*inet+8*estrato+10*r.NormFloat64())
	}
	return ds
}

func quickOptions() SamplerOptions {
	return SamplerOptions{Draws: 400, Tune: 300, Chains: 2, Seed: 42}
}

func TestFitRecoversCoefficients(t *testing.T) {
	tr, err := Fit(context.Background(), synthetic(300), config.Default().Priors, quickOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, tr.Chains())
	require.Equal(t, 400, tr.DrawsPerChain())

	sum, err := Summarize(tr, 0.8)
	require.NoError(t, err)
	require.Len(t, sum, 5)

	got := map[string]ParamSummary{}
	for _, s := range sum {
		got[s.Name] = s
		assert.LessOrEqual(t, s.HDILow, s.Mean, s.Name)
		assert.LessOrEqual(t, s.Mean, s.HDIHigh, s.Name)
		assert.Greater(t, s.SD, 0.0, s.Name)
	}
	assert.InDelta(t, 8, got[BetaStratum].Mean, 2)
	assert.InDelta(t, 12, got[BetaComputer].Mean, 5)
	assert.InDelta(t, 10, got[Sigma].Mean, 2)
	assert.Greater(t, got[Sigma].HDILow, 0.0)
	for _, a := range tr.Acceptance {
		assert.Greater(t, a, 0.0)
		assert.Less(t, a, 1.0)
	}
}

func TestFitDeterministicForSeed(t *testing.T) {
	ds := synthetic(120)
	opt := SamplerOptions{Draws: 150, Tune: 100, Chains: 3, Seed: 42}
	a, err := Fit(context.Background(), ds, config.Default().Priors, opt, nil)
	require.NoError(t, err)
	b, err := Fit(context.Background(), ds, config.Default().Priors, opt, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Draws, b.Draws)

	sa, err := Summarize(a, 0.8)
	require.NoError(t, err)
	sb, err := Summarize(b, 0.8)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	opt.Seed = 43
	c, err := Fit(context.Background(), ds, config.Default().Priors, opt, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Draws, c.Draws)
}

func TestFitReportsProgress(t *testing.T) {
	var steps atomic.Int64
	opt := SamplerOptions{Draws: 120, Tune: 70, Chains: 2, Seed: 1, Progress: func(n int) { steps.Add(int64(n)) }}
	_, err := Fit(context.Background(), synthetic(50), config.Default().Priors, opt, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(opt.TotalSteps()), steps.Load())
}

func TestFitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, synthetic(50), config.Default().Priors, quickOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFitRejectsEmptyInput(t *testing.T) {
	_, err := Fit(context.Background(), &Dataset{}, config.Default().Priors, quickOptions(), nil)
	assert.ErrorIs(t, err, ErrNoObservations)

	_, err = Fit(context.Background(), synthetic(10), config.Default().Priors, SamplerOptions{Draws: 0, Chains: 1}, nil)
	assert.Error(t, err)
}

func TestFiveRowPipeline(t *testing.T) {
	rows := [][]string{
		{"2020", "no", "no", "Estrato 1", "300", ""},
		{"2020", "no", "si", "Estrato 2", "310", ""},
		{"2021", "si", "no", "Estrato 3", "320", ""},
		{"2021", "si", "si", "Estrato 4", "330", ""},
		{"2020", "si", "si", "Estrato 5", "340", ""},
	}
	ds, st, err := Prepare(table.New("five.csv", testHeader, rows), testFields(), nil)
	require.NoError(t, err)
	require.Equal(t, 5, st.Kept)

	tr, err := Fit(context.Background(), ds, config.Default().Priors, SamplerOptions{Draws: 200, Tune: 200, Chains: 2, Seed: 42}, nil)
	require.NoError(t, err)
	sum, err := Summarize(tr, 0.8)
	require.NoError(t, err)

	names := make([]string, len(sum))
	for i, s := range sum {
		names[i] = s.Name
		assert.False(t, math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0), s.Name)
		assert.LessOrEqual(t, s.HDILow, s.HDIHigh, s.Name)
	}
	assert.Equal(t, []string{"alpha", "beta_compu", "beta_internet", "beta_estrato", "sigma"}, names)

	pred, err := PosteriorPredictive(tr, ds, PredictiveOptions{Seed: 42, HDIProb: 0.8, SampleColumns: 100})
	require.NoError(t, err)
	assert.Len(t, pred.Sample, tr.Chains()*100*5)
	assert.Len(t, pred.Profiles, 5)
}

func TestPosteriorPredictive(t *testing.T) {
	ds := synthetic(200)
	tr, err := Fit(context.Background(), ds, config.Default().Priors, quickOptions(), nil)
	require.NoError(t, err)

	opt := PredictiveOptions{Seed: 42, HDIProb: 0.8, SampleColumns: 100}
	p, err := PosteriorPredictive(tr, ds, opt)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Observations)
	assert.Equal(t, 800, p.Draws)
	assert.Len(t, p.Sample, 2*100*200)
	assert.LessOrEqual(t, p.Low, p.Mean)
	assert.LessOrEqual(t, p.Mean, p.High)

	total := 0
	for _, pr := range p.Profiles {
		total += pr.Count
		assert.LessOrEqual(t, pr.Low, pr.High)
	}
	assert.Equal(t, 200, total)
	// Roughly 2*1.28*sigma wide with sigma near 10.
	assert.InDelta(t, 25.6, p.High-p.Low, 5)

	again, err := PosteriorPredictive(tr, ds, opt)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestFitMixesAtDefaultSettings(t *testing.T) {
	if testing.Short() {
		t.Skip("full-length sampling")
	}
	d := config.Default().Sampler
	opt := SamplerOptions{Draws: d.Draws, Tune: d.Tune, Chains: d.Chains, Seed: d.Seed}
	tr, err := Fit(context.Background(), synthetic(2000), config.Default().Priors, opt, nil)
	require.NoError(t, err)
	sum, err := Summarize(tr, 0.8)
	require.NoError(t, err)
	assert.Empty(t, Diagnose(sum, tr))
	for _, s := range sum {
		assert.Greater(t, s.ESS, float64(MinESSPerChain*opt.Chains), s.Name)
		assert.Less(t, s.MCSE, s.SD/20, s.Name)
	}
}

func TestPosteriorPredictiveSharesDraws(t *testing.T) {
	// sigma = 0 makes every prediction equal alpha.
	tr := &Trace{Names: ParamNames, Draws: make([][][]float64, 2)}
	for c := range tr.Draws {
		for i := 0; i < 3; i++ {
			tr.Draws[c] = append(tr.Draws[c], []float64{float64(10*c + i), 0, 0, 0, 0})
		}
	}
	ds := &Dataset{
		Score:    []float64{1, 2},
		Computer: []float64{0, 1},
		Internet: []float64{0, 0},
		Stratum:  []float64{1, 1},
	}
	p, err := PosteriorPredictive(tr, ds, PredictiveOptions{Seed: 1, HDIProb: 0.5, SampleColumns: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1, 10, 10, 11, 11}, p.Sample)
	assert.Equal(t, 6, p.Draws)
	// Draws {0,1,2,10,11,12}: three windows of width 10, the first wins.
	assert.Equal(t, 0.0, p.Low)
	assert.Equal(t, 10.0, p.High)
	assert.Equal(t, 6.0, p.Mean)
	require.Len(t, p.Profiles, 2)
	for _, pr := range p.Profiles {
		assert.Equal(t, 1, pr.Count)
		assert.Equal(t, 0.0, pr.Low)
		assert.Equal(t, 10.0, pr.High)
	}

	wide, err := PosteriorPredictive(tr, ds, PredictiveOptions{Seed: 1, HDIProb: 0.5, SampleColumns: 50})
	require.NoError(t, err)
	assert.Len(t, wide.Sample, 2*3*2)

	_, err = PosteriorPredictive(tr, ds, PredictiveOptions{HDIProb: 1})
	assert.Error(t, err)
}

func TestDiagnoseFlagsPoorMixing(t *testing.T) {
	tr := &Trace{
		Names:      []string{Alpha},
		Acceptance: []float64{0.01, 0.3},
		Draws:      make([][][]float64, 2),
	}
	for c := range tr.Draws {
		for i := 0; i < 50; i++ {
			tr.Draws[c] = append(tr.Draws[c], []float64{float64(c*100 + i)})
		}
	}
	sum, err := Summarize(tr, 0.8)
	require.NoError(t, err)
	notes := Diagnose(sum, tr)
	require.Len(t, notes, 3)
	assert.Contains(t, notes[0], "r_hat")
	assert.Contains(t, notes[1], "effective sample size")
	assert.Contains(t, notes[2], "chain 0")
}

func TestRHatAndESSWellMixed(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	chains := make([][]float64, 4)
	for c := range chains {
		for i := 0; i < 1000; i++ {
			chains[c] = append(chains[c], r.NormFloat64())
		}
	}
	assert.InDelta(t, 1.0, RHat(chains), 0.01)
	assert.InDelta(t, 4000, EffectiveSampleSize(chains), 1000)
	assert.True(t, math.IsNaN(RHat([][]float64{{1}})))
}
