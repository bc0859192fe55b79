package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/KaramelBytes/saberlab/internal/config"
)

// chunkRows is how many MH steps run between cancellation checks and
// progress callbacks.
const chunkRows = 50

// The proposal is a multivariate Student's t whose scale matrix is the
// posterior covariance estimate times proposalInflation.
const (
	proposalDF        = 7
	proposalInflation = 1.2
)

// SamplerOptions controls MCMC.
type SamplerOptions struct {
	Draws  int
	Tune   int
	Chains int
	Seed   uint64
	// Progress, when set, is called with the number of steps just completed
	// by some chain. It may be called from several goroutines.
	Progress func(steps int)
}

// TotalSteps is the number of MH steps across all chains, tuning included.
func (o SamplerOptions) TotalSteps() int {
	return (o.Draws + o.Tune) * o.Chains
}

// Trace holds retained posterior draws in natural scale: Draws[chain][draw]
// is one vector ordered like ParamNames, with sigma already exponentiated.
type Trace struct {
	Names      []string      `json:"names"`
	Draws      [][][]float64 `json:"-"`
	Acceptance []float64     `json:"acceptance"`
	Seed       uint64        `json:"seed"`
	Tune       int           `json:"tune"`
}

// Chains returns the number of chains.
func (tr *Trace) Chains() int { return len(tr.Draws) }

// DrawsPerChain returns the number of retained draws in each chain.
func (tr *Trace) DrawsPerChain() int {
	if len(tr.Draws) == 0 {
		return 0
	}
	return len(tr.Draws[0])
}

// Param returns the draws of parameter p per chain.
func (tr *Trace) Param(p int) [][]float64 {
	out := make([][]float64, len(tr.Draws))
	for c, chain := range tr.Draws {
		col := make([]float64, len(chain))
		for i, d := range chain {
			col[i] = d[p]
		}
		out[c] = col
	}
	return out
}

// Flat returns the draws of parameter p with chains concatenated.
func (tr *Trace) Flat(p int) []float64 {
	out := make([]float64, 0, tr.Chains()*tr.DrawsPerChain())
	for _, chain := range tr.Draws {
		for _, d := range chain {
			out = append(out, d[p])
		}
	}
	return out
}

// Fit samples the posterior of the score model. Chains run concurrently and
// are seeded from opt.Seed and the chain index, so results are reproducible
// for a given seed regardless of scheduling.
func Fit(ctx context.Context, ds *Dataset, priors config.Priors, opt SamplerOptions, log *zap.Logger) (*Trace, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if ds == nil || ds.Len() == 0 {
		return nil, ErrNoObservations
	}
	if opt.Draws < 1 || opt.Chains < 1 || opt.Tune < 0 {
		return nil, fmt.Errorf("invalid sampler options: draws=%d tune=%d chains=%d", opt.Draws, opt.Tune, opt.Chains)
	}

	target := newPosterior(ds, priors)
	scoreSD := 0.0
	if ds.Len() > 1 {
		if sd, err := stats.StandardDeviationSample(ds.Score); err == nil {
			scoreSD = sd
		}
	}
	mode, laplace, err := target.start(scoreSD)
	if err != nil {
		return nil, err
	}
	log.Debug("sampler start",
		zap.Float64s("mode", mode),
		zap.Int("observations", ds.Len()),
		zap.Int("chains", opt.Chains),
		zap.Int("draws", opt.Draws),
		zap.Int("tune", opt.Tune))

	tr := &Trace{
		Names:      append([]string(nil), ParamNames...),
		Draws:      make([][][]float64, opt.Chains),
		Acceptance: make([]float64, opt.Chains),
		Seed:       opt.Seed,
		Tune:       opt.Tune,
	}
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < opt.Chains; c++ {
		g.Go(func() error {
			draws, acc, err := runChain(gctx, target, mode, laplace, c, opt)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}
			tr.Draws[c] = draws
			tr.Acceptance[c] = acc
			log.Debug("chain finished", zap.Int("chain", c), zap.Float64("acceptance", acc))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("sampling complete",
		zap.Int("chains", opt.Chains),
		zap.Int("draws", opt.Draws),
		zap.Float64s("acceptance", tr.Acceptance))
	return tr, nil
}

// chainSource derives an independent PCG stream for one purpose of one chain.
func chainSource(seed uint64, chain, stream int) *rand.PCG {
	return rand.NewPCG(seed, uint64(chain)<<8|uint64(stream))
}

// independenceProposal draws every candidate from a fixed distribution,
// whatever the current state.
type independenceProposal struct {
	dist *distmv.StudentsT
}

func newIndependenceProposal(mu []float64, cov mat.Symmetric, src rand.Source) (*independenceProposal, bool) {
	scaled := mat.NewSymDense(nParam, nil)
	scaled.ScaleSym(proposalInflation, cov)
	d, ok := distmv.NewStudentsT(mu, scaled, proposalDF, src)
	if !ok {
		return nil, false
	}
	return &independenceProposal{dist: d}, true
}

// ConditionalLogProb implements samplemv.MHProposal.
func (p *independenceProposal) ConditionalLogProb(x, _ []float64) float64 {
	return p.dist.LogProb(x)
}

// ConditionalRand implements samplemv.MHProposal.
func (p *independenceProposal) ConditionalRand(x, _ []float64) []float64 {
	return p.dist.Rand(x)
}

func runChain(ctx context.Context, target *posterior, mode []float64, laplace *mat.SymDense, chain int, opt SamplerOptions) ([][]float64, float64, error) {
	jitter := rand.New(chainSource(opt.Seed, chain, 0))
	accept := chainSource(opt.Seed, chain, 1)

	cur := make([]float64, nParam)
	for i := range cur {
		cur[i] = mode[i] + (2*jitter.Float64()-1)*math.Sqrt(laplace.At(i, i))
	}

	prop, ok := newIndependenceProposal(mode, laplace, chainSource(opt.Seed, chain, 2))
	if !ok {
		return nil, 0, fmt.Errorf("laplace covariance is not positive definite")
	}
	if opt.Tune > 0 {
		tune := mat.NewDense(opt.Tune, nParam, nil)
		last, err := sampleChunks(ctx, tune, cur, target, prop, accept, opt.Progress)
		if err != nil {
			return nil, 0, err
		}
		cur = last
		if adapted := adaptProposal(tune, laplace, chainSource(opt.Seed, chain, 3)); adapted != nil {
			prop = adapted
		}
	}

	batch := mat.NewDense(opt.Draws, nParam, nil)
	before := append([]float64(nil), cur...)
	if _, err := sampleChunks(ctx, batch, cur, target, prop, accept, opt.Progress); err != nil {
		return nil, 0, err
	}

	draws := make([][]float64, opt.Draws)
	moves := 0
	prev := before
	for i := range draws {
		row := batch.RawRowView(i)
		if !equalVec(row, prev) {
			moves++
		}
		prev = row
		d := append([]float64(nil), row...)
		d[nCoef] = math.Exp(d[nCoef])
		draws[i] = d
	}
	return draws, float64(moves) / float64(opt.Draws), nil
}

// sampleChunks fills batch with MH steps, checking ctx between chunks.
func sampleChunks(ctx context.Context, batch *mat.Dense, from []float64, target *posterior, prop samplemv.MHProposal, src rand.Source, progress func(int)) ([]float64, error) {
	rows, cols := batch.Dims()
	cur := append([]float64(nil), from...)
	for start := 0; start < rows; start += chunkRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+chunkRows, rows)
		sub := batch.Slice(start, end, 0, cols).(*mat.Dense)
		mh := samplemv.MetropolisHastingser{
			Initial:  cur,
			Target:   target,
			Proposal: prop,
			Src:      src,
		}
		mh.Sample(sub)
		cur = append(cur[:0], sub.RawRowView(end-start-1)...)
		if progress != nil {
			progress(end - start)
		}
	}
	return cur, nil
}

// adaptProposal recenters the proposal on the second half of the tuning
// draws and rescales it to their covariance, blended with the Laplace
// covariance to keep it positive definite. It returns nil when tuning was
// too short or the result is unusable.
func adaptProposal(tune *mat.Dense, laplace *mat.SymDense, src rand.Source) *independenceProposal {
	rows, _ := tune.Dims()
	if rows < 10*nParam {
		return nil
	}
	half := tune.Slice(rows/2, rows, 0, nParam)
	center := make([]float64, nParam)
	for j := range center {
		center[j] = stat.Mean(mat.Col(nil, j, half), nil)
		if math.IsNaN(center[j]) || math.IsInf(center[j], 0) {
			return nil
		}
	}
	var emp mat.SymDense
	stat.CovarianceMatrix(&emp, half, nil)
	blended := mat.NewSymDense(nParam, nil)
	for i := 0; i < nParam; i++ {
		for j := i; j < nParam; j++ {
			v := 0.8*emp.At(i, j) + 0.2*laplace.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil
			}
			blended.SetSym(i, j, v)
		}
	}
	prop, ok := newIndependenceProposal(center, blended, src)
	if !ok {
		return nil
	}
	return prop
}

func equalVec(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
