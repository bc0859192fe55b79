// Package model fits the Bayesian score regression
//
//	score ~ Normal(alpha + beta_compu*compu + beta_internet*internet + beta_estrato*estrato, sigma)
//
// with Normal priors on the coefficients and a HalfNormal prior on sigma,
// sampled by Metropolis-Hastings in (alpha, betas, log sigma) with a
// Student's t independence proposal built from the Laplace approximation.
package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/saberlab/internal/config"
)

// Parameter names in summary order.
const (
	Alpha        = "alpha"
	BetaComputer = "beta_compu"
	BetaInternet = "beta_internet"
	BetaStratum  = "beta_estrato"
	Sigma        = "sigma"
)

// ParamNames lists the model parameters in trace column order.
var ParamNames = []string{Alpha, BetaComputer, BetaInternet, BetaStratum, Sigma}

const (
	nCoef  = 4
	nParam = 5
)

var log2Pi = math.Log(2 * math.Pi)

// posterior is the unnormalized log density over
// (alpha, beta_compu, beta_internet, beta_estrato, log sigma).
// The likelihood is evaluated from sufficient statistics, so each call costs
// the same whatever the number of observations.
type posterior struct {
	priors config.Priors
	n      float64
	xtx    [nCoef][nCoef]float64
	xty    [nCoef]float64
	yty    float64
}

func newPosterior(ds *Dataset, p config.Priors) *posterior {
	lp := &posterior{priors: p, n: float64(ds.Len())}
	for i := range ds.Score {
		x := [nCoef]float64{1, ds.Computer[i], ds.Internet[i], ds.Stratum[i]}
		y := ds.Score[i]
		for a := 0; a < nCoef; a++ {
			lp.xty[a] += x[a] * y
			for b := 0; b < nCoef; b++ {
				lp.xtx[a][b] += x[a] * x[b]
			}
		}
		lp.yty += y * y
	}
	return lp
}

// rss is the residual sum of squares at coefficients beta.
func (lp *posterior) rss(beta []float64) float64 {
	r := lp.yty
	for a := 0; a < nCoef; a++ {
		r -= 2 * beta[a] * lp.xty[a]
		for b := 0; b < nCoef; b++ {
			r += beta[a] * lp.xtx[a][b] * beta[b]
		}
	}
	if r < 0 {
		return 0
	}
	return r
}

func (lp *posterior) priorSDs() [nCoef]float64 {
	return [nCoef]float64{lp.priors.AlphaSD, lp.priors.BetaComputerSD, lp.priors.BetaInternetSD, lp.priors.BetaStratumSD}
}

func (lp *posterior) priorMeans() [nCoef]float64 {
	return [nCoef]float64{lp.priors.AlphaMu, 0, 0, 0}
}

// LogProb implements distmv.LogProber.
func (lp *posterior) LogProb(x []float64) float64 {
	logSigma := x[nCoef]
	sigma := math.Exp(logSigma)
	if sigma == 0 || math.IsInf(sigma, 0) || math.IsNaN(sigma) {
		return math.Inf(-1)
	}
	v := 0.0
	sds, mus := lp.priorSDs(), lp.priorMeans()
	for i := 0; i < nCoef; i++ {
		v += normalLogPDF(x[i], mus[i], sds[i])
	}
	// HalfNormal on sigma plus the log-transform Jacobian.
	v += math.Log(2) + normalLogPDF(sigma, 0, lp.priors.SigmaSD) + logSigma
	v += -lp.n*logSigma - 0.5*lp.n*log2Pi - lp.rss(x[:nCoef])/(2*sigma*sigma)
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

func normalLogPDF(x, mu, sd float64) float64 {
	z := (x - mu) / sd
	return -0.5*z*z - math.Log(sd) - 0.5*log2Pi
}

// start locates the posterior mode by alternating a ridge solve for the
// coefficients with a residual estimate of sigma, and returns the mode plus
// a Laplace approximation of the covariance in sampling coordinates.
func (lp *posterior) start(scoreSD float64) ([]float64, *mat.SymDense, error) {
	floor := 1e-3 * math.Max(scoreSD, 1)
	sigma := math.Max(scoreSD, 1)
	sds, mus := lp.priorSDs(), lp.priorMeans()

	var beta mat.VecDense
	var chol mat.Cholesky
	for iter := 0; iter < 4; iter++ {
		prec := mat.NewSymDense(nCoef, nil)
		rhs := mat.NewVecDense(nCoef, nil)
		s2 := sigma * sigma
		for a := 0; a < nCoef; a++ {
			for b := a; b < nCoef; b++ {
				prec.SetSym(a, b, lp.xtx[a][b]/s2)
			}
			prior := 1 / (sds[a] * sds[a])
			prec.SetSym(a, a, prec.At(a, a)+prior)
			rhs.SetVec(a, lp.xty[a]/s2+prior*mus[a])
		}
		if ok := chol.Factorize(prec); !ok {
			return nil, nil, fmt.Errorf("posterior precision is not positive definite")
		}
		if err := chol.SolveVecTo(&beta, rhs); err != nil {
			return nil, nil, fmt.Errorf("solve posterior mode: %w", err)
		}
		next := math.Sqrt(lp.rss(beta.RawVector().Data) / math.Max(lp.n, 1))
		sigma = math.Max(next, floor)
	}

	var coefCov mat.SymDense
	if err := chol.InverseTo(&coefCov); err != nil {
		return nil, nil, fmt.Errorf("invert posterior precision: %w", err)
	}
	cov := mat.NewSymDense(nParam, nil)
	for a := 0; a < nCoef; a++ {
		for b := a; b < nCoef; b++ {
			cov.SetSym(a, b, coefCov.At(a, b))
		}
	}
	cov.SetSym(nCoef, nCoef, 1/(2*math.Max(lp.n, 1)))

	x := make([]float64, nParam)
	copy(x, beta.RawVector().Data)
	x[nCoef] = math.Log(sigma)
	return x, cov, nil
}
