package varcalc

import (
	"fmt"
	"math"
	rand "math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// MonteCarloVaRCVaR fits a multivariate normal to the asset return matrix,
// scales mean and covariance linearly by the horizon, draws nSims portfolio
// returns through the weight vector and applies the empirical quantile/tail
// procedure to the simulated distribution. The draw stream is fully
// determined by seed; identical inputs and seed reproduce bit-identical
// simulations. nSims is capped at MCSimCap.
//
// assetReturns must contain only fully-observed rows.
func MonteCarloVaRCVaR(
	assetReturns domain.Frame,
	weights map[string]float64,
	confidence float64,
	horizonDays, nSims int,
	seed int64,
	drift string,
	warnings *[]string,
) (float64, float64, []float64, error) {
	if assetReturns.IsEmpty() || assetReturns.Rows() < 2 {
		return 0, 0, nil, fmt.Errorf("%w: need at least 2 aligned asset return rows", domain.ErrInsufficientData)
	}
	if nSims > MCSimCap {
		nSims = MCSimCap
	}
	if nSims <= 0 {
		return 0, 0, nil, fmt.Errorf("%w: simulations must be positive", domain.ErrInvalidParameter)
	}
	if horizonDays < 1 {
		horizonDays = 1
	}

	k := assetReturns.Cols()
	n := assetReturns.Rows()

	// Fit mean vector and sample covariance.
	data := mat.NewDense(n, k, nil)
	for row := 0; row < n; row++ {
		data.SetRow(row, assetReturns.Values[row])
	}
	mean := make([]float64, k)
	if drift == DriftInclude {
		for col := 0; col < k; col++ {
			mean[col] = formulas.Mean(assetReturns.ColumnValues(col))
		}
	}
	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, data, nil)

	// Variance-time scaling to the horizon.
	for i := range mean {
		mean[i] *= float64(horizonDays)
	}
	scaled := mat.NewSymDense(k, nil)
	scaled.ScaleSym(float64(horizonDays), cov)

	src := rand.NewPCG(uint64(seed), uint64(seed))
	normal, ok := distmv.NewNormal(mean, scaled, src)
	if !ok {
		// Retry once with a small diagonal ridge.
		for i := 0; i < k; i++ {
			scaled.SetSym(i, i, scaled.At(i, i)+1e-12)
		}
		normal, ok = distmv.NewNormal(mean, scaled, src)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: covariance matrix is not positive definite", domain.ErrInsufficientData)
		}
		appendWarning(warnings, "Covariance matrix required a diagonal ridge to factorize; results may be unstable.")
	}

	wv := assetReturns.WeightVector(weights)
	sims := make([]float64, nSims)
	draw := make([]float64, k)
	for i := 0; i < nSims; i++ {
		normal.Rand(draw)
		port := 0.0
		for j, w := range wv {
			port += w * draw[j]
		}
		sims[i] = port
	}

	alpha := 1 - confidence
	quantile := formulas.Quantile(sims, alpha)
	varLoss := -quantile
	cvar := simulatedTailMean(sims, quantile)
	if math.IsNaN(cvar) {
		cvar = varLoss
	}
	return varLoss, cvar, sims, nil
}

func simulatedTailMean(sims []float64, quantile float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range sims {
		if v <= quantile {
			sum += v
			count++
		}
	}
	if count == 0 {
		return -quantile
	}
	return -(sum / float64(count))
}
