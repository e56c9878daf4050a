package varcalc

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridian-labs/riskd/internal/domain"
)

// ComponentVaRNormal decomposes the parametric-normal portfolio VaR into
// per-asset contributions. With portfolio variance w'Sw and z the positive
// tail multiplier -Phi^-1(alpha):
//
//	marginal_i  = z * (Sw)_i / sigma_p
//	component_i = w_i * marginal_i
//
// Components sum to the total parametric VaR by construction. Returns nil
// when the frame is empty or the portfolio variance is not positive.
//
// assetReturns must contain only fully-observed rows.
func ComponentVaRNormal(assetReturns domain.Frame, weights map[string]float64, confidence float64, horizonDays int) []Contribution {
	if assetReturns.IsEmpty() || assetReturns.Rows() < 2 {
		return nil
	}
	if horizonDays < 1 {
		horizonDays = 1
	}

	k := assetReturns.Cols()
	n := assetReturns.Rows()
	data := mat.NewDense(n, k, nil)
	for row := 0; row < n; row++ {
		data.SetRow(row, assetReturns.Values[row])
	}
	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, data, nil)
	scaled := mat.NewSymDense(k, nil)
	scaled.ScaleSym(float64(horizonDays), cov)

	wv := assetReturns.WeightVector(weights)
	w := mat.NewVecDense(k, wv)
	sw := mat.NewVecDense(k, nil)
	sw.MulVec(scaled, w)

	portVar := mat.Dot(w, sw)
	if portVar <= 0 {
		return nil
	}
	portSigma := math.Sqrt(portVar)

	alpha := 1 - confidence
	z := -distuv.UnitNormal.Quantile(alpha)

	out := make([]Contribution, k)
	for i := 0; i < k; i++ {
		marginal := z * sw.AtVec(i) / portSigma
		out[i] = Contribution{
			Symbol:       assetReturns.Symbols[i],
			Weight:       wv[i],
			MarginalVaR:  marginal,
			ComponentVaR: wv[i] * marginal,
		}
	}
	return out
}
