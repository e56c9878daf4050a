package riskmetrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/riskd/internal/domain"
)

// riskContributions decomposes annualized portfolio volatility into
// per-asset marginal (MCTR), component (CCTR) and percentage contributions
// from the sample covariance of the clean asset return rows. Percentage
// contributions sum to 1 by construction. A zero portfolio variance reports
// all-zero contributions instead of dividing by zero.
func riskContributions(cleanAssets domain.Frame, weights map[string]float64, annDays int) []Contribution {
	k := cleanAssets.Cols()
	if k == 0 {
		return []Contribution{}
	}
	wv := cleanAssets.WeightVector(weights)

	out := make([]Contribution, k)
	for i, sym := range cleanAssets.Symbols {
		out[i] = Contribution{Symbol: sym, Weight: wv[i]}
	}

	n := cleanAssets.Rows()
	if n < 2 {
		return out
	}

	data := mat.NewDense(n, k, nil)
	for row := 0; row < n; row++ {
		data.SetRow(row, cleanAssets.Values[row])
	}
	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, data, nil)
	covAnn := mat.NewSymDense(k, nil)
	covAnn.ScaleSym(float64(annDays), cov)

	w := mat.NewVecDense(k, wv)
	sw := mat.NewVecDense(k, nil)
	sw.MulVec(covAnn, w)

	portVar := mat.Dot(w, sw)
	if portVar <= 0 {
		return out
	}
	portVol := math.Sqrt(portVar)

	for i := range out {
		mctr := sw.AtVec(i) / portVol
		cctr := wv[i] * mctr
		out[i].MCTR = mctr
		out[i].CCTR = cctr
		out[i].PctCCTR = cctr / portVol
	}
	return out
}

// correlationMatrix computes the pairwise Pearson correlation of the clean
// asset return rows.
func correlationMatrix(cleanAssets domain.Frame) [][]float64 {
	k := cleanAssets.Cols()
	matrix := make([][]float64, k)
	cols := make([][]float64, k)
	for i := 0; i < k; i++ {
		cols[i] = make([]float64, cleanAssets.Rows())
		for row := range cleanAssets.Dates {
			cols[i][row] = cleanAssets.Values[row][i]
		}
	}
	for i := 0; i < k; i++ {
		matrix[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			c := stat.Correlation(cols[i], cols[j], nil)
			if math.IsNaN(c) {
				c = 0
			}
			matrix[i][j] = c
		}
	}
	return matrix
}
