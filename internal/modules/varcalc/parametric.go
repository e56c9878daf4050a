package varcalc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// ParametricVaRCVaR fits a location/scale distribution to the sample and
// derives VaR/CVaR in closed form. The sample is assumed to already be at
// the desired horizon; no additional scaling happens here, so upstream
// aggregation is never double-counted.
//
// Degenerate samples (sigma ~ 0) force VaR and CVaR to zero with a warning
// instead of failing.
func ParametricVaRCVaR(values []float64, confidence float64, dist, drift string, warnings *[]string) (float64, float64, FittedParams, error) {
	if len(values) == 0 {
		return 0, 0, FittedParams{}, fmt.Errorf("%w: empty return sample", domain.ErrInsufficientData)
	}

	alpha := 1 - confidence
	mu := 0.0
	if drift == DriftInclude {
		mu = formulas.Mean(values)
	}
	sigma := formulas.StdDev(values)
	if sigma <= 0 {
		appendWarning(warnings, "Return volatility is zero; VaR set to 0.")
		return 0, 0, FittedParams{Mu: ptr(mu), Sigma: ptr(sigma)}, nil
	}

	switch dist {
	case DistStudentT:
		df, loc, scale := fitStudentT(values)
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		z := tDist.Quantile(alpha)
		varLoss := -(loc + scale*z)
		if df <= 2 {
			appendWarning(warnings, "Student-t degrees of freedom <= 2; ES may be unstable.")
		}
		esMult := tDist.Prob(z) * (df + z*z) / ((df - 1) * alpha)
		cvar := -(loc - scale*esMult)
		if math.IsNaN(cvar) || math.IsInf(cvar, 0) {
			appendWarning(warnings, "Student-t expected shortfall undefined; falling back to VaR.")
			cvar = varLoss
		}
		return varLoss, cvar, FittedParams{DF: ptr(df), Loc: ptr(loc), Scale: ptr(scale)}, nil

	case DistNormal, "":
		z := distuv.UnitNormal.Quantile(alpha)
		varLoss := -(mu + sigma*z)
		cvar := -(mu - sigma*distuv.UnitNormal.Prob(z)/alpha)
		return varLoss, cvar, FittedParams{Mu: ptr(mu), Sigma: ptr(sigma)}, nil

	default:
		return 0, 0, FittedParams{}, fmt.Errorf("%w: unknown distribution %q", domain.ErrInvalidParameter, dist)
	}
}

// fitStudentT estimates (df, loc, scale) by maximum likelihood with
// Nelder-Mead over an unconstrained parameterization (log df, loc, log
// scale). Falls back to moment estimates when the optimizer produces
// nothing usable.
func fitStudentT(values []float64) (df, loc, scale float64) {
	mean := formulas.Mean(values)
	sd := formulas.StdDev(values)
	if sd <= 0 {
		sd = 1e-8
	}

	nll := func(x []float64) float64 {
		nu := math.Exp(x[0])
		m := x[1]
		s := math.Exp(x[2])
		if nu < 1e-3 || nu > 1e6 || s < 1e-12 {
			return math.Inf(1)
		}
		dist := distuv.StudentsT{Mu: m, Sigma: s, Nu: nu}
		ll := 0.0
		for _, v := range values {
			ll += dist.LogProb(v)
		}
		if math.IsNaN(ll) {
			return math.Inf(1)
		}
		return -ll
	}

	problem := optimize.Problem{Func: nll}
	init := []float64{math.Log(5), mean, math.Log(sd)}
	result, err := optimize.Minimize(problem, init, nil, &optimize.NelderMead{})
	if result == nil || len(result.X) != 3 || math.IsInf(result.F, 0) {
		return 5, mean, sd
	}
	_ = err // non-nil for non-converged runs; the best point found is still usable
	return math.Exp(result.X[0]), result.X[1], math.Exp(result.X[2])
}

func appendWarning(warnings *[]string, msg string) {
	if warnings != nil {
		*warnings = append(*warnings, msg)
	}
}

func ptr(v float64) *float64 { return &v }
