package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "npastat/internal/errors"
)

// ANOVAResult holds a one-way analysis of variance
type ANOVAResult struct {
	F         float64 `json:"f"`
	P         float64 `json:"p"`
	DFBetween int     `json:"df_between"`
	DFWithin  int     `json:"df_within"`
	SSBetween float64 `json:"ss_between"`
	SSWithin  float64 `json:"ss_within"`
	MSE       float64 `json:"mse"`
}

// Significant reports whether P is below alpha
func (r ANOVAResult) Significant(alpha float64) bool {
	return r.P < alpha
}

// OneWayANOVA tests whether the groups share a common mean.
//
// When every group has zero variance the F statistic is +Inf with p = 0 if
// the means differ, and NaN otherwise.
func OneWayANOVA(groups ...[]float64) (ANOVAResult, error) {
	k, total, err := checkGroups(groups)
	if err != nil {
		return ANOVAResult{}, err
	}

	grand := 0.0
	for _, g := range groups {
		for _, x := range g {
			grand += x
		}
	}
	grand /= float64(total)

	var ssb, ssw float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, x := range g {
			ssw += (x - m) * (x - m)
		}
	}

	r := ANOVAResult{
		DFBetween: k - 1,
		DFWithin:  total - k,
		SSBetween: ssb,
		SSWithin:  ssw,
	}
	r.MSE = ssw / float64(r.DFWithin)

	switch {
	case ssw == 0 && ssb == 0:
		r.F, r.P = math.NaN(), math.NaN()
	case ssw == 0:
		r.F, r.P = math.Inf(1), 0
	default:
		r.F = (ssb / float64(r.DFBetween)) / r.MSE
		r.P = distuv.F{D1: float64(r.DFBetween), D2: float64(r.DFWithin)}.Survival(r.F)
	}
	return r, nil
}

func checkGroups(groups [][]float64) (k, total int, err error) {
	k = len(groups)
	if k < 2 {
		return 0, 0, apperrors.NewInvalidInputError("need at least 2 groups, got %d", k)
	}
	for i, g := range groups {
		if len(g) == 0 {
			return 0, 0, apperrors.NewInvalidInputError("group %d has no observations", i)
		}
		for _, x := range g {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return 0, 0, apperrors.NewInvalidInputError("group %d has a non-finite observation", i)
			}
		}
		total += len(g)
	}
	if total-k <= 0 {
		return 0, 0, apperrors.NewInvalidInputError("no within-group degrees of freedom (%d observations, %d groups)", total, k)
	}
	return k, total, nil
}
