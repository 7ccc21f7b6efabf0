package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Summary describes one sample. Std is the population standard deviation
// used in the printed tables; CI is the 95% Student t interval of the mean.
type Summary struct {
	N         int     `json:"n"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	SampleStd float64 `json:"sample_std"`
	StdErr    float64 `json:"std_err"`
	CILow     float64 `json:"ci_low"`
	CIHigh    float64 `json:"ci_high"`
}

// Describe summarises xs. NaN observations are not dropped; callers pass
// complete samples.
func Describe(xs []float64) Summary {
	s := Summary{
		N:         len(xs),
		Mean:      math.NaN(),
		Std:       math.NaN(),
		SampleStd: math.NaN(),
		StdErr:    math.NaN(),
		CILow:     math.NaN(),
		CIHigh:    math.NaN(),
	}
	if s.N == 0 {
		return s
	}

	s.Mean, s.Std = stat.PopMeanStdDev(xs, nil)
	if s.N < 2 {
		return s
	}

	s.SampleStd = stat.StdDev(xs, nil)
	s.StdErr = s.SampleStd / math.Sqrt(float64(s.N))

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(s.N - 1)}.Quantile(0.975)
	s.CILow = s.Mean - t*s.StdErr
	s.CIHigh = s.Mean + t*s.StdErr
	return s
}

// HalfWidth is the distance from the mean to either CI bound
func (s Summary) HalfWidth() float64 {
	return s.CIHigh - s.Mean
}
