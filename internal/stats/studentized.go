package stats

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	innerNodes = 128
	outerNodes = 96

	// the normal density is below 1e-14 outside this range
	normalBound = 8.0

	// degrees of freedom past which the chi scale is treated as exactly 1
	largeDf = 1e5
)

// rule holds Gauss-Legendre nodes and weights on [-1, 1]
type rule struct {
	x, w []float64
}

func newRule(n int) rule {
	r := rule{x: make([]float64, n), w: make([]float64, n)}
	quad.Legendre{}.FixedLocations(r.x, r.w, -1, 1)
	return r
}

var (
	innerRule = sync.OnceValue(func() rule { return newRule(innerNodes) })
	outerRule = sync.OnceValue(func() rule { return newRule(outerNodes) })
)

// integrate applies r to f over [lo, hi]
func (r rule) integrate(f func(float64) float64, lo, hi float64) float64 {
	half, mid := (hi-lo)/2, (hi+lo)/2
	var sum float64
	for i, x := range r.x {
		sum += r.w[i] * f(mid+half*x)
	}
	return half * sum
}

// StudentizedRange is the distribution of the range of K independent unit
// normal samples divided by an independent chi/sqrt(Df) scale. A Df that
// is not positive or is +Inf means the scale is known exactly.
type StudentizedRange struct {
	K  int
	Df float64
}

func (s StudentizedRange) infiniteDf() bool {
	return s.Df <= 0 || math.IsInf(s.Df, 1) || s.Df >= largeDf
}

// CDF returns P(Q <= q).
func (s StudentizedRange) CDF(q float64) float64 {
	switch {
	case s.K < 2 || math.IsNaN(q) || math.IsNaN(s.Df):
		return math.NaN()
	case q <= 0:
		return 0
	case math.IsInf(q, 1):
		return 1
	}

	if s.infiniteDf() {
		return clamp01(rangeCDF(q, s.K))
	}

	chi := distuv.ChiSquared{K: s.Df}
	v := outerRule().integrate(func(u float64) float64 {
		scale := math.Sqrt(chi.Quantile(u) / s.Df)
		return rangeCDF(q*scale, s.K)
	}, 0, 1)
	return clamp01(v)
}

// Survival returns P(Q > q).
func (s StudentizedRange) Survival(q float64) float64 {
	return 1 - s.CDF(q)
}

// Quantile returns the q with CDF(q) == p, found by bisection.
func (s StudentizedRange) Quantile(p float64) float64 {
	switch {
	case s.K < 2 || math.IsNaN(p) || p < 0 || p > 1:
		return math.NaN()
	case p == 0:
		return 0
	case p == 1:
		return math.Inf(1)
	}

	lo, hi := 0.0, 1.0
	for s.CDF(hi) < p {
		lo, hi = hi, hi*2
		if hi > 1e6 {
			return math.Inf(1)
		}
	}
	for i := 0; i < 60 && hi-lo > 1e-7; i++ {
		mid := (lo + hi) / 2
		if s.CDF(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// rangeCDF is the distribution of the range of k unit normals:
//
//	k * int phi(z) [Phi(z) - Phi(z-w)]^(k-1) dz
func rangeCDF(w float64, k int) float64 {
	if w <= 0 {
		return 0
	}
	if math.IsInf(w, 1) {
		return 1
	}
	n := distuv.UnitNormal
	v := innerRule().integrate(func(z float64) float64 {
		d := n.CDF(z) - n.CDF(z-w)
		return n.Prob(z) * math.Pow(d, float64(k-1))
	}, -normalBound, normalBound)
	return float64(k) * v
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
