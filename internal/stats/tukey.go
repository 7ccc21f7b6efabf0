package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultConfidence is the family-wise confidence of Tukey intervals
const DefaultConfidence = 0.95

// TukeyResult is a Tukey-Kramer all-pairs comparison of group means.
//
// Statistic(i, j) is mean_i - mean_j. PValue is symmetric with a unit
// diagonal. Low and High bound the simultaneous confidence interval of
// each difference.
type TukeyResult struct {
	Statistic *mat.Dense
	PValue    *mat.SymDense
	Low       *mat.Dense
	High      *mat.Dense

	Means []float64
	Sizes []int
	MSE   float64
	Df    int
}

// TukeyPair is one row of the comparison table
type TukeyPair struct {
	I         int     `json:"i"`
	J         int     `json:"j"`
	Statistic float64 `json:"statistic"`
	P         float64 `json:"p"`
	Low       float64 `json:"ci_low"`
	High      float64 `json:"ci_high"`
}

// TukeyHSD compares every pair of groups with the studentized range
// distribution, using intervals at DefaultConfidence.
func TukeyHSD(groups ...[]float64) (*TukeyResult, error) {
	return TukeyHSDConfidence(DefaultConfidence, groups...)
}

// TukeyHSDConfidence is TukeyHSD with a chosen interval confidence.
func TukeyHSDConfidence(confidence float64, groups ...[]float64) (*TukeyResult, error) {
	k, total, err := checkGroups(groups)
	if err != nil {
		return nil, err
	}

	r := &TukeyResult{
		Statistic: mat.NewDense(k, k, nil),
		PValue:    mat.NewSymDense(k, nil),
		Low:       mat.NewDense(k, k, nil),
		High:      mat.NewDense(k, k, nil),
		Means:     make([]float64, k),
		Sizes:     make([]int, k),
		Df:        total - k,
	}

	var ssw float64
	for i, g := range groups {
		r.Means[i] = stat.Mean(g, nil)
		r.Sizes[i] = len(g)
		for _, x := range g {
			ssw += (x - r.Means[i]) * (x - r.Means[i])
		}
	}
	r.MSE = ssw / float64(r.Df)

	dist := StudentizedRange{K: k, Df: float64(r.Df)}
	crit := dist.Quantile(confidence)

	for i := 0; i < k; i++ {
		r.PValue.SetSym(i, i, 1)
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			diff := r.Means[i] - r.Means[j]
			se := math.Sqrt(r.MSE / 2 * (1/float64(r.Sizes[i]) + 1/float64(r.Sizes[j])))

			r.Statistic.Set(i, j, diff)
			r.Low.Set(i, j, diff-crit*se)
			r.High.Set(i, j, diff+crit*se)

			if j > i {
				r.PValue.SetSym(i, j, pairP(dist, diff, se))
			}
		}
	}
	return r, nil
}

// pairP is the p-value of one difference. With no within-group variance a
// nonzero difference is certain and a zero one carries no evidence.
func pairP(dist StudentizedRange, diff, se float64) float64 {
	if se == 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}
	return dist.Survival(math.Abs(diff) / se)
}

// Size returns the number of groups compared
func (r *TukeyResult) Size() int {
	return len(r.Means)
}

// Pairs lists every comparison with I < J
func (r *TukeyResult) Pairs() []TukeyPair {
	k := r.Size()
	pairs := make([]TukeyPair, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			pairs = append(pairs, TukeyPair{
				I:         i,
				J:         j,
				Statistic: r.Statistic.At(i, j),
				P:         r.PValue.At(i, j),
				Low:       r.Low.At(i, j),
				High:      r.High.At(i, j),
			})
		}
	}
	return pairs
}

// Significant lists the pairs with P below alpha
func (r *TukeyResult) Significant(alpha float64) []TukeyPair {
	var out []TukeyPair
	for _, p := range r.Pairs() {
		if p.P < alpha {
			out = append(out, p)
		}
	}
	return out
}
