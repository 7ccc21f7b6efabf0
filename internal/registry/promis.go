package registry

import (
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "npastat/internal/errors"
)

// PROMIS-29 T scores are normed to mean 50, sd 10. The single pain
// intensity item (p29_global07, 0-10) is normed with its own mean and sd.
const (
	tMean = 50.0
	tSD   = 10.0

	PainIntensityItem = "p29_global07"
	painIntMean       = 2.31
	painIntSD         = 2.34

	PainInterferenceZ = "p29_pain_int_z_score"
	PainInterferenceT = "p29_pain_int_t_score"
	PainAverageZ      = "pain_avg_z"
	EmotionalDistZ    = "emotional_dist_z"
	MentalSummary     = "p29_Mental_Health_Summ"
	PhysicalSummary   = "p29_Physical_Health_Summ"
)

// Domains are the PROMIS-29 domains scored as p29_<domain>_t_score
var Domains = []string{"pf", "anxiety", "depression", "fatigue", "sd", "social", "pain"}

// SummaryInputs are the z-score columns the mental and physical summary
// weights apply to, in weight order.
var SummaryInputs = []string{
	"p29_pf_z_score",
	PainAverageZ,
	"p29_social_z_score",
	"p29_fatigue_z_score",
	"p29_sd_z_score",
	EmotionalDistZ,
}

// TScoreColumn and ZScoreColumn name a domain's score columns
func TScoreColumn(domain string) string { return "p29_" + domain + "_t_score" }
func ZScoreColumn(domain string) string { return "p29_" + domain + "_z_score" }

// AddPROMISScores derives z scores for every domain, the pain intensity z
// and T scores, the pain and emotional distress composites, and the mental
// and physical health summary scores from the given weights (one per
// SummaryInputs column). A summary is NaN when any of its inputs is.
func AddPROMISScores(f *Frame, mental, physical []float64) error {
	if len(mental) != len(SummaryInputs) || len(physical) != len(SummaryInputs) {
		return apperrors.NewInvalidInputError("summary weights need %d entries, got %d mental and %d physical",
			len(SummaryInputs), len(mental), len(physical))
	}

	n := f.Len()
	for _, d := range Domains {
		t, err := f.Values(TScoreColumn(d))
		if err != nil {
			return err
		}
		z := make([]float64, n)
		for i, v := range t {
			z[i] = (v - tMean) / tSD
		}
		if err := f.SetColumn(NewColumn(ZScoreColumn(d), z)); err != nil {
			return err
		}
	}

	item, err := f.Values(PainIntensityItem)
	if err != nil {
		return err
	}
	painZ := make([]float64, n)
	painT := make([]float64, n)
	for i, v := range item {
		painZ[i] = (v - painIntMean) / painIntSD
		painT[i] = painZ[i]*tSD + tMean
	}
	if err := f.SetColumn(NewColumn(PainInterferenceZ, painZ)); err != nil {
		return err
	}
	if err := f.SetColumn(NewColumn(PainInterferenceT, painT)); err != nil {
		return err
	}

	if err := addRowMean(f, PainAverageZ, PainInterferenceZ, ZScoreColumn("pain")); err != nil {
		return err
	}
	if err := addRowMean(f, EmotionalDistZ, ZScoreColumn("depression"), ZScoreColumn("anxiety")); err != nil {
		return err
	}

	z, err := f.matrix(SummaryInputs...)
	if err != nil {
		return err
	}
	if err := f.SetColumn(NewColumn(MentalSummary, summaryScore(z, mental))); err != nil {
		return err
	}
	return f.SetColumn(NewColumn(PhysicalSummary, summaryScore(z, physical)))
}

// addRowMean stores the mean of the non-missing cells of cols per row
func addRowMean(f *Frame, name string, cols ...string) error {
	values := make([][]float64, len(cols))
	for i, c := range cols {
		v, err := f.Values(c)
		if err != nil {
			return err
		}
		values[i] = v
	}

	out := make([]float64, f.Len())
	for r := range out {
		sum, k := 0.0, 0
		for _, v := range values {
			if !math.IsNaN(v[r]) {
				sum += v[r]
				k++
			}
		}
		if k == 0 {
			out[r] = math.NaN()
		} else {
			out[r] = sum / float64(k)
		}
	}
	return f.SetColumn(NewColumn(name, out))
}

// matrix returns the named columns as a rows x len(cols) matrix
func (f *Frame) matrix(cols ...string) (*mat.Dense, error) {
	if f.Len() == 0 {
		return nil, nil
	}
	m := mat.NewDense(f.Len(), len(cols), nil)
	for j, name := range cols {
		v, err := f.Values(name)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, v)
	}
	return m, nil
}

// summaryScore is (z . weights) * 10 + 50 per row
func summaryScore(z *mat.Dense, weights []float64) []float64 {
	if z == nil {
		return []float64{}
	}
	rows, _ := z.Dims()

	var scores mat.VecDense
	scores.MulVec(z, mat.NewVecDense(len(weights), weights))

	out := make([]float64, rows)
	for r := range out {
		if hasNaN(z.RawRowView(r)) {
			out[r] = math.NaN()
			continue
		}
		out[r] = scores.AtVec(r)*tSD + tMean
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
