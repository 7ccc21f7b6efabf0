package registry

import (
	"math"
	"regexp"
)

// Symptom checkbox families and their per-encounter totals
const (
	FollowUpTotal = "fup_total"
	BaselineTotal = "bsl_total"
	SymptomDiff   = "symptom_diff"
)

var (
	followUpSymptoms = regexp.MustCompile(`^fup_symptoms___\d+$`)
	baselineSymptoms = regexp.MustCompile(`^bsl_symptoms___\d+$`)
)

// AddSymptomTotals adds fup_total and bsl_total, the number of checked
// follow-up and baseline symptom boxes. A row with no box checked gets NaN.
func AddSymptomTotals(f *Frame) error {
	fup, err := checkedTotal(f, followUpSymptoms)
	if err != nil {
		return err
	}
	bsl, err := checkedTotal(f, baselineSymptoms)
	if err != nil {
		return err
	}
	if err := f.SetColumn(NewColumn(FollowUpTotal, fup)); err != nil {
		return err
	}
	return f.SetColumn(NewColumn(BaselineTotal, bsl))
}

func checkedTotal(f *Frame, family *regexp.Regexp) ([]float64, error) {
	names := f.ColumnsMatching(family)
	boxes := make([][]float64, len(names))
	for i, name := range names {
		v, err := f.Values(name)
		if err != nil {
			return nil, err
		}
		boxes[i] = v
	}

	total := make([]float64, f.Len())
	for r := range total {
		sum, checked := 0.0, false
		for _, box := range boxes {
			v := box[r]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			if v != 0 {
				checked = true
			}
		}
		if !checked {
			sum = math.NaN()
		}
		total[r] = sum
	}
	return total, nil
}
