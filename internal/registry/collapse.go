package registry

import (
	"math"
	"sort"
	"strings"
)

// PatientKey identifies a patient across encounters
const PatientKey = "pt_study_id"

// CollapsePatients reduces encounters to one row per patient, ordered by
// key. Each column takes the patient's first non-missing cell. Rows with
// no key are dropped. When both symptom totals are present symptom_diff =
// bsl_total - fup_total is added.
func CollapsePatients(f *Frame, key string) (*Frame, error) {
	keyCol, err := f.Column(key)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]int)
	var keys []string
	for r := 0; r < f.Len(); r++ {
		if keyCol.Missing(r) {
			continue
		}
		k := strings.TrimSpace(keyCol.Cell(r))
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sortKeys(keys)

	cols := []*Column{{Name: key, Values: make([]float64, len(keys)), Text: make([]string, len(keys))}}
	for g, k := range keys {
		cols[0].Text[g] = k
		cols[0].Values[g] = ParseFloat(k)
	}

	for _, c := range f.cols {
		if c.Name == key {
			continue
		}
		nc := &Column{Name: c.Name, Values: nanColumn(len(keys))}
		if c.Text != nil {
			nc.Text = make([]string, len(keys))
		}
		for g, k := range keys {
			for _, r := range groups[k] {
				if c.Missing(r) {
					continue
				}
				nc.Values[g] = c.Values[r]
				if c.Text != nil {
					nc.Text[g] = c.Text[r]
				}
				break
			}
		}
		cols = append(cols, nc)
	}

	out, err := NewFrame(cols...)
	if err != nil {
		return nil, err
	}

	if out.Has(BaselineTotal) && out.Has(FollowUpTotal) {
		bsl, _ := out.Values(BaselineTotal)
		fup, _ := out.Values(FollowUpTotal)
		diff := make([]float64, out.Len())
		for i := range diff {
			diff[i] = bsl[i] - fup[i]
		}
		if err := out.SetColumn(NewColumn(SymptomDiff, diff)); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// sortKeys orders numerically when every key is a number, else as text
func sortKeys(keys []string) {
	numeric := true
	for _, k := range keys {
		if math.IsNaN(ParseFloat(k)) {
			numeric = false
			break
		}
	}
	if numeric {
		sort.SliceStable(keys, func(i, j int) bool { return ParseFloat(keys[i]) < ParseFloat(keys[j]) })
		return
	}
	sort.Strings(keys)
}
