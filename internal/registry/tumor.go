package registry

import (
	"math"
)

// Tumor size fields. Each diameter has its own unit column
// (1 = cm, 2 = mm; missing means mm).
var (
	tumorDiameters = []string{"tsize_diam1", "tsize_diam2", "tsize_diam3"}
	tumorUnits     = []string{"tsize_axial_unit_2", "tsize_axial_unit_4", "tsize_axial_unit_3"}
)

// TumorVars are the tumor characteristic columns kept in the tumor table
var TumorVars = []string{
	"planes___1", "planes___2", "planes___3",
	"mid_shift",
	"tsize_diam1", "tsize_axial_unit_2", "tsize_orient1",
	"tsize_diam2", "tsize_axial_unit_4", "tsize_orient2",
	"tsize_diam3", "tsize_axial_unit_3", "tsize_orient3",
	"tsize_axial", "tsize_axial_unit",
	"tsize_coronal", "tsize_coronal_unit",
	"tsize_oblique", "tsize_oblique_unit",
	"tsize_sagittal", "tsize_sagittal_unit",
	"tumor_control",
	"tumor_laterality___1", "tumor_laterality___2", "tumor_laterality___3",
	"tumor_laterality___4", "tumor_laterality___5",
	"tumor_loc___1", "tumor_loc___2", "tumor_loc___3", "tumor_loc___4",
	"tumor_loc___5", "tumor_loc___6", "tumor_loc___7", "tumor_loc___8",
	"tumor_loc___9", "tumor_loc___10", "tumor_loc___11", "tumor_loc___12",
	"tumor_loc___13", "tumor_loc___14", "tumor_loc___15", "tumor_loc___16",
	"tumor_loc___17", "tumor_loc___18", "tumor_loc___19",
	"two_staged",
}

// Derived tumor size columns
const (
	TumorVolume      = "tvol"
	TumorMaxDiameter = "dmax"
)

// TumorSize builds the per-patient tumor table: the tumor columns present
// in f collapsed by key, plus tvol = d1*d2*d3 scaled by 10 for every
// diameter recorded in cm, and dmax = the largest diameter. Both are NaN
// when any diameter is missing or not a number.
func TumorSize(f *Frame, key string) (*Frame, error) {
	for _, name := range tumorDiameters {
		if _, err := f.Column(name); err != nil {
			return nil, err
		}
	}

	t, err := CollapsePatients(f.Select(append([]string{key}, TumorVars...)...), key)
	if err != nil {
		return nil, err
	}

	diams := make([][]float64, len(tumorDiameters))
	for i, name := range tumorDiameters {
		if diams[i], err = t.Values(name); err != nil {
			return nil, err
		}
	}
	// a unit column may be absent; its diameters are then mm
	var units [][]float64
	for _, name := range tumorUnits {
		if u, err := t.Values(name); err == nil {
			units = append(units, u)
		}
	}

	vol := make([]float64, t.Len())
	dmax := make([]float64, t.Len())
	for r := range vol {
		vol[r], dmax[r] = tumorSize(diams, units, r)
	}

	if err := t.SetColumn(NewColumn(TumorVolume, vol)); err != nil {
		return nil, err
	}
	if err := t.SetColumn(NewColumn(TumorMaxDiameter, dmax)); err != nil {
		return nil, err
	}
	return t, nil
}

func tumorSize(diams, units [][]float64, r int) (vol, dmax float64) {
	vol, dmax = 1, math.Inf(-1)
	for _, d := range diams {
		if math.IsNaN(d[r]) {
			return math.NaN(), math.NaN()
		}
		vol *= d[r]
		dmax = math.Max(dmax, d[r])
	}

	for _, u := range units {
		if u[r] == 1 {
			vol *= 10
		}
	}
	return vol, dmax
}
