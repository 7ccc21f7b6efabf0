// Package codebook holds the registry's category label dictionaries and the
// outcome batteries the group comparisons run over.
//
// The default codebook is embedded; Load reads a replacement from disk with
// the same YAML layout.
package codebook

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	apperrors "npastat/internal/errors"
)

//go:embed codebook.yaml
var defaultCodebook []byte

// summaryInputs is the number of z scores each summary weight vector covers
const summaryInputs = 6

// Variable is a categorical registry field. One-hot variables are stored as
// <name>___<code> indicator columns; the rest hold the code directly.
type Variable struct {
	Name   string         `yaml:"name"`
	OneHot bool           `yaml:"one_hot"`
	Labels map[int]string `yaml:"labels"`
}

// Label returns the display label for code, or the code itself when the
// dictionary has no entry.
func (v *Variable) Label(code int) string {
	if l, ok := v.Labels[code]; ok {
		return l
	}
	return strconv.Itoa(code)
}

// Battery is a set of outcome columns compared together, with the axis
// range used when plotting each one.
type Battery struct {
	Name      string    `yaml:"name"`
	ResultDir string    `yaml:"result_dir"`
	Outputs   []string  `yaml:"outputs"`
	Max       []float64 `yaml:"max"`
	Min       []float64 `yaml:"min"`
}

// Range returns the plot range of output i
func (b *Battery) Range(i int) (lo, hi float64) {
	return b.Min[i], b.Max[i]
}

// SummaryWeights are the mental and physical health summary coefficients
type SummaryWeights struct {
	Mental   []float64 `yaml:"mental"`
	Physical []float64 `yaml:"physical"`
}

// Codebook is the full set of variables, batteries and summary weights
type Codebook struct {
	Variables      []Variable     `yaml:"variables"`
	Batteries      []Battery      `yaml:"batteries"`
	SummaryWeights SummaryWeights `yaml:"summary_weights"`
}

// Default returns the embedded codebook
func Default() (*Codebook, error) {
	return Parse(defaultCodebook)
}

// Load reads a codebook file. An empty path returns the default.
func Load(path string) (*Codebook, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("codebook " + path)
		}
		return nil, apperrors.NewStorageError("failed to read codebook", err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML codebook. Missing battery minimums
// default to zero.
func Parse(data []byte) (*Codebook, error) {
	var cb Codebook
	if err := yaml.Unmarshal(data, &cb); err != nil {
		return nil, apperrors.NewParsingError("invalid codebook", err)
	}
	if err := cb.validate(); err != nil {
		return nil, err
	}
	return &cb, nil
}

func (cb *Codebook) validate() error {
	seen := make(map[string]bool)
	for _, v := range cb.Variables {
		if v.Name == "" {
			return apperrors.NewAppValidationError("codebook variable without a name")
		}
		if seen[v.Name] {
			return apperrors.NewAppValidationError(fmt.Sprintf("duplicate codebook variable %q", v.Name))
		}
		seen[v.Name] = true
	}

	seen = make(map[string]bool)
	for i := range cb.Batteries {
		b := &cb.Batteries[i]
		switch {
		case b.Name == "":
			return apperrors.NewAppValidationError("codebook battery without a name")
		case seen[b.Name]:
			return apperrors.NewAppValidationError(fmt.Sprintf("duplicate battery %q", b.Name))
		case len(b.Outputs) == 0:
			return apperrors.NewAppValidationError(fmt.Sprintf("battery %q has no outputs", b.Name))
		case len(b.Max) != len(b.Outputs):
			return apperrors.NewAppValidationError(fmt.Sprintf("battery %q: %d outputs but %d max values", b.Name, len(b.Outputs), len(b.Max)))
		}
		if b.Min == nil {
			b.Min = make([]float64, len(b.Outputs))
		}
		if len(b.Min) != len(b.Outputs) {
			return apperrors.NewAppValidationError(fmt.Sprintf("battery %q: %d outputs but %d min values", b.Name, len(b.Outputs), len(b.Min)))
		}
		if b.ResultDir == "" {
			b.ResultDir = "results_" + b.Name
		}
		seen[b.Name] = true
	}

	w := cb.SummaryWeights
	if len(w.Mental) != summaryInputs || len(w.Physical) != summaryInputs {
		return apperrors.NewAppValidationError(fmt.Sprintf("summary weights need %d entries each", summaryInputs))
	}
	return nil
}

// Variable looks up a variable by name
func (cb *Codebook) Variable(name string) (*Variable, error) {
	for i := range cb.Variables {
		if cb.Variables[i].Name == name {
			return &cb.Variables[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("variable " + strconv.Quote(name))
}

// Battery looks up a battery by name
func (cb *Codebook) Battery(name string) (*Battery, error) {
	for i := range cb.Batteries {
		if cb.Batteries[i].Name == name {
			return &cb.Batteries[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("battery " + strconv.Quote(name))
}

// VariableNames lists the variables in codebook order
func (cb *Codebook) VariableNames() []string {
	names := make([]string, len(cb.Variables))
	for i, v := range cb.Variables {
		names[i] = v.Name
	}
	return names
}

// BatteryNames lists the batteries in codebook order
func (cb *Codebook) BatteryNames() []string {
	names := make([]string, len(cb.Batteries))
	for i, b := range cb.Batteries {
		names[i] = b.Name
	}
	return names
}

// Select returns a codebook restricted to the named variables, in the
// given order. No names keeps every variable.
func (cb *Codebook) Select(names ...string) (*Codebook, error) {
	if len(names) == 0 {
		return cb, nil
	}
	out := &Codebook{Batteries: cb.Batteries, SummaryWeights: cb.SummaryWeights}
	for _, name := range names {
		v, err := cb.Variable(name)
		if err != nil {
			return nil, err
		}
		out.Variables = append(out.Variables, *v)
	}
	return out, nil
}

// SelectBatteries returns the named batteries, or every battery when no
// names are given.
func (cb *Codebook) SelectBatteries(names ...string) ([]*Battery, error) {
	if len(names) == 0 {
		names = cb.BatteryNames()
	}
	out := make([]*Battery, 0, len(names))
	for _, name := range names {
		b, err := cb.Battery(name)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
