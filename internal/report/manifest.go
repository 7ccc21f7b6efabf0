package report

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"npastat/internal/analysis"
	"npastat/internal/config"
	"npastat/internal/stats"
)

// Number is a float that encodes NaN and infinities as JSON null
type Number float64

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// Manifest is the machine readable record of one variable's analysis
type Manifest struct {
	Metadata   ManifestMetadata    `json:"metadata"`
	Variable   string              `json:"variable"`
	Battery    string              `json:"battery"`
	Alpha      float64             `json:"alpha"`
	Confidence float64             `json:"confidence"`
	Categories []analysis.Category `json:"categories"`
	Outputs    []ManifestOutput    `json:"outputs"`
}

// ManifestMetadata identifies the run that produced a manifest
type ManifestMetadata struct {
	GeneratedAt string `json:"generated_at"`
	RunID       string `json:"run_id,omitempty"`
	Version     string `json:"version"`
}

// ManifestOutput is one output's tests. Pairs are only present when the
// ANOVA was significant.
type ManifestOutput struct {
	Output      string            `json:"output"`
	F           Number            `json:"f"`
	P           Number            `json:"p"`
	DFBetween   int               `json:"df_between"`
	DFWithin    int               `json:"df_within"`
	Significant bool              `json:"significant"`
	Labels      []string          `json:"group_labels"`
	Summaries   []ManifestSummary `json:"summaries"`
	Pairs       []ManifestPair    `json:"tukey_pairs,omitempty"`
}

// ManifestSummary describes one category's sample
type ManifestSummary struct {
	N      int    `json:"n"`
	Mean   Number `json:"mean"`
	Std    Number `json:"std"`
	StdErr Number `json:"std_err"`
	CILow  Number `json:"ci_low"`
	CIHigh Number `json:"ci_high"`
}

// ManifestPair is one Tukey HSD comparison
type ManifestPair struct {
	I         int    `json:"i"`
	J         int    `json:"j"`
	Statistic Number `json:"statistic"`
	P         Number `json:"p"`
	Low       Number `json:"ci_low"`
	High      Number `json:"ci_high"`
}

// NewManifest builds the manifest of res
func NewManifest(res *analysis.VariableResult, runID string, now time.Time) *Manifest {
	m := &Manifest{
		Metadata: ManifestMetadata{
			GeneratedAt: now.Format(time.RFC3339),
			RunID:       runID,
			Version:     config.AppVersion,
		},
		Variable:   res.Variable,
		Battery:    res.Battery,
		Alpha:      res.Alpha,
		Confidence: res.Confidence,
		Categories: res.Categories,
	}
	for _, out := range res.Outputs {
		m.Outputs = append(m.Outputs, manifestOutput(&out))
	}
	return m
}

func manifestOutput(out *analysis.OutputResult) ManifestOutput {
	mo := ManifestOutput{
		Output:      out.Output,
		F:           Number(out.ANOVA.F),
		P:           Number(out.ANOVA.P),
		DFBetween:   out.ANOVA.DFBetween,
		DFWithin:    out.ANOVA.DFWithin,
		Significant: out.Significant(),
		Labels:      out.Labels,
	}
	for _, s := range out.Summaries {
		mo.Summaries = append(mo.Summaries, manifestSummary(s))
	}
	if out.Significant() {
		for _, p := range out.Tukey.Pairs() {
			mo.Pairs = append(mo.Pairs, ManifestPair{
				I:         p.I,
				J:         p.J,
				Statistic: Number(p.Statistic),
				P:         Number(p.P),
				Low:       Number(p.Low),
				High:      Number(p.High),
			})
		}
	}
	return mo
}

func manifestSummary(s stats.Summary) ManifestSummary {
	return ManifestSummary{
		N:      s.N,
		Mean:   Number(s.Mean),
		Std:    Number(s.Std),
		StdErr: Number(s.StdErr),
		CILow:  Number(s.CILow),
		CIHigh: Number(s.CIHigh),
	}
}

// Encode writes the manifest as indented JSON
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
