package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"npastat/internal/analysis"
	"npastat/internal/exporter"
)

const (
	outputRule  = "##################################################"
	keyHeader   = "=========== Key ==========="
	tukeyHeader = "=========== P Values Tukey HSD ==========="
	allHeader   = "_________________ All ____________________"
	sigHeader   = "_____________ Significant ________________"
	sumHeader   = "=========== Summary ==========="
)

// WriteText writes the plain text ANOVA and Tukey HSD report of res
func WriteText(w io.Writer, res *analysis.VariableResult) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s\n", res.Variable)
	fmt.Fprintf(bw, "%s\n", keyHeader)
	for k, c := range res.Categories {
		fmt.Fprintf(bw, "Group %d: \t  %s\n", k, c.Label)
	}
	fmt.Fprint(bw, "\n")

	for i := range res.Outputs {
		writeOutputText(bw, res, &res.Outputs[i])
	}

	return bw.Flush()
}

func writeOutputText(bw *bufio.Writer, res *analysis.VariableResult, out *analysis.OutputResult) {
	fmt.Fprintf(bw, "\n\n%s\n", outputRule)
	fmt.Fprintf(bw, "%s\n\n", out.Output)
	fmt.Fprintf(bw, "p = %s\nf = %s\n", exporter.FormatFloat(out.ANOVA.P), exporter.FormatFloat(out.ANOVA.F))
	fmt.Fprint(bw, "\n")

	if out.Significant() {
		pairs := out.Tukey.Pairs()

		fmt.Fprintf(bw, "%s\n", tukeyHeader)
		fmt.Fprintf(bw, "%s\n", allHeader)
		for _, p := range pairs {
			fmt.Fprintf(bw, "(%d, %d): %s\n", p.I, p.J, exporter.FormatFloat(p.P))
		}
		fmt.Fprint(bw, "\n")

		fmt.Fprintf(bw, "%s\n", sigHeader)
		for _, p := range pairs {
			if p.P < res.Alpha {
				fmt.Fprintf(bw, "(%d, %d)\np: %s\nt: %s\n", p.I, p.J,
					exporter.FormatFloat(p.P), exporter.FormatFloat(p.Statistic))
			}
		}
		fmt.Fprint(bw, "\n")

		for k, c := range res.Categories {
			fmt.Fprintf(bw, "%s^(%s)\nN = %d\n", c.Label, out.Labels[k], out.Summaries[k].N)
		}
		fmt.Fprint(bw, "\n")
	}

	fmt.Fprintf(bw, "%s\n", sumHeader)
	for k, s := range out.Summaries {
		fmt.Fprintf(bw, "Group: %d\nMean: %s\nStd: %s\nN: %d\n", k,
			exporter.FormatFloat(s.Mean), exporter.FormatFloat(s.Std), s.N)
	}
	fmt.Fprint(bw, "\n")
}

// TSVRecords returns the header and rows of the tab separated summary: one
// row per output with "mean (groups) N=n" per category and the ANOVA
// outcome in the last column.
func TSVRecords(res *analysis.VariableResult) (header []string, records [][]string) {
	header = append([]string{""}, res.CategoryLabels()...)
	header = append(header, "ANOVA")

	for _, out := range res.Outputs {
		row := make([]string, 0, len(out.Summaries)+2)
		row = append(row, out.Output)
		for k, s := range out.Summaries {
			row = append(row, fmt.Sprintf("%s (%s) N=%d",
				exporter.FormatRounded(s.Mean, 2), out.Labels[k], s.N))
		}
		row = append(row, anovaCell(res.Alpha, &out))
		records = append(records, row)
	}
	return header, records
}

func anovaCell(alpha float64, out *analysis.OutputResult) string {
	if !out.ANOVA.Significant(alpha) {
		return "p>" + strconv.FormatFloat(alpha, 'g', -1, 64)
	}
	return fmt.Sprintf("p=%s f=%s",
		exporter.FormatRounded(out.ANOVA.P, 4), exporter.FormatRounded(out.ANOVA.F, 2))
}
