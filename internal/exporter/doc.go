// Package exporter writes tabular output files for npastat.
//
// CSVWriter resolves relative paths against the configured results
// directory ("data/..." paths go to the data directory), creates parent
// directories, and writes CSV or TSV with an optional UTF-8 BOM for Excel.
// StreamWriter writes large tables row by row.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	err := w.WriteTSV("results_summary/approach_anova_tHSD.tsv", header, rows)
//
//	s, err := w.CreateStreamWriter("data/npa_expanded.csv", names, true)
//	for _, row := range rows {
//	    s.WriteRecord(row)
//	}
//	err = s.Close()
package exporter
