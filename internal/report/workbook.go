package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"npastat/internal/analysis"
	apperrors "npastat/internal/errors"
	"npastat/internal/exporter"
)

// Excel caps sheet names at 31 characters
const maxSheetName = 31

var summaryHeader = []interface{}{"Output", "Group", "Category", "N", "Mean", "Std", "CI Low", "CI High", "Label"}

// BuildWorkbook lays out one sheet per variable result: the TSV grid at
// the top, then a per-category summary table with numeric cells.
func BuildWorkbook(results []*analysis.VariableResult) (*excelize.File, error) {
	if len(results) == 0 {
		return nil, apperrors.NewInsufficientDataError("no results for workbook")
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	seen := make(map[string]bool)
	for i, res := range results {
		name := sheetName(res.Variable)
		if seen[name] {
			f.Close()
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("duplicate sheet %q", name))
		}
		seen[name] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}

		if err := writeSheet(f, name, res, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func sheetName(variable string) string {
	if len(variable) > maxSheetName {
		return variable[:maxSheetName]
	}
	return variable
}

func writeSheet(f *excelize.File, sheet string, res *analysis.VariableResult, bold int) error {
	header, records := TSVRecords(res)

	row := 1
	if err := setRow(f, sheet, row, toCells(header)); err != nil {
		return err
	}
	if err := styleRow(f, sheet, row, len(header), bold); err != nil {
		return err
	}
	for _, rec := range records {
		row++
		if err := setRow(f, sheet, row, toCells(rec)); err != nil {
			return err
		}
	}

	row += 2
	if err := setRow(f, sheet, row, summaryHeader); err != nil {
		return err
	}
	if err := styleRow(f, sheet, row, len(summaryHeader), bold); err != nil {
		return err
	}
	for _, out := range res.Outputs {
		for k, s := range out.Summaries {
			row++
			cells := []interface{}{
				out.Output, k, res.Categories[k].Label, s.N,
				cellFloat(s.Mean), cellFloat(s.Std), cellFloat(s.CILow), cellFloat(s.CIHigh),
				out.Labels[k],
			}
			if err := setRow(f, sheet, row, cells); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(sheet, "A", "A", 28)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func styleRow(f *excelize.File, sheet string, row, width, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func toCells(record []string) []interface{} {
	cells := make([]interface{}, len(record))
	for i, s := range record {
		cells[i] = s
	}
	return cells
}

// cellFloat writes non-finite values as text
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return exporter.FormatFloat(v)
	}
	return v
}
