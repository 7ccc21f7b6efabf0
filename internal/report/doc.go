// Package report writes analysis results to disk.
//
// For every analysed variable a Writer produces, under the battery's
// result directory:
//
//   - <var>_anova_tHSD.txt: category key, ANOVA p and F per output, all and
//     significant Tukey HSD pairs with group labels, and per-category mean,
//     population std and N
//   - <var>_anova_tHSD.tsv: one row per output with "mean (groups) N=n"
//     cells and the ANOVA outcome
//   - <var>_anova_tHSD.json: a manifest with the same numbers, non-finite
//     values written as null
//
// WriteWorkbooks additionally collects each battery's variables into an
// Excel workbook, <battery>_anova.xlsx, one sheet per variable.
package report
