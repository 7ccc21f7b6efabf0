// Package analysis compares the categories of registry variables over
// outcome batteries.
//
// For each variable and battery the Analyzer selects the categories with
// more than MinSize complete rows, runs a one-way ANOVA per output and,
// when the ANOVA is significant, a Tukey HSD whose significant pairs are
// partitioned into lettered groups. Results feed the report and plot
// packages.
package analysis
