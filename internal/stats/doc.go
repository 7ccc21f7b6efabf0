// Package stats implements the group comparison tests run on registry
// outputs: descriptive summaries, one-way ANOVA and the Tukey-Kramer HSD
// post-hoc test with its studentized range distribution.
package stats
