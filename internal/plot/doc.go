// Package plot renders analysis results as bar charts with gonum/plot.
//
// Each output gets a chart of category means ordered from highest to
// lowest, lettered A, B, ... with 95% confidence interval error bars. The
// category's Tukey group letters are drawn above its bar, wrapped three to
// a line, and bars sharing a letter set share a colour from Palette (all
// Silver when the ANOVA found no difference). The legend maps letters to
// category labels.
package plot
