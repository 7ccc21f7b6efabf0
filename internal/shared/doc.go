// Package shared holds code used across npastat packages that belongs to no
// single layer.
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler and NewTestLogger, which capture slog records so
//     tests can assert on log messages and attributes
//   - OneHotFrame, a registry frame builder for category comparisons
//   - ThreeGroups and FlatGroups, samples with known Tukey outcomes
//
// Example:
//
//	logger, logs := testutil.NewTestLogger(t)
//	f := testutil.OneHotFrame(t, "tumor_loc", "p29_pf_t_score", testutil.ThreeGroups...)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "ANOVA not performed")
package shared
