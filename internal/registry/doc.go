// Package registry loads the outcomes registry export and derives the
// patient-level variables the group comparisons run on.
//
// A Frame is a small column table: every cell keeps its raw text and a
// numeric reading (NaN when empty or not a number). The preparation steps
// mirror the registry workflow:
//
//	ClassifyRace       prace from the prace___1..7 checkboxes
//	AddSymptomTotals   fup_total / bsl_total from the symptom checkboxes
//	AddPROMISScores    PROMIS-29 z and T scores, composites and summaries
//	CollapsePatients   one row per pt_study_id, plus symptom_diff
//	TumorSize          per-patient tumor volume and maximum diameter
package registry
