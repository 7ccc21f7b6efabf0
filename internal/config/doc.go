// Package config provides centralized configuration management for npastat.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern NPA_<SECTION>_<FIELD>:
//
//	NPA_ANALYSIS_MIN_SIZE=15
//	NPA_ANALYSIS_P_THRESHOLD=0.05
//	NPA_LOGGING_LEVEL=debug
//	NPA_PATHS_RESULTS_DIR=/srv/npa/results
//	NPA_TELEMETRY_PUSHGATEWAY_URL=http://localhost:9091
//
// NPA_CONFIG_FILE names the YAML file explicitly; otherwise npastat.yaml is
// looked up in the working directory and configs/.
//
// # Path Management
//
// Paths resolves the data, results and logs directories against a base
// directory:
//
//	paths, err := cfg.ResolvePaths()
//	tsv := paths.GetResultPath("results_t_outputs", "approach_anova_tHSD.tsv")
package config
