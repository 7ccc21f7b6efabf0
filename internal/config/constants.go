package config

// Application constants
const (
	AppName    = "npastat"
	AppVersion = "1.0.0"

	// Environment variable prefix (NPA_ANALYSIS_MIN_SIZE, ...)
	EnvPrefix = "NPA"

	// Analysis defaults
	DefaultMinSize    = 15
	DefaultPThreshold = 0.05
	DefaultConfidence = 0.95

	// File paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultResultsDir = "results"
	DefaultLogsDir    = "logs"
	DefaultLogFile    = "logs/npastat.log"

	// Intermediate tables written by the prepare tool
	RaceFileName     = "npadata_race.csv"
	ExpandedFileName = "npa_expanded.csv"
	TumorFileName    = "npa_tumor_data.csv"
)
