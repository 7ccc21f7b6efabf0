package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// AnalysisConfig controls category selection and significance testing
type AnalysisConfig struct {
	MinSize      int     `yaml:"min_size" envconfig:"MIN_SIZE"`
	PThreshold   float64 `yaml:"p_threshold" envconfig:"P_THRESHOLD"`
	Confidence   float64 `yaml:"confidence" envconfig:"CONFIDENCE"`
	Plots        bool    `yaml:"plots" envconfig:"PLOTS"`
	Workbook     bool    `yaml:"workbook" envconfig:"WORKBOOK"`
	CodebookFile string  `yaml:"codebook_file" envconfig:"CODEBOOK_FILE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. Relative
// directories resolve against BaseDir, or the working directory when empty.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ResultsDir string `yaml:"results_dir" envconfig:"RESULTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// TelemetryConfig contains tracing and metrics export settings
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceStdout    bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL"`
	PushJob        string `yaml:"push_job" envconfig:"PUSH_JOB"`
}

// Load builds the configuration from defaults, the first config file found
// in the usual locations, then NPA_* environment variables.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override the file and defaults
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ResolvePaths resolves the configured directories
func (c *Config) ResolvePaths() (*Paths, error) {
	return NewPaths(c.Paths)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Analysis.MinSize < 0 {
		return fmt.Errorf("analysis min size must not be negative: %d", c.Analysis.MinSize)
	}

	if c.Analysis.PThreshold <= 0 || c.Analysis.PThreshold >= 1 {
		return fmt.Errorf("analysis p threshold must be in (0, 1): %v", c.Analysis.PThreshold)
	}

	if c.Analysis.Confidence <= 0 || c.Analysis.Confidence >= 1 {
		return fmt.Errorf("analysis confidence must be in (0, 1): %v", c.Analysis.Confidence)
	}

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	// JSON logs only
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = AppName
	}

	if c.Telemetry.PushJob == "" {
		c.Telemetry.PushJob = AppName
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"npastat.yaml",
		"configs/npastat.yaml",
		"../configs/npastat.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MinSize:    DefaultMinSize,
			PThreshold: DefaultPThreshold,
			Confidence: DefaultConfidence,
			Plots:      true,
			Workbook:   true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: DefaultLogFile,
		},
		Paths: PathsConfig{
			DataDir:    DefaultDataDir,
			ResultsDir: DefaultResultsDir,
			LogsDir:    DefaultLogsDir,
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
			PushJob:     AppName,
		},
	}
}
