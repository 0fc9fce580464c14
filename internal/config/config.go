// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the analyzer configuration.
type Config struct {
	// General settings
	Version     string `yaml:"version" json:"version"`
	ProjectName string `yaml:"project_name,omitempty" json:"project_name,omitempty"`

	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Rule-specific configurations
	Rules RulesConfig `yaml:"rules" json:"rules"`

	// Detector pool settings
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// File patterns
	Files FilesConfig `yaml:"files" json:"files"`

	// Entities excluded from reporting
	Exclusions ExclusionsConfig `yaml:"exclusions" json:"exclusions"`
}

type AnalysisConfig struct {
	// Quality score thresholds
	ScoreThresholds ScoreThresholds `yaml:"score_thresholds" json:"score_thresholds"`

	// Parallel file analysis
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
}

type ScoreThresholds struct {
	Excellent int `yaml:"excellent" json:"excellent"` // >= 90
	Good      int `yaml:"good" json:"good"`           // >= 75
	Fair      int `yaml:"fair" json:"fair"`           // >= 50
	Poor      int `yaml:"poor" json:"poor"`           // < 50
}

type OutputConfig struct {
	// Default output format
	Format string `yaml:"format" json:"format"`

	// Colorized output
	Colors bool `yaml:"colors" json:"colors"`

	// Verbosity level
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Show remediation suggestions
	ShowSuggestions bool `yaml:"show_suggestions" json:"show_suggestions"`

	// Output file path (optional)
	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty"`
}

type RulesConfig struct {
	Position     PositionRules     `yaml:"position" json:"position"`
	MagicLiteral MagicLiteralRules `yaml:"magic_literal" json:"magic_literal"`
	GodObject    GodObjectRules    `yaml:"god_object" json:"god_object"`
	Algorithm    AlgorithmRules    `yaml:"algorithm" json:"algorithm"`
	Timing       TimingRules       `yaml:"timing" json:"timing"`
	Convention   ConventionRules   `yaml:"convention" json:"convention"`
	Execution    ExecutionRules    `yaml:"execution" json:"execution"`
	Values       ValuesRules       `yaml:"values" json:"values"`
}

type PositionRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Maximum non-receiver positional parameters before a violation
	MaxPositionalParams int `yaml:"max_positional_params" json:"max_positional_params"`

	// Severity escalation breakpoints, expressed as the amount over the
	// threshold. Over by exactly medium_delta is medium, over by more
	// (up to critical_delta) is high, beyond critical_delta is critical.
	MediumDelta   int `yaml:"medium_delta" json:"medium_delta"`
	CriticalDelta int `yaml:"critical_delta" json:"critical_delta"`
}

type MagicLiteralRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Numeric values that are never reported
	AllowedNumbers []float64 `yaml:"allowed_numbers" json:"allowed_numbers"`

	// String values that are never reported
	AllowedStrings []string `yaml:"allowed_strings" json:"allowed_strings"`

	// Substrings of variable or function names that mark a
	// configuration context
	ConfigKeywords []string `yaml:"config_keywords" json:"config_keywords"`
}

type GodObjectRules struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	MaxMethods       int  `yaml:"max_methods" json:"max_methods"`
	MaxClassLines    int  `yaml:"max_class_lines" json:"max_class_lines"`
	MaxFunctionLines int  `yaml:"max_function_lines" json:"max_function_lines"`
}

type AlgorithmRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Bodies with this many statements or fewer are too trivial to be
	// meaningful duplicates
	MinBodyStatements int `yaml:"min_body_statements" json:"min_body_statements"`
}

type TimingRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Callee names treated as sleep-style timing coupling
	SleepFunctions []string `yaml:"sleep_functions" json:"sleep_functions"`
}

type ConventionRules struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequireDocstrings bool `yaml:"require_docstrings" json:"require_docstrings"`

	// Public functions with this many statements or fewer are trivial
	// and never flagged for a missing docstring
	DocstringMinStatements int `yaml:"docstring_min_statements" json:"docstring_min_statements"`
}

type ExecutionRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Global declarations per function before a violation
	MaxGlobalTouches int `yaml:"max_global_touches" json:"max_global_touches"`

	// Consecutive bare side-effecting calls before a violation
	MaxSideEffectRun int `yaml:"max_side_effect_run" json:"max_side_effect_run"`
}

type ValuesRules struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// PoolConfig bounds the reusable detector instance pool.
type PoolConfig struct {
	MaxPerKind           int `yaml:"max_per_kind" json:"max_per_kind"`
	WarmFloor            int `yaml:"warm_floor" json:"warm_floor"`
	IdleTimeoutSeconds   int `yaml:"idle_timeout_seconds" json:"idle_timeout_seconds"`
	ReapIntervalSeconds  int `yaml:"reap_interval_seconds" json:"reap_interval_seconds"`
	AcquireBackoffMillis int `yaml:"acquire_backoff_millis" json:"acquire_backoff_millis"`
}

func (p PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSeconds) * time.Second
}

func (p PoolConfig) ReapInterval() time.Duration {
	return time.Duration(p.ReapIntervalSeconds) * time.Second
}

func (p PoolConfig) AcquireBackoff() time.Duration {
	return time.Duration(p.AcquireBackoffMillis) * time.Millisecond
}

type FilesConfig struct {
	// Include patterns
	Include []string `yaml:"include" json:"include"`

	// Exclude patterns
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Whether to analyze test files (test_*.py, *_test.py)
	IncludeTests bool `yaml:"include_tests" json:"include_tests"`

	// Max file size (in KB)
	MaxFileSize int `yaml:"max_file_size" json:"max_file_size"`
}

type ExclusionsConfig struct {
	// Exact file paths excluded from reporting
	Files []string `yaml:"files" json:"files"`

	// Glob patterns for excluded files
	FilePatterns []string `yaml:"file_patterns" json:"file_patterns"`

	// Regular expressions for excluded class names
	ClassPatterns []string `yaml:"class_patterns" json:"class_patterns"`

	// Regular expressions for excluded function names
	FunctionPatterns []string `yaml:"function_patterns" json:"function_patterns"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: "2.0",
		Analysis: AnalysisConfig{
			ScoreThresholds: ScoreThresholds{
				Excellent: 90,
				Good:      75,
				Fair:      50,
				Poor:      0,
			},
			MaxWorkers: 4,
		},
		Output: OutputConfig{
			Format:          "console",
			Colors:          true,
			Verbose:         false,
			ShowSuggestions: true,
		},
		Rules: RulesConfig{
			Position: PositionRules{
				Enabled:             true,
				MaxPositionalParams: 3,
				MediumDelta:         2,
				CriticalDelta:       5,
			},
			MagicLiteral: MagicLiteralRules{
				Enabled:        true,
				AllowedNumbers: []float64{0, 1, -1, 2, 10, 100, 1000},
				AllowedStrings: []string{"", " ", "\n", "\t", "utf-8", "ascii"},
				ConfigKeywords: []string{"config", "setting", "default", "threshold", "limit", "timeout", "retry", "max", "min"},
			},
			GodObject: GodObjectRules{
				Enabled:          true,
				MaxMethods:       18,
				MaxClassLines:    500,
				MaxFunctionLines: 60,
			},
			Algorithm: AlgorithmRules{
				Enabled:           true,
				MinBodyStatements: 3,
			},
			Timing: TimingRules{
				Enabled:        true,
				SleepFunctions: []string{"sleep", "wait", "delay"},
			},
			Convention: ConventionRules{
				Enabled:                true,
				RequireDocstrings:      true,
				DocstringMinStatements: 2,
			},
			Execution: ExecutionRules{
				Enabled:          true,
				MaxGlobalTouches: 3,
				MaxSideEffectRun: 5,
			},
			Values: ValuesRules{
				Enabled: true,
			},
		},
		Pool: PoolConfig{
			MaxPerKind:           16,
			WarmFloor:            2,
			IdleTimeoutSeconds:   60,
			ReapIntervalSeconds:  30,
			AcquireBackoffMillis: 5,
		},
		Files: FilesConfig{
			Include:      []string{"**/*.py"},
			Exclude:      []string{"venv/**", ".git/**", "__pycache__/**", "node_modules/**"},
			IncludeTests: false,
			MaxFileSize:  1024, // 1MB
		},
	}
}

// LoadConfig loads configuration from file or returns default.
func LoadConfig(configPath string) (*Config, error) {
	// If no config path provided, look for default config files
	if configPath == "" {
		configPath = findConfigFile()
	}

	// If still no config found, return default
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig() // Start with defaults

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// findConfigFile looks for config files in common locations.
func findConfigFile() string {
	possiblePaths := []string{
		".connascence.yml",
		".connascence.yaml",
		"connascence.yml",
		"connascence.yaml",
		".config/connascence.yml",
		".config/connascence.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	st := c.Analysis.ScoreThresholds
	if st.Excellent < st.Good || st.Good < st.Fair || st.Fair < st.Poor {
		return fmt.Errorf("score thresholds must be in descending order")
	}

	validFormats := []string{"console", "json"}
	formatValid := false
	for _, format := range validFormats {
		if c.Output.Format == format {
			formatValid = true
			break
		}
	}
	if !formatValid {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, validFormats)
	}

	if c.Analysis.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}

	if c.Pool.MaxPerKind < 1 {
		return fmt.Errorf("pool max_per_kind must be at least 1")
	}
	if c.Pool.WarmFloor < 0 || c.Pool.WarmFloor > c.Pool.MaxPerKind {
		return fmt.Errorf("pool warm_floor must be between 0 and max_per_kind")
	}

	pos := c.Rules.Position
	if pos.Enabled && (pos.MaxPositionalParams < 1 || pos.MediumDelta < 1 || pos.CriticalDelta < pos.MediumDelta) {
		return fmt.Errorf("position rule breakpoints must satisfy 1 <= medium_delta <= critical_delta")
	}

	god := c.Rules.GodObject
	if god.Enabled && (god.MaxMethods < 1 || god.MaxClassLines < 1 || god.MaxFunctionLines < 1) {
		return fmt.Errorf("god_object thresholds must be positive")
	}

	return nil
}

// SaveConfig saves configuration to file.
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateConfig creates a sample configuration file.
func GenerateConfig(configPath string) error {
	config := DefaultConfig()
	return config.SaveConfig(configPath)
}

// IsRuleEnabled checks if a specific detector category is enabled.
func (c *Config) IsRuleEnabled(rule string) bool {
	switch rule {
	case "position":
		return c.Rules.Position.Enabled
	case "magic_literal":
		return c.Rules.MagicLiteral.Enabled
	case "god_object":
		return c.Rules.GodObject.Enabled
	case "algorithm":
		return c.Rules.Algorithm.Enabled
	case "timing":
		return c.Rules.Timing.Enabled
	case "convention":
		return c.Rules.Convention.Enabled
	case "execution":
		return c.Rules.Execution.Enabled
	case "values":
		return c.Rules.Values.Enabled
	default:
		return false
	}
}

// GetThreshold returns the threshold for a given rule and dimension,
// falling back to the supplied default when the rule is unknown.
func (c *Config) GetThreshold(rule, name string, def int) int {
	switch rule {
	case "position":
		switch name {
		case "max_params":
			return c.Rules.Position.MaxPositionalParams
		case "medium_delta":
			return c.Rules.Position.MediumDelta
		case "critical_delta":
			return c.Rules.Position.CriticalDelta
		}
	case "god_object":
		switch name {
		case "max_methods":
			return c.Rules.GodObject.MaxMethods
		case "max_class_lines":
			return c.Rules.GodObject.MaxClassLines
		case "max_function_lines":
			return c.Rules.GodObject.MaxFunctionLines
		}
	case "execution":
		switch name {
		case "max_global_touches":
			return c.Rules.Execution.MaxGlobalTouches
		case "max_side_effect_run":
			return c.Rules.Execution.MaxSideEffectRun
		}
	}
	return def
}
