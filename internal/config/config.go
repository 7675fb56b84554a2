package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BlagoCuljak/ApiPosture/internal/suppress"
)

type Config struct {
	Logger       LoggerConfig     `mapstructure:"logger"`
	Telemetry    TelemetryConfig  `mapstructure:"telemetry"`
	Database     DatabaseConfig   `mapstructure:"database"`
	Scan         ScanConfig       `mapstructure:"scan"`
	Rules        RulesConfig      `mapstructure:"rules"`
	Suppressions []suppress.Entry `mapstructure:"suppressions"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ScanConfig struct {
	// Provider selects the registered source provider used to parse files.
	Provider string `mapstructure:"provider"`
	// Parallelism bounds concurrent file parsing; 0 means GOMAXPROCS.
	Parallelism int `mapstructure:"parallelism"`
	// ExcludeDirs are directory names skipped during the walk.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
	// SuppressionFile optionally points at a YAML suppression list merged
	// with the inline suppressions.
	SuppressionFile string `mapstructure:"suppression_file"`
}

type RulesConfig struct {
	SensitiveKeywords   []string                `mapstructure:"sensitive_keywords"`
	HeuristicVocabulary []string                `mapstructure:"heuristic_vocabulary"`
	MaxRoles            int                     `mapstructure:"max_roles"`
	Overrides           map[string]RuleOverride `mapstructure:"overrides"`
}

type RuleOverride struct {
	Enabled  *bool  `mapstructure:"enabled"`
	Severity string `mapstructure:"severity"`
}

func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "apiposture",
			ExporterType: "otlp",
			Endpoint:     "localhost:4318",
			SampleRate:   1.0,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Driver:          "sqlite3",
			DSN:             "apiposture.db",
			MaxConnections:  5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Scan: ScanConfig{
			Provider:    "json",
			Parallelism: 0,
			ExcludeDirs: []string{"bin", "obj", "node_modules", ".git"},
		},
		Rules: RulesConfig{
			MaxRoles: 3,
		},
	}
}

// LoadSuppressionFile reads a YAML suppression list. The file format is a
// plain sequence of entries:
//
//	- route: /api/admin/*
//	  rules: [AP001, AP007]
func LoadSuppressionFile(path string) ([]suppress.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suppression file: %w", err)
	}
	var entries []suppress.Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse suppression file: %w", err)
	}
	return entries, nil
}
