package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Everything the solver
// itself needs lives in the plan file; this covers the surrounding services.
type Config struct {
	// PlanPath is the default plan file used when a command is not given
	// one explicitly.
	PlanPath string `yaml:"planPath" validate:"required"`

	// PostgresURL enables the solve-run history store when set.
	PostgresURL string `yaml:"postgresURL,omitempty"`

	// RosterSheetID is the spreadsheet the publish command writes to.
	RosterSheetID string `yaml:"rosterSheetID,omitempty"`

	// SnapshotDir is where run snapshots and CSV exports land.
	SnapshotDir string `yaml:"snapshotDir,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration with an environment
// suffix. For example, env="test" looks for "wardshift_config.test.yaml"
// before falling back to "wardshift_config.yaml".
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = "snapshots"
	}

	return &cfg, nil
}

// Validate validates the configuration struct.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// findConfigFile searches the current directory and then the home directory,
// preferring the environment-suffixed file name.
func findConfigFile(env string) (string, error) {
	names := []string{"wardshift_config.yaml"}
	if env != "" {
		names = []string{"wardshift_config." + env + ".yaml", "wardshift_config.yaml"}
	}

	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	for _, name := range names {
		homePath := filepath.Join(homeDir, name)
		if _, err := os.Stat(homePath); err == nil {
			return homePath, nil
		}
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
