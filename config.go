package esqlc

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the esqlc configuration, normally read from esqlc.yaml.
type Config struct {
	// InputDir is where translate walks for .pgc files when no explicit
	// arguments are given.
	InputDir string `yaml:"input_dir"`

	// OutputDir receives generated C files. Empty means next to the input.
	OutputDir string `yaml:"output_dir"`

	// IncludeDirs are searched, in order, for EXEC SQL INCLUDE files. The
	// input file's own directory is always searched first.
	IncludeDirs []string `yaml:"include_dirs"`

	// DefaultConnection routes statements without an AT clause to a named
	// connection instead of the runtime default.
	DefaultConnection string `yaml:"default_connection"`

	// Regression suppresses the version number in the output banner so
	// expected-output files stay stable across releases.
	Regression bool `yaml:"regression"`

	Output OutputConfig `yaml:"output"`
}

// OutputConfig controls how generated files are written.
type OutputConfig struct {
	// Extension of generated files. Must start with a dot.
	Extension string `yaml:"extension"`

	// LineMarkers is a pointer to distinguish unset from false. Markers
	// are emitted unless explicitly disabled.
	LineMarkers *bool `yaml:"line_markers"`
}

// LineMarkersEnabled returns true unless line_markers: false is set.
func (o *OutputConfig) LineMarkersEnabled() bool {
	return o.LineMarkers == nil || *o.LineMarkers
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Check if config file exists
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		// Return default configuration if file doesn't exist
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&config)

	// Expand environment variables
	expandConfigEnvVars(&config)

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if config.Output.Extension != "" && !strings.HasPrefix(config.Output.Extension, ".") {
		return fmt.Errorf("%w: output.extension %q must start with a dot", ErrConfigValidation, config.Output.Extension)
	}

	for i, dir := range config.IncludeDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%w: include_dirs[%d] is empty", ErrConfigValidation, i)
		}
	}

	if config.DefaultConnection != strings.TrimSpace(config.DefaultConnection) {
		return fmt.Errorf("%w: default_connection %q has surrounding whitespace", ErrConfigValidation, config.DefaultConnection)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		InputDir: ".",
		Output: OutputConfig{
			Extension: ".c",
		},
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.InputDir == "" {
		config.InputDir = "."
	}

	if config.Output.Extension == "" {
		config.Output.Extension = ".c"
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	// Try to load .env file from current directory
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	// Pattern for ${VAR} format
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		return os.Getenv(varName)
	})

	// Pattern for $VAR format (word boundaries)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars expands environment variables in config
func expandConfigEnvVars(config *Config) {
	config.InputDir = expandEnvVars(config.InputDir)
	config.OutputDir = expandEnvVars(config.OutputDir)
	config.DefaultConnection = expandEnvVars(config.DefaultConnection)

	for i, dir := range config.IncludeDirs {
		config.IncludeDirs[i] = expandEnvVars(dir)
	}
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
