// Package config provides unified configuration for the conversion tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds configuration shared by the conversion commands.
type Config struct {
	// DataDir is the base directory for all output files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Behavior configuration
	Behavior BehaviorConfig `json:"behavior" yaml:"behavior"`

	// Photometry configuration
	Photometry PhotometryConfig `json:"photometry" yaml:"photometry"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Batch configuration
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Storage configuration for mirroring archives
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// LogLevel controls log verbosity: debug, info, warn, error
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// BehaviorConfig holds behavioral export settings.
type BehaviorConfig struct {
	// SessionGlob matches session export files inside a raw data directory
	SessionGlob string `json:"session_glob" yaml:"session_glob"`
}

// PhotometryConfig holds photometry export settings.
type PhotometryConfig struct {
	// MarkerChannel is the digital line carrying trial-start TTLs
	MarkerChannel string `json:"marker_channel" yaml:"marker_channel"`

	// FileGlob matches console CSV exports inside a raw data directory
	FileGlob string `json:"file_glob" yaml:"file_glob"`
}

// ArchiveConfig holds archive output settings.
type ArchiveConfig struct {
	// OutputDir is the directory archives are written to
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// BatchConfig holds batch conversion settings.
type BatchConfig struct {
	// Concurrency is the number of sessions converted in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Overwrite forces reconversion of sessions already in the catalog
	Overwrite bool `json:"overwrite" yaml:"overwrite"`
}

// StorageConfig holds archive mirroring configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local mirror path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/conversions",
		Behavior: BehaviorConfig{
			SessionGlob: "*_session.json",
		},
		Photometry: PhotometryConfig{
			MarkerChannel: "DI/O-2",
			FileGlob:      "*.csv",
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Type: "none",
		},
		LogLevel: "info",
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/conversions"
	}
	if c.Archive.OutputDir == "" {
		c.Archive.OutputDir = filepath.Join(c.DataDir, "archives")
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "mirror")
	}
}

// CatalogPath returns the path to the conversions catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Storage.Type {
	case "none", "local", "s3":
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	if c.Photometry.MarkerChannel == "" {
		return fmt.Errorf("photometry.marker_channel is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides configuration from environment variables.
// Environment variables use the CONVERT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CONVERT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CONVERT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CONVERT_ARCHIVE_OUTPUT_DIR"); v != "" {
		cfg.Archive.OutputDir = v
	}
	if v := os.Getenv("CONVERT_PHOTOMETRY_MARKER_CHANNEL"); v != "" {
		cfg.Photometry.MarkerChannel = v
	}
	if v := os.Getenv("CONVERT_BATCH_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Batch.Concurrency)
	}
	if v := os.Getenv("CONVERT_BATCH_OVERWRITE"); v != "" {
		cfg.Batch.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("CONVERT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CONVERT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CONVERT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CONVERT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("CONVERT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Archive.OutputDir,
		c.Storage.Path,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
