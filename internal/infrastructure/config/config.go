// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	chunk := cfg.Scan.ChunkDays
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Scan          ScanConfig          `yaml:"scan"`
	Matching      MatchingConfig      `yaml:"matching"`
	Review        ReviewConfig        `yaml:"review"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ScanConfig controls range recommendation
type ScanConfig struct {
	ChunkDays    int `yaml:"chunk_days"`
	OverlapDays  int `yaml:"overlap_days"`
	MinChunkDays int `yaml:"min_chunk_days"`
	MaxChunkDays int `yaml:"max_chunk_days"`
}

// MatchingConfig controls transfer candidate matching
type MatchingConfig struct {
	AmountTolerance   float64 `yaml:"amount_tolerance"`   // Absolute, e.g. 0.01
	RelativeTolerance float64 `yaml:"relative_tolerance"` // Fraction, e.g. 0.005
	DayTolerance      int     `yaml:"day_tolerance"`
}

// ReviewConfig controls review cycles
type ReviewConfig struct {
	CycleTTL time.Duration `yaml:"cycle_ttl"`
	PageSize int           `yaml:"page_size"`
}

// BreakerConfig controls the circuit breaker around data store calls
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for any field left unset
func Default() *Config {
	return &Config{
		Storage: StorageConfig{DatabasePath: "transferscan.db"},
		Scan: ScanConfig{
			ChunkDays:    30,
			OverlapDays:  3,
			MinChunkDays: 7,
			MaxChunkDays: 365,
		},
		Matching: MatchingConfig{
			AmountTolerance:   0.01,
			RelativeTolerance: 0.005,
			DayTolerance:      3,
		},
		Review: ReviewConfig{
			CycleTTL: 30 * time.Minute,
			PageSize: 500,
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// Load reads and parses the config file. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${TRANSFERSCAN_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	def := Default()
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("TRANSFERSCAN_DB_PATH", def.Storage.DatabasePath),
		},
		Scan: ScanConfig{
			ChunkDays:    getEnvInt("SCAN_CHUNK_DAYS", def.Scan.ChunkDays),
			OverlapDays:  getEnvInt("SCAN_OVERLAP_DAYS", def.Scan.OverlapDays),
			MinChunkDays: getEnvInt("SCAN_MIN_CHUNK_DAYS", def.Scan.MinChunkDays),
			MaxChunkDays: getEnvInt("SCAN_MAX_CHUNK_DAYS", def.Scan.MaxChunkDays),
		},
		Matching: MatchingConfig{
			AmountTolerance:   getEnvFloat("MATCH_AMOUNT_TOLERANCE", def.Matching.AmountTolerance),
			RelativeTolerance: getEnvFloat("MATCH_RELATIVE_TOLERANCE", def.Matching.RelativeTolerance),
			DayTolerance:      getEnvInt("MATCH_DAY_TOLERANCE", def.Matching.DayTolerance),
		},
		Review: ReviewConfig{
			CycleTTL: getEnvDuration("REVIEW_CYCLE_TTL", def.Review.CycleTTL),
			PageSize: getEnvInt("REVIEW_PAGE_SIZE", def.Review.PageSize),
		},
		Breaker: def.Breaker,
		API: APIConfig{
			Port:           getEnvInt("API_PORT", def.API.Port),
			AllowedOrigins: getEnvList("API_ALLOWED_ORIGINS", def.API.AllowedOrigins),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", def.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", def.Observability.Logging.Format),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate rejects settings the scanner cannot work with
func (c *Config) Validate() error {
	if c.Scan.ChunkDays <= 0 {
		return fmt.Errorf("scan.chunk_days must be positive, got %d", c.Scan.ChunkDays)
	}
	if c.Scan.OverlapDays < 0 || c.Scan.OverlapDays >= c.Scan.ChunkDays {
		return fmt.Errorf("scan.overlap_days must be in [0, chunk_days), got %d", c.Scan.OverlapDays)
	}
	if c.Matching.AmountTolerance < 0 || c.Matching.RelativeTolerance < 0 {
		return fmt.Errorf("matching tolerances must not be negative")
	}
	if c.Matching.DayTolerance < 0 {
		return fmt.Errorf("matching.day_tolerance must not be negative, got %d", c.Matching.DayTolerance)
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvDuration retrieves a duration like "15m" with a fallback default
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList retrieves a comma-separated list with a fallback default
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
