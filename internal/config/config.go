package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration for canserve
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains the configurable base directories
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// PipelineConfig carries the default streaming options applied when a
// caller does not override them per run.
type PipelineConfig struct {
	ChunkSize       int     `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"gt=0"`
	IntervalSeconds float64 `yaml:"interval_seconds" envconfig:"INTERVAL_SECONDS" validate:"gt=0"`
	CacheCapacity   int     `yaml:"cache_capacity" envconfig:"CACHE_CAPACITY" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/canml.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Pipeline: PipelineConfig{
			ChunkSize:       10000,
			IntervalSeconds: 0.01,
			CacheCapacity:   32,
		},
	}
}

// Load loads configuration in increasing precedence: built-in defaults,
// then an optional YAML file (CANML_CONFIG_FILE or ./canml.yml), then
// CANML_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("CANML_CONFIG_FILE")
	if configFile == "" {
		configFile = "canml.yml"
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("CANML", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// loadFromFile loads configuration from a YAML file into cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
