package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds DynamoDB/S3 settings. Endpoint overrides the AWS
// endpoint for local development against dynamodb-local.
type StorageConfig struct {
	TableName  string `yaml:"table_name"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"`
	Endpoint   string `yaml:"endpoint"`
}

// RedisConfig holds the optional Redis connection used for the report
// cache and the batch lock. An empty Addr disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AnalyticsConfig tunes the lifecycle analytics engine.
type AnalyticsConfig struct {
	// CohortCutover routes installs strictly before this date into the
	// sentinel cohort bucket.
	CohortCutover string `yaml:"cohort_cutover"`
	// CohortRecencyDays is the order-activity window defining "active".
	CohortRecencyDays int `yaml:"cohort_recency_days"`
	// CohortMax caps the displayed monthly cohorts.
	CohortMax int `yaml:"cohort_max"`
	// LookupWorkers bounds the per-store history lookup fan-out.
	LookupWorkers int `yaml:"lookup_workers"`
	// CacheTTLSeconds is the dashboard report cache TTL; 0 keeps the
	// default.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults. A
// missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.TableName == "" {
		cfg.Storage.TableName = "store-lifecycle"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "ap-northeast-1"
	}
	if cfg.Analytics.CohortCutover == "" {
		cfg.Analytics.CohortCutover = "2023-04-01"
	}
	if cfg.Analytics.CohortRecencyDays == 0 {
		cfg.Analytics.CohortRecencyDays = 14
	}
	if cfg.Analytics.CohortMax == 0 {
		cfg.Analytics.CohortMax = 6
	}
	if cfg.Analytics.LookupWorkers == 0 {
		cfg.Analytics.LookupWorkers = 8
	}
	if cfg.Analytics.CacheTTLSeconds == 0 {
		cfg.Analytics.CacheTTLSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars on the deployment platform.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.TableName = v
	}
	if v := os.Getenv("DYNAMODB_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		cfg.Storage.AWSProfile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("COHORT_CUTOVER"); v != "" {
		cfg.Analytics.CohortCutover = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
