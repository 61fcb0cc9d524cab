package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"unispace/internal/models"
	"unispace/internal/policy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig         `yaml:"app"`
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Logging    LoggingConfig     `yaml:"logging"`
	API        APIConfig         `yaml:"api"`
	Policy     PolicyConfig      `yaml:"policy"`
	Sweep      SweepConfig       `yaml:"sweep"`
	Outbox     OutboxConfig      `yaml:"outbox"`
	Scan       ScanConfig        `yaml:"scan"`
	Exports    ExportConfig      `yaml:"exports"`
	Facilities []models.Facility `yaml:"facilities"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PolicyConfig sets the operating window and attendance thresholds.
// Hours are in the facility's local day, LateThresholdMinutes counts
// from the scheduled start.
type PolicyConfig struct {
	OpenHour             int `yaml:"open_hour"`
	CloseHour            int `yaml:"close_hour"`
	LateThresholdMinutes int `yaml:"late_threshold_minutes"`
}

type SweepConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

type OutboxConfig struct {
	Enabled             bool `yaml:"enabled"`
	IntervalSeconds     int  `yaml:"interval_seconds"`
	BatchSize           int  `yaml:"batch_size"`
	MaxAttempts         int  `yaml:"max_attempts"`
	InitialDelaySeconds int  `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int  `yaml:"max_delay_seconds"`
	BackoffMultiplier   int  `yaml:"backoff_multiplier"`
}

type ScanConfig struct {
	RateLimit             int `yaml:"rate_limit"`
	RateWindowSeconds     int `yaml:"rate_window_seconds"`
	IdempotencyTTLSeconds int `yaml:"idempotency_ttl_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, ignore a missing file
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variable substitution inside the YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := c.BookingPolicy().Normalize(); err != nil {
		return err
	}

	return ValidateFacilities(c.Facilities)
}

func ValidateFacilities(facilities []models.Facility) error {
	ids := make(map[string]bool)
	for _, f := range facilities {
		if f.ID == "" {
			return fmt.Errorf("facility '%s' has empty ID", f.Name)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate facility ID found: %s", f.ID)
		}
		ids[f.ID] = true
		if f.Capacity < 0 {
			return fmt.Errorf("facility '%s' has negative capacity", f.Name)
		}
	}
	return nil
}

// BookingPolicy converts the yaml section into a policy value.
func (c *Config) BookingPolicy() policy.Policy {
	p := policy.Default()
	if c.Policy.OpenHour != 0 || c.Policy.CloseHour != 0 {
		p.OpenHour = c.Policy.OpenHour
		p.CloseHour = c.Policy.CloseHour
	}
	if c.Policy.LateThresholdMinutes > 0 {
		p.LateThreshold = time.Duration(c.Policy.LateThresholdMinutes) * time.Minute
	}
	return p
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if len(c.API.Auth.APIKeys) > 0 {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Sweep.IntervalMinutes == 0 {
		c.Sweep.IntervalMinutes = 5
	}

	if c.Outbox.IntervalSeconds == 0 {
		c.Outbox.IntervalSeconds = 30
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = models.OutboxBatchSize
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = models.OutboxMaxAttempts
	}
	if c.Outbox.InitialDelaySeconds == 0 {
		c.Outbox.InitialDelaySeconds = 30
	}
	if c.Outbox.MaxDelaySeconds == 0 {
		c.Outbox.MaxDelaySeconds = 900
	}
	if c.Outbox.BackoffMultiplier == 0 {
		c.Outbox.BackoffMultiplier = 2
	}

	if c.Scan.RateLimit == 0 {
		c.Scan.RateLimit = models.ScanRateLimit
	}
	if c.Scan.RateWindowSeconds == 0 {
		c.Scan.RateWindowSeconds = models.ScanRateWindow
	}
	if c.Scan.IdempotencyTTLSeconds == 0 {
		c.Scan.IdempotencyTTLSeconds = models.DefaultIdempotencyTTL
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
