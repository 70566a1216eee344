package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Triage    TriageConfig    `yaml:"triage"`
	Queue     QueueConfig     `yaml:"queue"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetHost returns the bind host, defaulting to all interfaces.
func (s ServerConfig) GetHost() string {
	if s.Host == "" {
		return "0.0.0.0"
	}
	return s.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis settings for batch locks and the weights cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TriageConfig holds scoring and blocker thresholds.
type TriageConfig struct {
	EngagementStallDays    float64 `yaml:"engagement_stall_days"`
	SourceQualityFloor     float64 `yaml:"source_quality_floor"`
	ObservationWindowDays  int     `yaml:"observation_window_days"`
	MeasureIntervalMinutes int     `yaml:"measure_interval_minutes"`
}

// ObservationWindow returns the outcome observation window as a duration.
func (t TriageConfig) ObservationWindow() time.Duration {
	days := t.ObservationWindowDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// QueueConfig holds action queue builder settings.
type QueueConfig struct {
	BuildIntervalMinutes int `yaml:"build_interval_minutes"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	MaxLeadsPerRun       int `yaml:"max_leads_per_run"`
}

// OptimizerConfig holds weight refit guardrails.
type OptimizerConfig struct {
	IntervalHours        int     `yaml:"interval_hours"`
	MinSampleSize        int     `yaml:"min_sample_size"`
	PerformanceTolerance float64 `yaml:"performance_tolerance"`
	WindowDays           int     `yaml:"window_days"`
}

// LoadFromEnv loads config from the YAML file at path, then applies
// environment variable overrides. A .env file in the working directory is
// loaded first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load() // optional; absence is fine

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (config database.url or DATABASE_URL)")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Triage: TriageConfig{
			EngagementStallDays:    14,
			SourceQualityFloor:     0.4,
			ObservationWindowDays:  7,
			MeasureIntervalMinutes: 60,
		},
		Queue: QueueConfig{
			BuildIntervalMinutes: 60,
			SweepIntervalMinutes: 15,
			MaxLeadsPerRun:       1000,
		},
		Optimizer: OptimizerConfig{
			IntervalHours:        24,
			MinSampleSize:        50,
			PerformanceTolerance: 0.02,
			WindowDays:           30,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("OPTIMIZER_MIN_SAMPLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Optimizer.MinSampleSize = n
		}
	}
}
