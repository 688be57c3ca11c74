package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string `yaml:"port" validate:"omitempty,numeric"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"postgres"`
	Pools struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"pools"`
	Session struct {
		Locale                 string `yaml:"locale" validate:"omitempty,bcp47_language_tag"`
		TimeBudget             string `yaml:"time_budget"`
		PermissionTimeout      string `yaml:"permission_timeout"`
		RecognitionStopTimeout string `yaml:"recognition_stop_timeout"`
	} `yaml:"session"`
	Results struct {
		TTL string `yaml:"ttl"`
	} `yaml:"results"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	} `yaml:"log"`
}

// LoadDotEnv loads a .env file into the process environment when one exists.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads YAML config from path, applies environment overrides and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field formats. Durations are checked separately since they are
// kept as strings with fallbacks.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, raw := range map[string]string{
		"server.request_timeout":           cfg.Server.RequestTimeout,
		"redis.ttl":                        cfg.Redis.TTL,
		"pools.ttl":                        cfg.Pools.TTL,
		"session.time_budget":              cfg.Session.TimeBudget,
		"session.permission_timeout":       cfg.Session.PermissionTimeout,
		"session.recognition_stop_timeout": cfg.Session.RecognitionStopTimeout,
		"results.ttl":                      cfg.Results.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Pools.File, "POOLS_FILE")
	override(&cfg.Log.Level, "LOG_LEVEL")
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
