package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "DISPATCHD"

// Config holds application configuration. Values come from config.yaml in
// the working directory, overridden by DISPATCHD_* environment variables.
type Config struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	DBPath       string        `mapstructure:"db_path"`
	WorkerCount  int           `mapstructure:"worker_count"`
	LogLevel     string        `mapstructure:"log_level"`
	WorkDelayMin time.Duration `mapstructure:"work_delay_min"`
	WorkDelayMax time.Duration `mapstructure:"work_delay_max"`
}

// Load reads configuration from file and environment with defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "dispatchd.db")
	v.SetDefault("worker_count", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("work_delay_min", "1s")
	v.SetDefault("work_delay_max", "10s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker_count must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.WorkDelayMin < 0 || cfg.WorkDelayMax < cfg.WorkDelayMin {
		return nil, fmt.Errorf("invalid work delay bounds [%s, %s]", cfg.WorkDelayMin, cfg.WorkDelayMax)
	}

	return &cfg, nil
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
