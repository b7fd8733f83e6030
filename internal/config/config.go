// Package config loads a2ui settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

// EnvPrefix prefixes environment overrides: A2UI_DATABASE_PATH and so on.
const EnvPrefix = "A2UI"

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Designs   DesignsConfig   `mapstructure:"designs"`
	Render    RenderConfig    `mapstructure:"render"`
	Log       LogConfig       `mapstructure:"log"`
	Transport TransportConfig `mapstructure:"transport"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DesignsConfig locates design files for bulk import.
type DesignsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RenderConfig controls resolution.
type RenderConfig struct {
	// Timezone is an IANA name used for time templates. Empty means local.
	Timezone string `mapstructure:"timezone"`
	// Catalog is the catalog id checked by default, or "none".
	Catalog string `mapstructure:"catalog"`
	// LegacyDataModel accepts updateDataModel.dataModel as a root replace.
	LegacyDataModel bool `mapstructure:"legacy_data_model"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TransportConfig holds device connection settings.
type TransportConfig struct {
	Addr        string        `mapstructure:"addr"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	PushRate    float64       `mapstructure:"push_rate"`
	PushBurst   int           `mapstructure:"push_burst"`
}

// Location returns the configured render location.
func (r RenderConfig) Location() (*time.Location, error) {
	if r.Timezone == "" || strings.EqualFold(r.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("render.timezone: %w", err)
	}
	return loc, nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelWarn, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Limit returns the per-device push rate. Zero or negative means unlimited.
func (t TransportConfig) Limit() rate.Limit {
	if t.PushRate <= 0 {
		return rate.Inf
	}
	return rate.Limit(t.PushRate)
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("database.path", filepath.Join(home, ".local", "share", "a2ui", "designs.db"))
	v.SetDefault("designs.dir", "examples")
	v.SetDefault("render.timezone", "")
	v.SetDefault("render.catalog", "basic")
	v.SetDefault("render.legacy_data_model", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("transport.addr", "127.0.0.1:8765")
	v.SetDefault("transport.max_attempts", 10)
	v.SetDefault("transport.max_delay", 30*time.Second)
	v.SetDefault("transport.push_rate", 10.0)
	v.SetDefault("transport.push_burst", 5)
}

// Load reads configuration from path, or when path is empty from
// $A2UI_CONFIG or ~/.config/a2ui/config.yaml. A missing default file is not
// an error; a missing explicit file is. Env vars override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "a2ui"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
