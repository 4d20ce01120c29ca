package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration struct for the application.
// Tags are used by Viper to map YAML keys to struct fields.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	APIPort   string          `mapstructure:"api_port"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Monitors  []MonitorConfig `mapstructure:"monitors"`
}

// WatcherConfig locates the connection log and sets the poll intervals.
type WatcherConfig struct {
	LogPath          string        `mapstructure:"log_path"`
	FilePollInterval time.Duration `mapstructure:"file_poll_interval"`
	LinePollInterval time.Duration `mapstructure:"line_poll_interval"`
}

// ArtifactsConfig locates the training pipeline's outputs.
type ArtifactsConfig struct {
	ModelPath    string `mapstructure:"model_path"`
	FeaturesPath string `mapstructure:"features_path"`
	EncodersPath string `mapstructure:"encoders_path"`
	ONNXLibrary  string `mapstructure:"onnx_library"`
}

// AlertsConfig controls the alert log and operator notifications.
type AlertsConfig struct {
	LogPath         string `mapstructure:"log_path"`
	NotifyEnabled   bool   `mapstructure:"notify_enabled"`
	NotifyPerMinute int    `mapstructure:"notify_per_minute"`
	WebhookURL      string `mapstructure:"webhook_url"`
}

// DedupConfig optionally bounds the set of seen connection identifiers.
// Zero values keep every identifier for the life of the process.
type DedupConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// MonitorConfig defines the configuration for a single periodic monitor.
type MonitorConfig struct {
	Name     string `mapstructure:"name"`
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

// LoadConfig reads config.yaml from the working directory or
// /etc/flowguard/, then applies FLOWGUARD_* environment overrides. A .env
// file in the working directory is loaded into the environment first.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/flowguard/")

	setDefaults(v)

	v.SetEnvPrefix("FLOWGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		fmt.Println("Config file not found, using defaults and environment variables.")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("api_port", "9464")

	v.SetDefault("watcher.log_path", "captures/conn.log")
	v.SetDefault("watcher.file_poll_interval", time.Second)
	v.SetDefault("watcher.line_poll_interval", 500*time.Millisecond)

	v.SetDefault("artifacts.model_path", "models/nids_rf_model.onnx")
	v.SetDefault("artifacts.features_path", "models/features.yaml")
	v.SetDefault("artifacts.encoders_path", "models/encoders.yaml")
	v.SetDefault("artifacts.onnx_library", "")

	v.SetDefault("alerts.log_path", "alerts.log")
	v.SetDefault("alerts.notify_enabled", true)
	v.SetDefault("alerts.notify_per_minute", 30)
	v.SetDefault("alerts.webhook_url", "")

	v.SetDefault("dedup.max_entries", 0)
	v.SetDefault("dedup.ttl", time.Duration(0))

	v.SetDefault("monitors", []map[string]interface{}{
		{"name": "resource_monitor", "enabled": true, "interval": "1m"},
	})
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Watcher.LogPath == "":
		return errors.New("config: watcher.log_path is required")
	case c.Artifacts.ModelPath == "":
		return errors.New("config: artifacts.model_path is required")
	case c.Artifacts.FeaturesPath == "":
		return errors.New("config: artifacts.features_path is required")
	case c.Alerts.LogPath == "":
		return errors.New("config: alerts.log_path is required")
	case c.Watcher.FilePollInterval <= 0:
		return errors.New("config: watcher.file_poll_interval must be positive")
	case c.Watcher.LinePollInterval <= 0:
		return errors.New("config: watcher.line_poll_interval must be positive")
	case c.Dedup.MaxEntries < 0:
		return errors.New("config: dedup.max_entries must not be negative")
	}
	return nil
}

// GetMonitorConfig returns the configuration of the named monitor, or nil.
func (c *Config) GetMonitorConfig(name string) *MonitorConfig {
	for i := range c.Monitors {
		if c.Monitors[i].Name == name {
			return &c.Monitors[i]
		}
	}
	return nil
}
