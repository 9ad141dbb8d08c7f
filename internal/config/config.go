// Package config provides configuration loading for ScanHub.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (SCANHUB_*) > config file (~/.scanhub.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all ScanHub configuration options.
type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	OutputFormat  string        `mapstructure:"output_format" yaml:"output_format"`
	SchedulerTick time.Duration `mapstructure:"scheduler_tick" yaml:"scheduler_tick"`
	SchedulerRuns int           `mapstructure:"scheduler_runs" yaml:"scheduler_runs"`
	DatabaseURL   string        `mapstructure:"database_url" yaml:"database_url"`
	AMQPURL       string        `mapstructure:"amqp_url" yaml:"amqp_url"`
	AuditQueue    string        `mapstructure:"audit_queue" yaml:"audit_queue"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		ListenAddr:    ":8080",
		Workers:       4,
		OutputFormat:  "table",
		SchedulerTick: time.Minute,
		SchedulerRuns: 10,
		AuditQueue:    "scanhub-audit",
	}
}

// Load reads configuration from ~/.scanhub.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".scanhub")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("SCANHUB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)

	v.SetEnvPrefix("SCANHUB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("listen") {
		val, _ := flags.GetString("listen")
		cfg.ListenAddr = val
	}
	if flags.Changed("workers") {
		val, _ := flags.GetInt("workers")
		cfg.Workers = val
	}
	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		cfg.OutputFormat = val
	}
	if flags.Changed("scheduler-tick") {
		val, _ := flags.GetDuration("scheduler-tick")
		cfg.SchedulerTick = val
	}
	if flags.Changed("database-url") {
		val, _ := flags.GetString("database-url")
		cfg.DatabaseURL = val
	}
	if flags.Changed("amqp-url") {
		val, _ := flags.GetString("amqp-url")
		cfg.AMQPURL = val
	}
}

// ConfigFilePath returns the default config file path (~/.scanhub.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scanhub.yaml"
	}
	return filepath.Join(home, ".scanhub.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("workers", 4)
	v.SetDefault("output_format", "table")
	v.SetDefault("scheduler_tick", time.Minute)
	v.SetDefault("scheduler_runs", 10)
	v.SetDefault("audit_queue", "scanhub-audit")
}
