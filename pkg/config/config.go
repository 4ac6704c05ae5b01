// Package config provides configuration loading for the console.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings like "5s"
// or "48h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ConsoleConfig is the structure of the pulseline.yaml file.
type ConsoleConfig struct {
	Transport TransportConfig `yaml:"transport"`
	Executor  ExecutorConfig  `yaml:"executor"`
	History   HistoryConfig   `yaml:"history"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

// TransportConfig selects and configures the live progress channel.
type TransportConfig struct {
	// Provider is one of "gochannel", "kafka" or "websocket".
	Provider     string `yaml:"provider"`
	KafkaBrokers string `yaml:"kafka_brokers"`
	Topic        string `yaml:"topic"`
	WebsocketURL string `yaml:"websocket_url"`
}

// ExecutorConfig points at the remote executor's REST surface.
type ExecutorConfig struct {
	BaseURL      string   `yaml:"base_url"`
	PollInterval Duration `yaml:"poll_interval"`
}

// HistoryConfig configures run archiving.
type HistoryConfig struct {
	RedisURL      string   `yaml:"redis_url"`
	Retention     Duration `yaml:"retention"`
	SweepSchedule string   `yaml:"sweep_schedule"`
}

// Load reads a console configuration from a YAML file and applies
// defaults for anything unset.
func Load(path string) (*ConsoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg ConsoleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every default applied, for
// consoles running without a config file.
func Default() *ConsoleConfig {
	cfg := &ConsoleConfig{}
	cfg.applyDefaults()

	return cfg
}

func (c *ConsoleConfig) applyDefaults() {
	if c.Transport.Provider == "" {
		c.Transport.Provider = "gochannel"
	}

	if c.Transport.Topic == "" {
		c.Transport.Topic = "pulseline.progress"
	}

	if c.Executor.PollInterval <= 0 {
		c.Executor.PollInterval = Duration(2 * time.Second)
	}

	if c.History.Retention <= 0 {
		c.History.Retention = Duration(7 * 24 * time.Hour)
	}

	if c.History.SweepSchedule == "" {
		c.History.SweepSchedule = "@hourly"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
