package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Dispatch DispatchConfig    `yaml:"dispatch"`
	Queue    QueueConfig       `yaml:"queue"`
	Logging  LoggingConfig     `yaml:"logging"`
	Webhooks []WebhookEndpoint `yaml:"webhooks"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type DispatchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	WorkerCount    int           `yaml:"worker_count"`
	Simulate       bool          `yaml:"simulate"`
	SerialBaudRate int           `yaml:"serial_baud_rate"`
	SpoolerCommand string        `yaml:"spooler_command"`
}

type QueueConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebhookEndpoint struct {
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

// Wants reports whether the endpoint subscribes to the event. An empty
// events list subscribes to everything.
func (w WebhookEndpoint) Wants(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/printrouter.db",
		},
		Dispatch: DispatchConfig{
			Timeout:        30 * time.Second,
			WorkerCount:    2,
			Simulate:       true,
			SerialBaudRate: 9600,
			SpoolerCommand: "lp",
		},
		Queue: QueueConfig{
			MaxRetries: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRINTROUTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTROUTER_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("PRINTROUTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("PRINTROUTER_SIMULATE"); v != "" {
		if simulate, err := strconv.ParseBool(v); err == nil {
			c.Dispatch.Simulate = simulate
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive")
	}

	if c.Dispatch.WorkerCount < 1 {
		return fmt.Errorf("dispatch worker count must be at least 1")
	}

	if c.Dispatch.SerialBaudRate < 1 {
		return fmt.Errorf("serial baud rate must be positive")
	}

	if c.Dispatch.SpoolerCommand == "" {
		return fmt.Errorf("spooler command is required")
	}

	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %d: url is required", i)
		}
	}

	return nil
}
