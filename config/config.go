// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the energy gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Tapo    TapoConfig     `yaml:"tapo"`
	Ingest  IngestConfig   `yaml:"ingest"`
	Cache   CacheConfig    `yaml:"cache"`
	Chat    ChatConfig     `yaml:"chat"`
	Devices []DeviceConfig `yaml:"devices"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int  `yaml:"port"`
	HTTPLog         bool `yaml:"http_log"`
	AllowLiveReads  bool `yaml:"allow_live_reads"`
	StrictOwnership bool `yaml:"strict_ownership"`
}

// TapoConfig holds the shared device service credentials and read bound
type TapoConfig struct {
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// IngestConfig holds the shared secret guarding the ingestion endpoint
type IngestConfig struct {
	Secret string `yaml:"secret"`
}

// CacheConfig holds snapshot cache TTLs
type CacheConfig struct {
	LiveTTL       time.Duration `yaml:"live_ttl"`
	IngestTTL     time.Duration `yaml:"ingest_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ChatConfig holds the chat model settings
type ChatConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// DeviceConfig is one registered smart plug
type DeviceConfig struct {
	ID      int64  `yaml:"id"`
	OwnerID int64  `yaml:"owner_id"`
	Title   string `yaml:"title"`
	IP      string `yaml:"ip"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if user := os.Getenv("TAPO_USER"); user != "" {
		c.Tapo.Username = user
	}
	if pass := os.Getenv("TAPO_PASS"); pass != "" {
		c.Tapo.Password = pass
	}
	if secret := os.Getenv("INGEST_SECRET"); secret != "" {
		c.Ingest.Secret = secret
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Chat.GeminiAPIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Chat.Model = model
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("PORT"); port != "" {
		p, parseErr := strconv.Atoi(port)
		if parseErr == nil {
			c.Server.Port = p
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse PORT '%s': %v\n", port, parseErr)
		}
	}
	if allow := os.Getenv("ALLOW_LIVE_READS"); allow != "" {
		b, parseErr := strconv.ParseBool(allow)
		if parseErr == nil {
			c.Server.AllowLiveReads = b
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse ALLOW_LIVE_READS '%s': %v\n", allow, parseErr)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Tapo.ReadTimeout == 0 {
		c.Tapo.ReadTimeout = 5 * time.Second
	}
	if c.Cache.LiveTTL == 0 {
		c.Cache.LiveTTL = 30 * time.Second
	}
	if c.Cache.IngestTTL == 0 {
		c.Cache.IngestTTL = 60 * time.Second
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = time.Minute
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gemini-robotics-er-1.5-preview"
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = "Você é o Assistente Virtual da Votrix, responda em PT-BR, técnico e conciso."
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if validateErr := c.validateServer(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateCache(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateDevices(); validateErr != nil {
		return validateErr
	}

	if validateErr := c.validateLogging(); validateErr != nil {
		return validateErr
	}

	return nil
}

// validateServer validates the HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}

// validateCache validates the snapshot cache configuration
func (c *Config) validateCache() error {
	if c.Cache.LiveTTL < time.Second {
		return fmt.Errorf("cache.live_ttl must be at least 1 second")
	}
	if c.Cache.IngestTTL < time.Second {
		return fmt.Errorf("cache.ingest_ttl must be at least 1 second")
	}
	if c.Cache.LiveTTL > time.Hour || c.Cache.IngestTTL > time.Hour {
		return fmt.Errorf("cache TTLs must not exceed 1 hour")
	}
	if c.Cache.SweepInterval < time.Second {
		return fmt.Errorf("cache.sweep_interval must be at least 1 second")
	}
	return nil
}

// validateDevices validates the registered device records
func (c *Config) validateDevices() error {
	seen := make(map[int64]bool)
	for i, dev := range c.Devices {
		if dev.ID <= 0 {
			return fmt.Errorf("devices[%d].id must be a positive integer", i)
		}
		if seen[dev.ID] {
			return fmt.Errorf("devices[%d].id %d is duplicated", i, dev.ID)
		}
		seen[dev.ID] = true
		if dev.Title == "" {
			return fmt.Errorf("devices[%d].title is required", i)
		}
	}
	return nil
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true,
		"warning": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, fatal, panic")
	}

	return nil
}
