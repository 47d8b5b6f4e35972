// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package config loads service configuration from a YAML file with
// environment variable expansion. Both ${VAR_NAME} and $VAR_NAME forms are
// supported, plus ${VAR_NAME:-default} for fallbacks, so one config file
// serves every environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Graph    GraphConfig    `yaml:"graph"`
	Redis    RedisConfig    `yaml:"redis"`
	Billing  BillingConfig  `yaml:"billing"`
	AWS      AWSConfig      `yaml:"aws"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// PostgresConfig holds the control-plane database connection.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// GraphConfig holds the shared graph cluster connection. Dedicated tenant
// deployments are configured per tenant in the directory, not here.
type GraphConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RedisConfig holds the coordination store connection. Redis is optional;
// an empty address disables the billing sync lock.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// BillingConfig holds billing processor settings. An empty API key
// disables usage reporting.
type BillingConfig struct {
	StripeAPIKey        string `yaml:"stripe_api_key,omitempty"`
	MeterEventName      string `yaml:"meter_event_name,omitempty"`
	SyncIntervalMinutes int    `yaml:"sync_interval_minutes,omitempty"`
}

// AWSConfig holds AWS settings for Secrets Manager credential resolution.
type AWSConfig struct {
	Region         string `yaml:"region,omitempty"`
	SecretsEnabled bool   `yaml:"secrets_enabled,omitempty"`
}

// Enabled reports whether usage reporting is configured.
func (c *BillingConfig) Enabled() bool { return c.StripeAPIKey != "" }

// SyncInterval returns the periodic sync interval.
func (c *BillingConfig) SyncInterval() time.Duration {
	if c.SyncIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// Load reads the config file, expands environment variables, applies
// defaults and validates. An empty path loads defaults from the
// environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Postgres.DSN == "" {
		c.Postgres.DSN = os.Getenv("DATABASE_URL")
	}
	if c.Graph.URI == "" {
		c.Graph.URI = envOr("NEO4J_URI", "bolt://localhost:7687")
	}
	if c.Graph.Username == "" {
		c.Graph.Username = envOr("NEO4J_USERNAME", "neo4j")
	}
	if c.Graph.Password == "" {
		c.Graph.Password = os.Getenv("NEO4J_PASSWORD")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if c.Billing.StripeAPIKey == "" {
		c.Billing.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	}
	if c.Billing.MeterEventName == "" {
		c.Billing.MeterEventName = "graph_queries"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = os.Getenv("AWS_REGION")
	}
}

// Validate checks the loaded configuration for required fields.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required (or set DATABASE_URL)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Billing.Enabled() && c.Billing.MeterEventName == "" {
		return fmt.Errorf("billing.meter_event_name is required when billing is enabled")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references, supporting
// ${VAR_NAME:-default} fallbacks. Undefined variables without a default
// expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
