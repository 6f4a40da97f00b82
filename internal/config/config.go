// Package config provides bridge service configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Script flavors accepted by BRIDGE_SCRIPT.
const (
	ScriptLua        = "lua"
	ScriptJavaScript = "javascript"
)

// Config holds bridgekit configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"bridgekit"`

	// Subject overrides (empty = commsutil defaults)
	EvalSubject    string `envconfig:"BRIDGE_EVAL_SUBJECT"`
	InboundSubject string `envconfig:"BRIDGE_INBOUND_SUBJECT"`
	TrafficSubject string `envconfig:"BRIDGE_TRAFFIC_SUBJECT"`

	// Bridge behaviour
	ErrorTopic  string        `envconfig:"BRIDGE_ERROR_TOPIC" default:"error"`
	EventName   string        `envconfig:"BRIDGE_EVENT_NAME" default:"bridgekit"`
	EvalTimeout time.Duration `envconfig:"BRIDGE_EVAL_TIMEOUT" default:"10s"`
	// PublishTimeout bounds each traffic publish (NATS tap and journal insert).
	PublishTimeout time.Duration `envconfig:"BRIDGE_PUBLISH_TIMEOUT" default:"2s"`
	// ScriptFlavor selects the injected script: "lua" for a bridgekit remote page, "javascript" for a browser.
	ScriptFlavor string `envconfig:"BRIDGE_SCRIPT" default:"lua"`

	// Traffic journal (empty = disabled)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// HTTP health endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Remote page script for demo/remote (empty = embedded demo page)
	DemoScript string `envconfig:"DEMO_SCRIPT"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// JournalEnabled reports whether traffic should be recorded in Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// Validate checks required config when running the bridge service.
func (c *Config) Validate() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	if c.ErrorTopic == "" {
		return fmt.Errorf("%s - BRIDGE_ERROR_TOPIC must not be empty", logPrefix)
	}
	if c.EventName == "" {
		return fmt.Errorf("%s - BRIDGE_EVENT_NAME must not be empty", logPrefix)
	}
	if c.ScriptFlavor != ScriptLua && c.ScriptFlavor != ScriptJavaScript {
		return fmt.Errorf("%s - BRIDGE_SCRIPT must be %q or %q, got %q", logPrefix, ScriptLua, ScriptJavaScript, c.ScriptFlavor)
	}
	if c.EvalTimeout < 0 {
		return fmt.Errorf("%s - BRIDGE_EVAL_TIMEOUT must not be negative", logPrefix)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%s - BRIDGE_PUBLISH_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT %d out of range", logPrefix, c.HTTPPort)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
