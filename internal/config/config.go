// Package config provides configuration management for bedrock-chat.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cchalm/bedrock-chat/internal/awsauth"
	"github.com/cchalm/bedrock-chat/internal/model"
)

// Environment variables read by ApplyEnv
const (
	EnvProfile      = "BEDROCK_CHAT_PROFILE"
	EnvRegion       = "BEDROCK_CHAT_REGION"
	EnvModelID      = "BEDROCK_CHAT_MODEL_ID"
	EnvMaxTokens    = "BEDROCK_CHAT_MAX_TOKENS"
	EnvTemperature  = "BEDROCK_CHAT_TEMPERATURE"
	EnvTurnTimeout  = "BEDROCK_CHAT_TURN_TIMEOUT"
	EnvTelemetry    = "BEDROCK_CHAT_TELEMETRY"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Config holds the configuration for a chat session
type Config struct {
	// AWS
	Profile string
	Region  string

	// Model
	ModelID      string
	MaxTokens    int64
	Temperature  float64
	VerifyAccess bool

	// Chat loop
	NoContext   bool          // Send only the latest user turn with each request
	TurnTimeout time.Duration // Zero means wait indefinitely

	// Diagnostics
	Verbose          bool
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	settings := model.DefaultSettings()
	return Config{
		Profile:     awsauth.DefaultProfile,
		Region:      awsauth.DefaultRegion,
		ModelID:     settings.ModelID,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	}
}

// ApplyEnv overrides fields whose environment variables are set
func ApplyEnv(c *Config) error {
	loadOptionalFromEnv(&c.Profile, EnvProfile)
	loadOptionalFromEnv(&c.Region, EnvRegion)
	loadOptionalFromEnv(&c.ModelID, EnvModelID)
	loadOptionalFromEnv(&c.OTLPEndpoint, EnvOTLPEndpoint)

	parseInt64 := func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
	parseFloat := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

	if err := parseOptionalFromEnv(&c.MaxTokens, EnvMaxTokens, parseInt64); err != nil {
		return err
	}
	if err := parseOptionalFromEnv(&c.Temperature, EnvTemperature, parseFloat); err != nil {
		return err
	}
	if err := parseOptionalFromEnv(&c.TurnTimeout, EnvTurnTimeout, time.ParseDuration); err != nil {
		return err
	}
	if err := parseOptionalFromEnv(&c.TelemetryEnabled, EnvTelemetry, strconv.ParseBool); err != nil {
		return err
	}
	return nil
}

// ModelSettings converts the model fields into generation settings
func (c Config) ModelSettings() model.Settings {
	settings := model.DefaultSettings()
	settings.ModelID = c.ModelID
	settings.MaxTokens = c.MaxTokens
	settings.Temperature = c.Temperature
	return settings
}

// Validate checks that the configuration can start a session
func (c Config) Validate() error {
	if c.Profile == "" {
		return fmt.Errorf("profile must not be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if err := c.ModelSettings().Validate(); err != nil {
		return err
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout must not be negative, got %s", c.TurnTimeout)
	}
	if c.TelemetryEnabled && c.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry is enabled but no OTLP endpoint is set (%s or --otlp-endpoint)", EnvOTLPEndpoint)
	}
	return nil
}

func loadOptionalFromEnv(dest *string, key string) {
	_ = parseOptionalFromEnv(dest, key, func(v string) (string, error) { return v, nil })
}

func parseOptionalFromEnv[T any](dest *T, key string, parseFn func(string) (T, error)) error {
	str := os.Getenv(key)
	if str == "" {
		return nil // Leave default value
	}
	v, err := parseFn(str)
	if err != nil {
		return fmt.Errorf("failed to parse environment variable '%s' value '%s' as '%T': %w", key, str, *dest, err)
	}
	*dest = v
	return nil
}
