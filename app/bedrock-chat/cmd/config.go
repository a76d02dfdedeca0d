package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/cchalm/bedrock-chat/internal/config"
)

// flagConfig receives flag values; only flags the user set override the environment
var flagConfig = config.Default()

func bindFlags(flags *pflag.FlagSet, dest *config.Config) {
	flags.StringVar(&dest.Profile, "profile", dest.Profile, "AWS profile to authenticate with")
	flags.StringVar(&dest.Region, "region", dest.Region, "AWS region hosting Bedrock")
	flags.StringVar(&dest.ModelID, "model", dest.ModelID, "Bedrock model ID")
	flags.Int64Var(&dest.MaxTokens, "max-tokens", dest.MaxTokens, "Maximum tokens per response")
	flags.Float64Var(&dest.Temperature, "temperature", dest.Temperature, "Sampling temperature between 0 and 1")
	flags.BoolVar(&dest.VerifyAccess, "verify-access", false, "Send a one-token request at startup to confirm model access")
	flags.BoolVar(&dest.NoContext, "no-context", false, "Send only the latest message with each request instead of the whole conversation")
	flags.DurationVar(&dest.TurnTimeout, "turn-timeout", 0, "Time limit for each model call (0 for none)")
	flags.BoolVar(&dest.Verbose, "verbose", false, "Log diagnostics to stderr")
	flags.BoolVar(&dest.TelemetryEnabled, "telemetry", false, "Export traces over OTLP/HTTP")
	flags.StringVar(&dest.OTLPEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for traces")
}

// resolveConfig layers defaults, then environment, then flags the user changed
func resolveConfig(flags *pflag.FlagSet, fromFlags config.Config) (config.Config, error) {
	cfg := config.Default()
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, err
	}

	overrides := map[string]func(){
		"profile":       func() { cfg.Profile = fromFlags.Profile },
		"region":        func() { cfg.Region = fromFlags.Region },
		"model":         func() { cfg.ModelID = fromFlags.ModelID },
		"max-tokens":    func() { cfg.MaxTokens = fromFlags.MaxTokens },
		"temperature":   func() { cfg.Temperature = fromFlags.Temperature },
		"verify-access": func() { cfg.VerifyAccess = fromFlags.VerifyAccess },
		"no-context":    func() { cfg.NoContext = fromFlags.NoContext },
		"turn-timeout":  func() { cfg.TurnTimeout = fromFlags.TurnTimeout },
		"verbose":       func() { cfg.Verbose = fromFlags.Verbose },
		"telemetry":     func() { cfg.TelemetryEnabled = fromFlags.TelemetryEnabled },
		"otlp-endpoint": func() { cfg.OTLPEndpoint = fromFlags.OTLPEndpoint },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
