package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/bcdannyboy/trinomial/positions"
)

const (
	EnvSteps         = "TRINOMIAL_STEPS"
	EnvThreshold     = "TRINOMIAL_THRESHOLD"
	EnvBounded       = "TRINOMIAL_BOUNDED"
	EnvWorkers       = "TRINOMIAL_WORKERS"
	EnvLogLevel      = "TRINOMIAL_LOG_LEVEL"
	EnvTradierKey    = "TRADIER_KEY"
	EnvTradierURL    = "TRADIER_URL"
	EnvSlackAppToken = "SLACK_APP_TOKEN"
	EnvSlackBotToken = "SLACK_BOT_TOKEN"
)

// Config is the CLI configuration. Command-line flags override it.
type Config struct {
	Pricing       positions.PricingConfig
	LogLevel      string
	TradierKey    string
	TradierURL    string
	SlackAppToken string
	SlackBotToken string
}

// Load reads the given .env files, or ./.env when none are named, into the
// process environment and builds a Config from it. Missing files are not an
// error; variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() Config {
	def := positions.DefaultPricingConfig()
	return Config{
		Pricing: positions.PricingConfig{
			Steps:     GetEnvInt(EnvSteps, def.Steps),
			Threshold: GetEnvFloat(EnvThreshold, def.Threshold),
			Bounded:   GetEnvBool(EnvBounded, def.Bounded),
			Workers:   GetEnvInt(EnvWorkers, def.Workers),
		},
		LogLevel:      GetEnvStr(EnvLogLevel, "info"),
		TradierKey:    GetEnvStr(EnvTradierKey, ""),
		TradierURL:    GetEnvStr(EnvTradierURL, ""),
		SlackAppToken: GetEnvStr(EnvSlackAppToken, ""),
		SlackBotToken: GetEnvStr(EnvSlackBotToken, ""),
	}
}
