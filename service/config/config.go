package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/sniper/service/wallet"
)

// Accepted values for PRIORITY. The hint is carried with every transfer but has no fee semantics.
var validPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

// minAPITokenLength is the shortest bearer token accepted for the HTTP API.
const minAPITokenLength = 16

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	APIToken       string   // bearer token required on /api/v1 routes
	AllowedOrigins []string // browser origins allowed by CORS; empty allows none

	// Solana configuration
	SolanaRPCURL  string
	Commitment    string
	SkipPreflight bool

	// Credential configuration. Exactly one of PrivateKey and PrivateKeyFile is set.
	PrivateKey     string
	PrivateKeyFile string

	// Pipeline configuration
	Priority      string
	SubmitTimeout time.Duration

	// NATS configuration
	NATSURL      string
	NATSEnabled  bool
	EventSubject string
	EventTextJQ  string
	ConsumerName string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error listing every malformed or missing setting.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.APIToken = os.Getenv("API_TOKEN")
	cfg.AllowedOrigins = parseList(os.Getenv("ALLOWED_ORIGINS"))

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	cfg.Commitment = getEnvOrDefault("COMMITMENT", "confirmed")
	skipPreflight, err := parseBool("SKIP_PREFLIGHT", false)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SkipPreflight = skipPreflight

	// Credential configuration; the key itself is validated by wallet.Load
	cfg.PrivateKey = os.Getenv("PRIVATE_KEY")
	cfg.PrivateKeyFile = os.Getenv("PRIVATE_KEY_FILE")

	// Pipeline configuration
	cfg.Priority = getEnvOrDefault("PRIORITY", "medium")
	submitTimeout, err := parseDuration("SUBMIT_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SubmitTimeout = submitTimeout

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	natsEnabled, err := parseBool("NATS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.NATSEnabled = natsEnabled
	cfg.EventSubject = getEnvOrDefault("EVENT_SUBJECT", "posts.>")
	cfg.EventTextJQ = getEnvOrDefault("EVENT_TEXT_JQ", ".text")
	cfg.ConsumerName = getEnvOrDefault("CONSUMER_NAME", "sniper")

	errs = append(errs, cfg.validate()...)

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// Load calls it; it is exported for configs built without the environment.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func (c *Config) validate() []error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	switch {
	case c.PrivateKey == "" && c.PrivateKeyFile == "":
		errs = append(errs, fmt.Errorf("PRIVATE_KEY or PRIVATE_KEY_FILE is required"))
	case c.PrivateKey != "" && c.PrivateKeyFile != "":
		errs = append(errs, fmt.Errorf("PRIVATE_KEY and PRIVATE_KEY_FILE are mutually exclusive"))
	}

	if len(c.APIToken) < minAPITokenLength {
		errs = append(errs, fmt.Errorf("API_TOKEN is required and must be at least %d characters", minAPITokenLength))
	}

	if !validPriorities[c.Priority] {
		errs = append(errs, fmt.Errorf("PRIORITY must be one of low, medium, high, got %q", c.Priority))
	}

	if !validCommitments[c.Commitment] {
		errs = append(errs, fmt.Errorf("COMMITMENT must be one of processed, confirmed, finalized, got %q", c.Commitment))
	}

	if c.SubmitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SUBMIT_TIMEOUT must be positive, got %v", c.SubmitTimeout))
	}

	if c.NATSEnabled {
		if c.NATSURL == "" {
			errs = append(errs, fmt.Errorf("NATS_URL is required when NATS is enabled"))
		}
		if c.EventSubject == "" {
			errs = append(errs, fmt.Errorf("EVENT_SUBJECT is required when NATS is enabled"))
		}
		if c.ConsumerName == "" {
			errs = append(errs, fmt.Errorf("CONSUMER_NAME is required when NATS is enabled"))
		}
	}

	return errs
}

// Credential returns the settings wallet.Load needs.
func (c *Config) Credential() wallet.CredentialConfig {
	return wallet.CredentialConfig{
		PrivateKey:     c.PrivateKey,
		PrivateKeyFile: c.PrivateKeyFile,
		RPCEndpoint:    c.SolanaRPCURL,
	}
}

// String renders the configuration for startup logs with the secret key redacted.
func (c *Config) String() string {
	key := "unset"
	switch {
	case c.PrivateKey != "":
		key = "[redacted]"
	case c.PrivateKeyFile != "":
		key = "file:" + c.PrivateKeyFile
	}
	token := "unset"
	if c.APIToken != "" {
		token = "[redacted]"
	}
	return fmt.Sprintf("server=%s origins=%v nats=%s enabled=%t subject=%s priority=%s timeout=%v key=%s token=%s",
		c.ServerAddr, c.AllowedOrigins, c.NATSURL, c.NATSEnabled, c.EventSubject, c.Priority, c.SubmitTimeout, key, token)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
