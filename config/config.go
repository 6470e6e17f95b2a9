/*
Package config loads server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. .env in the working directory, if present (godotenv)
  3. YAML file named by CONFIG_FILE, if set
  4. Environment variables

EXAMPLE (config.yaml):

  http:
    port: "8080"
    cors_origins: ["http://localhost:3000"]
  db_path: ./data/charge-ledger.db
  log_level: info
  log_format: json
  program_seed: charge-ledger
  rent:
    overhead: 128
    per_byte: 6960
  rewards:
    type: cadence
    every: 4
  default_credit_value: 10000
  enable_dev_endpoints: false
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/warp/charge-ledger/ledger"
	"github.com/warp/charge-ledger/rewards"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "CONFIG_FILE"

type Config struct {
	HTTP HTTPConfig `yaml:"http"`

	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "console".
	LogFormat string `yaml:"log_format"`

	// ProgramSeed derives the program identity that scopes every record address.
	ProgramSeed string `yaml:"program_seed"`
	// MintAuthoritySeed derives the credential allowed to mint reward credits.
	// Empty means derived from the program identity.
	MintAuthoritySeed string `yaml:"mint_authority_seed"`

	Rent    ledger.Rent          `yaml:"rent"`
	Rewards rewards.PolicyConfig `yaml:"rewards"`

	// DefaultCreditValue is the currency value of one credit when a funding
	// request does not name one.
	DefaultCreditValue uint64 `yaml:"default_credit_value"`

	// EnableDevEndpoints exposes airdrop and reset. Never in production.
	EnableDevEndpoints bool `yaml:"enable_dev_endpoints"`
}

type HTTPConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:        "8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		DBPath:             "./data/charge-ledger.db",
		LogLevel:           "info",
		LogFormat:          "json",
		ProgramSeed:        "charge-ledger",
		Rent:               ledger.DefaultRent,
		Rewards:            rewards.PolicyConfig{Type: "cadence", Every: rewards.DefaultCadence},
		DefaultCreditValue: 10_000,
	}
}

// Load builds the configuration from defaults, .env, CONFIG_FILE and the
// environment, then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Port = getEnv("PORT", c.HTTP.Port)
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.ProgramSeed = getEnv("PROGRAM_SEED", c.ProgramSeed)
	c.MintAuthoritySeed = getEnv("MINT_AUTHORITY_SEED", c.MintAuthoritySeed)
	c.Rewards.Type = getEnv("REWARDS_TYPE", c.Rewards.Type)

	var err error
	if c.Rent.Overhead, err = getEnvUint("RENT_OVERHEAD", c.Rent.Overhead); err != nil {
		return err
	}
	if c.Rent.PerByte, err = getEnvUint("RENT_PER_BYTE", c.Rent.PerByte); err != nil {
		return err
	}
	every, err := getEnvUint("REWARDS_EVERY", uint64(c.Rewards.Every))
	if err != nil {
		return err
	}
	if every > uint64(^uint32(0)) {
		return fmt.Errorf("config: REWARDS_EVERY %d out of range", every)
	}
	c.Rewards.Every = uint32(every)
	if c.DefaultCreditValue, err = getEnvUint("DEFAULT_CREDIT_VALUE", c.DefaultCreditValue); err != nil {
		return err
	}
	if c.EnableDevEndpoints, err = getEnvBool("ENABLE_DEV_ENDPOINTS", c.EnableDevEndpoints); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ProgramSeed == "" {
		errs = append(errs, errors.New("program_seed is required"))
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("log_format %q must be json or console", c.LogFormat))
	}
	if c.Rent.PerByte == 0 {
		// reserves cannot be switched off: a zero table means DefaultRent to the program
		errs = append(errs, errors.New("rent.per_byte must be positive"))
	}
	if _, err := c.Rewards.Build(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ProgramID is the identity that scopes derived addresses.
func (c *Config) ProgramID() ledger.Identity {
	return ledger.IdentityFromSeed(c.ProgramSeed)
}

// MintAuthority is the credit mint credential.
func (c *Config) MintAuthority() ledger.Identity {
	if c.MintAuthoritySeed == "" {
		return ledger.IdentityFromSeed("mint:" + c.ProgramID().String())
	}
	return ledger.IdentityFromSeed(c.MintAuthoritySeed)
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) (uint64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
