// ABOUTME: Configuration loader for the omnibus CLI
// ABOUTME: Layers defaults, an optional YAML file, .env, and environment variables

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Ledger service
	APIURL         string
	RequestTimeout int    // seconds, fixed per-request timeout (default 15)
	AllProxy       string // optional ssh+socks5://user@host:port?private-key=path

	// Transfers
	MaxTransferAmount int64   // upper bound for a single transfer (default 1000000)
	LookupRate        float64 // recipient lookups per second (default 2)
	LookupBurst       int     // lookup burst allowance (default 3)

	// Local state
	ConfigDir        string // holds credential.json, config.yaml, debug.log
	CredentialSecret string // optional passphrase sealing the credential file
	ActivityCacheTTL int    // seconds (default 30)
}

// Timeout returns RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ActivityTTL returns ActivityCacheTTL as a duration
func (c *Config) ActivityTTL() time.Duration {
	return time.Duration(c.ActivityCacheTTL) * time.Second
}

// fileConfig mirrors config.yaml. Pointer fields distinguish unset from zero.
type fileConfig struct {
	APIURL            string   `yaml:"api_url"`
	RequestTimeout    *int     `yaml:"request_timeout"`
	AllProxy          string   `yaml:"all_proxy"`
	MaxTransferAmount *int64   `yaml:"max_transfer_amount"`
	LookupRate        *float64 `yaml:"lookup_rate"`
	LookupBurst       *int     `yaml:"lookup_burst"`
	ActivityCacheTTL  *int     `yaml:"activity_cache_ttl"`
}

func defaults() *Config {
	return &Config{
		APIURL:            "http://localhost:8080/api/v1",
		RequestTimeout:    15,
		MaxTransferAmount: 1_000_000,
		LookupRate:        2,
		LookupBurst:       3,
		ConfigDir:         DefaultDir(),
		ActivityCacheTTL:  30,
	}
}

// DefaultDir returns $XDG_CONFIG_HOME/omnibus or ~/.config/omnibus
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "omnibus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".omnibus")
	}
	return filepath.Join(home, ".config", "omnibus")
}

// Load builds the configuration. path names a YAML file; when empty,
// <configDir>/config.yaml is used if it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	cfg.ConfigDir = getEnv("OMNIBUS_CONFIG_DIR", cfg.ConfigDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.ConfigDir, "config.yaml")
	}
	if err := mergeFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	cfg.APIURL = NormalizeURL(cfg.APIURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	merge(cfg, parsed)
	return nil
}

func merge(dst *Config, src fileConfig) {
	if src.APIURL != "" {
		dst.APIURL = src.APIURL
	}
	if src.RequestTimeout != nil {
		dst.RequestTimeout = *src.RequestTimeout
	}
	if src.AllProxy != "" {
		dst.AllProxy = src.AllProxy
	}
	if src.MaxTransferAmount != nil {
		dst.MaxTransferAmount = *src.MaxTransferAmount
	}
	if src.LookupRate != nil {
		dst.LookupRate = *src.LookupRate
	}
	if src.LookupBurst != nil {
		dst.LookupBurst = *src.LookupBurst
	}
	if src.ActivityCacheTTL != nil {
		dst.ActivityCacheTTL = *src.ActivityCacheTTL
	}
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getEnv("OMNIBUS_API_URL", cfg.APIURL)
	cfg.RequestTimeout = getEnvInt("OMNIBUS_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.AllProxy = getEnv("OMNIBUS_ALL_PROXY", cfg.AllProxy)
	cfg.MaxTransferAmount = int64(getEnvInt("OMNIBUS_MAX_TRANSFER_AMOUNT", int(cfg.MaxTransferAmount)))
	cfg.LookupRate = getEnvFloat("OMNIBUS_LOOKUP_RATE", cfg.LookupRate)
	cfg.LookupBurst = getEnvInt("OMNIBUS_LOOKUP_BURST", cfg.LookupBurst)
	cfg.CredentialSecret = getEnv("OMNIBUS_CREDENTIAL_SECRET", cfg.CredentialSecret)
	cfg.ActivityCacheTTL = getEnvInt("OMNIBUS_ACTIVITY_CACHE_TTL", cfg.ActivityCacheTTL)
}

// Validate checks ranges and the API URL
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("OMNIBUS_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.RequestTimeout < 1 || c.RequestTimeout > 300 {
		return fmt.Errorf("OMNIBUS_REQUEST_TIMEOUT must be between 1 and 300, got %d", c.RequestTimeout)
	}
	if c.MaxTransferAmount <= 0 {
		return fmt.Errorf("OMNIBUS_MAX_TRANSFER_AMOUNT must be positive, got %d", c.MaxTransferAmount)
	}
	if c.LookupRate <= 0 {
		return fmt.Errorf("OMNIBUS_LOOKUP_RATE must be positive, got %g", c.LookupRate)
	}
	if c.LookupBurst < 1 {
		return fmt.Errorf("OMNIBUS_LOOKUP_BURST must be at least 1, got %d", c.LookupBurst)
	}
	if c.ActivityCacheTTL < 0 {
		return fmt.Errorf("OMNIBUS_ACTIVITY_CACHE_TTL must not be negative, got %d", c.ActivityCacheTTL)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// NormalizeURL trims trailing slashes and defaults the scheme to https.
// Every source of the API URL goes through it.
func NormalizeURL(raw string) string {
	return ensureScheme(strings.TrimRight(strings.TrimSpace(raw), "/"))
}

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}
