// Package config handles loading and validation of portal configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/mod/semver"

	"threadly/internal/endpoint"
	"threadly/internal/model"
	"threadly/internal/storage"
)

// Config holds all portal configuration.
// Environment determines whether settings load from env vars (development)
// or Secret Manager (production).
type Config struct {
	Portal      model.Role
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	PortalID   string

	// Portal-specific settings (loaded from secrets in production)
	Settings PortalSettings
}

// PortalSettings contains per-portal deployment settings.
// In production, this is loaded from Secret Manager as JSON.
type PortalSettings struct {
	ExplicitBase  string `json:"explicit_base,omitempty"`
	AlternateBase string `json:"alternate_base,omitempty"`
	Origin        string `json:"origin,omitempty"`

	// FallbackMode is "production" or "relative"; the portals historically
	// disagree, so it is a per-portal choice rather than a constant.
	FallbackMode   string `json:"fallback_mode,omitempty"`
	LocalBase      string `json:"local_base,omitempty"`
	ProductionBase string `json:"production_base,omitempty"`

	CredentialMode string `json:"credential_mode"` // "cookie" or "bearer"
	EntryURL       string `json:"entry_url,omitempty"`

	// MinAPIVersion is the oldest backend API this client build accepts,
	// as a semver string (with or without the leading "v").
	MinAPIVersion string `json:"min_api_version,omitempty"`

	// BrowserFingerprint enables the Chrome TLS transport for portals
	// deployed behind the production CDN.
	BrowserFingerprint bool `json:"browser_fingerprint,omitempty"`

	Storage StorageSettings `json:"storage"`
}

// StorageSettings selects the key-value backend for cart/session state.
type StorageSettings struct {
	Backend       string `json:"backend"` // "memory", "file", or "redis"
	Path          string `json:"path,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisPrefix   string `json:"redis_prefix,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → env vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Portal:      model.Role(os.Getenv("PORTAL")),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		PortalID:    os.Getenv("PORTAL_ID"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.PortalID == "" {
			return nil, fmt.Errorf("PORTAL_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading portal settings: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid a pile of ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Portal      string         `json:"portal"`
		Environment string         `json:"environment"`
		LogLevel    string         `json:"log_level"`
		Settings    PortalSettings `json:"settings"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Portal:      model.Role(fileConfig.Portal),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		Settings:    fileConfig.Settings,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches portal settings from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{portal_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.PortalID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Settings); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads portal settings from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Settings = PortalSettings{
		ExplicitBase:   os.Getenv("THREADLY_API_BASE"),
		AlternateBase:  os.Getenv("THREADLY_API_BASE_ALT"),
		Origin:         os.Getenv("PORTAL_ORIGIN"),
		FallbackMode:   os.Getenv("FALLBACK_MODE"),
		LocalBase:      os.Getenv("LOCAL_API_BASE"),
		ProductionBase: os.Getenv("PRODUCTION_API_BASE"),
		CredentialMode: envOrDefault("CREDENTIAL_MODE", "cookie"),
		EntryURL:       os.Getenv("ENTRY_URL"),
		MinAPIVersion:  os.Getenv("MIN_API_VERSION"),
		Storage: StorageSettings{
			Backend:       envOrDefault("STORAGE_BACKEND", "file"),
			Path:          envOrDefault("STORAGE_PATH", "threadly-state.json"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisPrefix:   os.Getenv("REDIS_PREFIX"),
		},
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if !c.Portal.Valid() {
		return fmt.Errorf("portal is required (customer, vendor, rider, admin, or support)")
	}

	switch c.Settings.CredentialMode {
	case "cookie", "bearer":
	default:
		return fmt.Errorf("credential_mode must be cookie or bearer")
	}

	switch c.Settings.FallbackMode {
	case "", "production", "relative":
	default:
		return fmt.Errorf("fallback_mode must be production or relative")
	}

	switch c.Settings.Storage.Backend {
	case "memory", "file":
	case "redis":
		if c.Settings.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis storage backend")
		}
	default:
		return fmt.Errorf("storage backend must be memory, file, or redis")
	}

	if v := c.Settings.MinAPIVersion; v != "" && !semver.IsValid(canonicalVersion(v)) {
		return fmt.Errorf("invalid min_api_version %q", v)
	}

	if o := c.Settings.Origin; o != "" {
		if _, err := url.Parse(o); err != nil {
			return fmt.Errorf("invalid origin: %w", err)
		}
	}
	return nil
}

// MinVersionAtLeast reports whether the backend-advertised version
// satisfies the configured minimum. An unconfigured minimum accepts
// anything; an unparsable advertised version does not.
func (c *Config) MinVersionAtLeast(advertised string) bool {
	min := canonicalVersion(c.Settings.MinAPIVersion)
	if min == "" || !semver.IsValid(min) {
		return true
	}
	adv := canonicalVersion(advertised)
	if !semver.IsValid(adv) {
		return false
	}
	return semver.Compare(adv, min) >= 0
}

// EndpointConfig maps the settings onto the resolver's inputs.
func (c *Config) EndpointConfig() endpoint.Config {
	return endpoint.Config{
		Explicit:       c.Settings.ExplicitBase,
		Alternate:      c.Settings.AlternateBase,
		Origin:         c.Settings.Origin,
		Hostname:       extractHostname(c.Settings.Origin),
		Fallback:       endpoint.FallbackMode(c.Settings.FallbackMode),
		LocalBase:      c.Settings.LocalBase,
		ProductionBase: c.Settings.ProductionBase,
	}
}

// NewStore opens the configured key-value backend.
func (c *Config) NewStore(ctx context.Context) (storage.Store, error) {
	s := c.Settings.Storage
	switch s.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(s.Path), nil
	case "redis":
		prefix := s.RedisPrefix
		if prefix == "" {
			prefix = fmt.Sprintf("threadly:%s:", c.Portal)
		}
		return storage.NewRedis(ctx, s.RedisAddr, s.RedisPassword, prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// extractHostname parses the hostname (without port) from an origin URL.
func extractHostname(origin string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return origin
	}
	return u.Hostname()
}

// canonicalVersion normalizes a version to the "v"-prefixed form semver
// expects. Empty stays empty.
func canonicalVersion(v string) string {
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
