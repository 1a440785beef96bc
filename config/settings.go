// Package config loads the standalone server settings from the environment
// and the gateway configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/manishiitg/apimcp/oauth"
)

// Run modes of the standalone server
const (
	ModeStdio = "STDIO"
	ModeSSE   = "SSE"
)

// Viper keys. Each is bound to the environment variable in envNames and,
// by the CLI, to a flag of the same name.
const (
	KeyBaseURL      = "base-url"
	KeyClientID     = "client-id"
	KeyClientSecret = "client-secret"
	KeyCacheTTL     = "cache-ttl"
	KeyMode         = "mode"
	KeyPort         = "port"
	KeyBasePath     = "base-path"
	KeyHTTPTimeout  = "http-timeout"
	KeyAllowedTools = "allowed-tools"
	KeySpecDir      = "spec-dir"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
)

var envNames = map[string]string{
	KeyBaseURL:      "MCP_BASE_URL",
	KeyClientID:     "MCP_CLIENT_ID",
	KeyClientSecret: "MCP_CLIENT_SECRET",
	KeyCacheTTL:     "MCP_CACHE_TTL",
	KeyMode:         "MCP_MODE",
	KeyPort:         "PORT",
	KeyBasePath:     "BASE_PATH",
	KeyHTTPTimeout:  "MCP_HTTP_TIMEOUT",
	KeyAllowedTools: "MCP_ALLOWED_TOOLS",
	KeySpecDir:      "MCP_SPEC_DIR",
	KeyLogLevel:     "LOG_LEVEL",
	KeyLogFormat:    "LOG_FORMAT",
}

// Settings configure the standalone MCP server
type Settings struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// CacheTTL of fetched spec documents; zero disables caching
	CacheTTL time.Duration

	Mode         string
	Port         int
	BasePath     string
	HTTPTimeout  time.Duration
	AllowedTools string

	// SpecDir replaces the spec listing service with a local directory
	SpecDir string

	LogLevel  string
	LogFormat string
}

// SetDefaults registers defaults and environment bindings on v
func SetDefaults(v *viper.Viper) error {
	v.SetDefault(KeyBaseURL, "http://0.0.0.0:8998/mcp")
	v.SetDefault(KeyCacheTTL, 300000)
	v.SetDefault(KeyMode, ModeStdio)
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyBasePath, "mcp-proxy")
	v.SetDefault(KeyHTTPTimeout, "30s")
	v.SetDefault(KeyAllowedTools, "*")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadSettings reads and validates the settings held by v
func LoadSettings(v *viper.Viper) (*Settings, error) {
	timeout, err := parseDuration(v.GetString(KeyHTTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envNames[KeyHTTPTimeout], err)
	}
	s := &Settings{
		BaseURL:      strings.TrimSpace(v.GetString(KeyBaseURL)),
		ClientID:     v.GetString(KeyClientID),
		ClientSecret: v.GetString(KeyClientSecret),
		CacheTTL:     time.Duration(v.GetInt64(KeyCacheTTL)) * time.Millisecond,
		Mode:         strings.ToUpper(strings.TrimSpace(v.GetString(KeyMode))),
		Port:         v.GetInt(KeyPort),
		BasePath:     strings.Trim(v.GetString(KeyBasePath), "/"),
		HTTPTimeout:  timeout,
		AllowedTools: v.GetString(KeyAllowedTools),
		SpecDir:      v.GetString(KeySpecDir),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports the first unusable setting
func (s *Settings) Validate() error {
	if s.Mode != ModeStdio && s.Mode != ModeSSE {
		return fmt.Errorf("MCP_MODE must be %s or %s, got %q", ModeStdio, ModeSSE, s.Mode)
	}
	if s.Mode == ModeSSE && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", s.Port)
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("MCP_CACHE_TTL must not be negative")
	}
	if s.SpecDir != "" {
		return nil
	}
	if s.BaseURL == "" {
		return errors.New("MCP_BASE_URL is required")
	}
	if s.ClientID == "" || s.ClientSecret == "" {
		return errors.New("MCP_CLIENT_ID and MCP_CLIENT_SECRET are required unless MCP_SPEC_DIR is set")
	}
	return nil
}

// OAuth returns the client credentials config for the token endpoint
// served under BaseURL
func (s *Settings) OAuth() *oauth.ClientCredentialsConfig {
	cfg := &oauth.ClientCredentialsConfig{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		TokenURL:     oauth.TokenURLFor(s.BaseURL),
	}
	cfg.SetDefaults()
	return cfg
}

// ListenAddr is the SSE listen address
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// parseDuration accepts Go durations and bare milliseconds
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
