package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the hookline client configuration
type Config struct {
	BaseURL          string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Timeout          int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	HeaderStrategies map[string]string `json:"headerStrategies,omitempty" yaml:"headerStrategies,omitempty"`
	FollowRedirects  *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects     int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL      *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy            string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Log              LogConfig         `json:"log,omitempty" yaml:"log,omitempty"`
	Extensions       ExtensionsConfig  `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// LogConfig configures the zerolog logger
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json or console
	Output string `json:"output,omitempty" yaml:"output,omitempty"` // stdout, stderr or a file path
}

// ExtensionsConfig enables and configures the built-in extensions
type ExtensionsConfig struct {
	RequestID bool             `json:"requestID,omitempty" yaml:"requestID,omitempty"`
	AccessLog bool             `json:"accessLog,omitempty" yaml:"accessLog,omitempty"`
	RateLimit *RateLimitConfig `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Breaker   *BreakerConfig   `json:"breaker,omitempty" yaml:"breaker,omitempty"`
	Auth      *AuthConfig      `json:"auth,omitempty" yaml:"auth,omitempty"`
	SigV4     *SigV4Config     `json:"sigv4,omitempty" yaml:"sigv4,omitempty"`
	Schema    *SchemaConfig    `json:"schema,omitempty" yaml:"schema,omitempty"`
	Capture   []CaptureRule    `json:"capture,omitempty" yaml:"capture,omitempty"`
	Metrics   *MetricsConfig   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing   *TracingConfig   `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	History   *HistoryConfig   `json:"history,omitempty" yaml:"history,omitempty"`
	Template  *TemplateConfig  `json:"template,omitempty" yaml:"template,omitempty"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

type BreakerConfig struct {
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Cooldown  int `json:"cooldown,omitempty" yaml:"cooldown,omitempty"` // milliseconds
}

// AuthConfig selects one token source: static token, OAuth2 client
// credentials or a locally minted HS256 JWT.
type AuthConfig struct {
	Type         string   `json:"type" yaml:"type"` // static, client_credentials, jwt
	Token        string   `json:"token,omitempty" yaml:"token,omitempty"`
	TokenURL     string   `json:"tokenURL,omitempty" yaml:"tokenURL,omitempty"`
	ClientID     string   `json:"clientID,omitempty" yaml:"clientID,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Secret       string   `json:"secret,omitempty" yaml:"secret,omitempty"`
	Issuer       string   `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Subject      string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Audience     string   `json:"audience,omitempty" yaml:"audience,omitempty"`
	TTL          int      `json:"ttl,omitempty" yaml:"ttl,omitempty"` // seconds
}

type SigV4Config struct {
	AccessKey    string `json:"accessKey" yaml:"accessKey"`
	SecretKey    string `json:"secretKey" yaml:"secretKey"`
	SessionToken string `json:"sessionToken,omitempty" yaml:"sessionToken,omitempty"`
	Region       string `json:"region" yaml:"region"`
	Service      string `json:"service" yaml:"service"`
}

type SchemaConfig struct {
	Path     string `json:"path" yaml:"path"`
	Critical bool   `json:"critical,omitempty" yaml:"critical,omitempty"`
}

// CaptureRule copies a JSON path or a response header into shared state
type CaptureRule struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Header string `json:"header,omitempty" yaml:"header,omitempty"`
}

type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

type TracingConfig struct {
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Stdout      bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
}

type HistoryConfig struct {
	Path string `json:"path" yaml:"path"`
}

// TemplateConfig enables {{...}} expansion in outgoing requests.
type TemplateConfig struct {
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Strict    bool              `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// TimeoutDuration returns the request timeout as a duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hookline.yaml",
	".hookline.yml",
	"hookline.yaml",
	".hookline.json",
	"hookline.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindConfigFile returns the first of ConfigFilenames present in dir.
func FindConfigFile(dir string) (string, bool) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, true
		}
	}
	return "", false
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if configPath, ok := FindConfigFile(dir); ok {
		return loadConfigFromFile(configPath)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file. A .env file
// next to it is loaded first so ${VAR} references can resolve against it.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	data = []byte(ExpandEnv(string(data)))

	config := DefaultConfig()
	if isJSONFile(path) {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func isJSONFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Log.Level != "" {
		result.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		result.Log.Format = other.Log.Format
	}
	if other.Log.Output != "" {
		result.Log.Output = other.Log.Output
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}

	result.Headers = mergeStringMaps(c.Headers, other.Headers)
	result.HeaderStrategies = mergeStringMaps(c.HeaderStrategies, other.HeaderStrategies)

	return &result
}

func mergeStringMaps(base, other map[string]string) map[string]string {
	if len(base) == 0 && len(other) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(other))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSONFile(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
