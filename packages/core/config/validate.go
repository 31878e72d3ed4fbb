package config

import (
	"strings"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errs.Validation("timeout cannot be negative")
	}
	if c.MaxRedirects < 0 {
		return errs.Validation("maxRedirects cannot be negative")
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errs.Validation("baseURL must start with http:// or https://")
	}
	for name, s := range c.HeaderStrategies {
		if _, err := headers.ParseStrategy(s); err != nil {
			return errs.Validation("headerStrategies.%s: %v", name, err)
		}
	}

	ext := c.Extensions
	if ext.RateLimit != nil && ext.RateLimit.RequestsPerSecond <= 0 {
		return errs.Validation("extensions.rateLimit.requestsPerSecond must be positive")
	}
	if ext.Auth != nil {
		switch ext.Auth.Type {
		case "static":
			if ext.Auth.Token == "" {
				return errs.Validation("extensions.auth.token is required for static auth")
			}
		case "client_credentials":
			if ext.Auth.TokenURL == "" || ext.Auth.ClientID == "" {
				return errs.Validation("extensions.auth.tokenURL and clientID are required for client_credentials")
			}
		case "jwt":
			if ext.Auth.Secret == "" {
				return errs.Validation("extensions.auth.secret is required for jwt auth")
			}
		default:
			return errs.Validation("extensions.auth.type must be static, client_credentials or jwt, got %q", ext.Auth.Type)
		}
	}
	if ext.SigV4 != nil && (ext.SigV4.Region == "" || ext.SigV4.Service == "") {
		return errs.Validation("extensions.sigv4.region and service are required")
	}
	if ext.Schema != nil && ext.Schema.Path == "" {
		return errs.Validation("extensions.schema.path is required")
	}
	for i, rule := range ext.Capture {
		if rule.Name == "" || (rule.Path == "" && rule.Header == "") {
			return errs.Validation("extensions.capture[%d] needs a name and a path or header", i)
		}
	}
	if ext.History != nil && ext.History.Path == "" {
		return errs.Validation("extensions.history.path is required")
	}
	return nil
}

// Strategies parses HeaderStrategies. Validate has already rejected bad names.
func (c *Config) Strategies() map[string]headers.Strategy {
	if len(c.HeaderStrategies) == 0 {
		return nil
	}
	out := make(map[string]headers.Strategy, len(c.HeaderStrategies))
	for name, s := range c.HeaderStrategies {
		parsed, err := headers.ParseStrategy(s)
		if err != nil {
			continue
		}
		out[name] = parsed
	}
	return out
}
