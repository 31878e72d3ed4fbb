package http

import (
	"fmt"
	neturl "net/url"
	"strings"
)

// URLBuilder joins a base URL, an endpoint and query parameters.
type URLBuilder interface {
	Build(base, endpoint string, params map[string]string) (string, error)
}

// URLBuilderFunc adapts a function to URLBuilder.
type URLBuilderFunc func(base, endpoint string, params map[string]string) (string, error)

func (f URLBuilderFunc) Build(base, endpoint string, params map[string]string) (string, error) {
	return f(base, endpoint, params)
}

// DefaultURLBuilder uses BuildURL.
type DefaultURLBuilder struct{}

func (DefaultURLBuilder) Build(base, endpoint string, params map[string]string) (string, error) {
	return BuildURL(base, endpoint, params)
}

// BuildURL resolves endpoint against base and adds params to the query.
// Absolute endpoints ignore base. Query keys are encoded sorted.
func BuildURL(base, endpoint string, params map[string]string) (string, error) {
	raw := endpoint
	if !isAbsolute(endpoint) {
		if base == "" {
			return "", fmt.Errorf("relative endpoint %q requires a base URL", endpoint)
		}
		raw = joinPath(base, endpoint)
	}

	if err := ValidateURL(raw); err != nil {
		return "", err
	}
	if len(params) == 0 {
		return raw, nil
	}

	u, err := neturl.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isAbsolute(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func joinPath(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	if strings.HasPrefix(endpoint, "?") {
		return base + endpoint
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	// Check for valid scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	// Check for valid host
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
