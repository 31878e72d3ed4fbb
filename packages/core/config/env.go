package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DotEnvFiles are loaded, in order, from the config directory when present.
// Variables already set in the process environment are never overwritten.
var DotEnvFiles = []string{".env", ".env.local"}

// LoadDotEnv loads the DotEnvFiles found in dir.
func LoadDotEnv(dir string) error {
	for _, name := range DotEnvFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// ExpandEnv replaces ${VAR} and $VAR references. Unset variables expand to "".
func ExpandEnv(s string) string {
	return os.ExpandEnv(s)
}
