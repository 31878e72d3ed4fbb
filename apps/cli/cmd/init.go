package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hookline config",
	Long: `Initialize a hookline config in the current directory.

This creates:
  - hookline.yaml  - Configuration file with a few extensions enabled
  - .env.example   - Variables referenced by the config

Examples:
  hookline init
  hookline init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const starterConfig = `# hookline configuration
baseURL: ${API_BASE_URL}
timeout: 30000 # milliseconds
followRedirects: true
maxRedirects: 10
validateSSL: true

headers:
  User-Agent: hookline/1.0
  Accept: application/json

# Per-header merge strategies: override, multivalue, merge
headerStrategies:
  X-Tags: merge

log:
  level: warn
  format: console
  output: stderr

extensions:
  requestID: true
  accessLog: false
  rateLimit:
    requestsPerSecond: 10
    burst: 5
  breaker:
    threshold: 5
    cooldown: 30000
  auth:
    type: static
    token: ${API_TOKEN}
  metrics:
    namespace: hookline
  history:
    path: .hookline/history.db
  template:
    variables:
      apiVersion: v1
  # capture:
  #   - name: userId
  #     path: data.id
  # schema:
  #   path: schemas/user.json
  #   critical: true
  # tracing:
  #   serviceName: my-cli
  #   stdout: true
`

const starterEnv = `API_BASE_URL=http://localhost:3000
API_TOKEN=change-me
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hookline.yaml")
	envFile := filepath.Join(cwd, ".env.example")

	if !forceInit {
		for _, f := range []string{configFile, envFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.MkdirAll(filepath.Join(cwd, ".hookline"), 0755); err != nil {
		return fmt.Errorf("failed to create .hookline directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(envFile, []byte(starterEnv), 0644); err != nil {
		return fmt.Errorf("failed to create env file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhookline initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Copy .env.example to .env, then run 'hookline get /health'.\n")

	return nil
}
