package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	verboseFlag  int // 0=off, 1=-v, 2=-vv
	noColorFlag  bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hookline",
	Short: "HTTP calls through a pipeline of extensions",
	Long: `hookline sends HTTP requests through an ordered set of extensions.
Extensions hook into every phase of a call (before the request, on the
response, on success or error) to add auth, signing, rate limiting,
circuit breaking, tracing, metrics, history and more.

Configuration is read from hookline.yaml (or .json) in the current
directory unless --config is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// reportedError marks an error the command already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// usageError marks a flag or argument error.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the root command with args and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	return exitCodeFor(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HOOKLINE_CONFIG", ""), "Path to config file (env: HOOKLINE_CONFIG)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v headers and details, -vv debug logs)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("HOOKLINE_NO_COLOR", false), "Disable colored output (env: HOOKLINE_NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("HOOKLINE_LOG_LEVEL", ""), "Log level override: debug, info, warn, error (env: HOOKLINE_LOG_LEVEL)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(newRequestCmd(""))
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"} {
		rootCmd.AddCommand(newRequestCmd(method))
	}
	rootCmd.AddCommand(extensionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// loadConfig loads --config or the config file found in the working
// directory. The returned path is empty when defaults are used.
func loadConfig() (*config.Config, string, error) {
	if configFlag != "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return nil, "", errs.Wrap(errs.KindValidation, err, "loading config")
		}
		return cfg, configFlag, nil
	}

	path, ok := config.FindConfigFile(".")
	if !ok {
		return config.DefaultConfig(), "", nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindValidation, err, "loading config")
	}
	return cfg, path, nil
}

// newLogger builds the CLI logger from cfg.Log and the global flags.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	logCfg := cfg.Log
	if logLevelFlag != "" {
		logCfg.Level = logLevelFlag
	}
	if verboseFlag >= 2 {
		logCfg.Level = zerolog.DebugLevel.String()
	}
	return logging.New(logCfg)
}
