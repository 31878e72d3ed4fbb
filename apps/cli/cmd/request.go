package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
	"github.com/abdul-hamid-achik/hookline/packages/extensions"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/metrics"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/template"
	hlhttp "github.com/abdul-hamid-achik/hookline/packages/http"
	"github.com/abdul-hamid-achik/hookline/packages/output"
)

var (
	headerFlags  []string
	paramFlags   []string
	dataFlag     string
	baseURLFlag  string
	timeoutFlag  string
	outputFlag   string
	quietFlag    bool
	insecureFlag bool
	proxyFlag    string
	cassetteFlag string
	recordFlag   bool
	watchFlag    bool
	summaryFlag  bool
)

// newRequestCmd returns "request <method> <url>" for an empty method, or a
// shortcut command such as "get <url>".
func newRequestCmd(method string) *cobra.Command {
	c := &cobra.Command{
		Use:   "request <method> <url|endpoint>",
		Short: "Send a request through the configured extensions",
		Long: `Send one HTTP request through the extensions enabled in the config file.

Relative endpoints are resolved against baseURL. Exit codes reflect the
error kind: 1 rejected status, 2 undecodable body, 3 configuration,
4 network, 5 timeout, 6 extension failure, 130 aborted.

Examples:
  hookline request GET /users
  hookline get https://api.example.com/users -q page=2
  hookline post /users -d '{"name":"ada"}'
  hookline post /upload -d @payload.json -H 'Content-Type: application/json'
  hookline get /users --cassette testdata/users --record
  hookline get /health --watch`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return requestCommand(cmd, args[0], args[1])
		},
	}
	if method != "" {
		c.Use = strings.ToLower(method) + " <url|endpoint>"
		c.Short = fmt.Sprintf("Send a %s request", method)
		c.Long = ""
		c.Args = cobra.ExactArgs(1)
		c.RunE = func(cmd *cobra.Command, args []string) error {
			return requestCommand(cmd, method, args[0])
		}
	}

	f := c.Flags()
	f.StringArrayVarP(&headerFlags, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringArrayVarP(&paramFlags, "query", "q", nil, "Query parameter as key=value (repeatable)")
	f.StringVarP(&dataFlag, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	f.StringVar(&baseURLFlag, "base-url", getEnvString("HOOKLINE_BASE_URL", ""), "Override baseURL (env: HOOKLINE_BASE_URL)")
	f.StringVar(&timeoutFlag, "timeout", getEnvString("HOOKLINE_TIMEOUT", ""), "Request timeout, e.g. 5s; 0 disables (env: HOOKLINE_TIMEOUT)")
	f.StringVarP(&outputFlag, "output", "o", getEnvString("HOOKLINE_OUTPUT", "console"), "Output format: console, json (env: HOOKLINE_OUTPUT)")
	f.BoolVar(&quietFlag, "quiet", getEnvBool("HOOKLINE_QUIET", false), "Print only the response body (env: HOOKLINE_QUIET)")
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HOOKLINE_INSECURE", false), "Disable SSL certificate validation (env: HOOKLINE_INSECURE)")
	f.StringVar(&proxyFlag, "proxy", getEnvString("HOOKLINE_PROXY", ""), "Proxy URL (env: HOOKLINE_PROXY)")
	f.StringVar(&cassetteFlag, "cassette", "", "Replay the call from a cassette file (without .yaml)")
	f.BoolVar(&recordFlag, "record", false, "Record into --cassette instead of replaying")
	f.BoolVarP(&watchFlag, "watch", "w", false, "Re-send the request whenever the config file changes")
	f.BoolVar(&summaryFlag, "summary", false, "Print call count and latency summary")
	return c
}

func requestCommand(cmd *cobra.Command, method, target string) error {
	if recordFlag && cassetteFlag == "" {
		return &usageError{err: fmt.Errorf("--record requires --cassette")}
	}

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRequestFlags(cfg); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("opening log output: %w", err)
	}
	defer closer.Close()

	body, err := readBody(dataFlag, cmd.InOrStdin())
	if err != nil {
		return &usageError{err: err}
	}
	hdrs, err := parseHeaders(headerFlags)
	if err != nil {
		return &usageError{err: err}
	}
	params, err := parseParams(paramFlags)
	if err != nil {
		return &usageError{err: err}
	}

	formatter, err := newFormatter(outputFlag, cmd.OutOrStdout())
	if err != nil {
		return &usageError{err: err}
	}

	req := &callSpec{
		method:  method,
		target:  target,
		headers: hdrs,
		params:  params,
		body:    body,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sendOnce(ctx, cfg, logger, req, formatter, cmd.ErrOrStderr())
	if !watchFlag {
		return err
	}

	if cfgPath == "" {
		return errs.Validation("--watch needs a config file")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching %s for changes... (press Ctrl+C to stop)\n", cfgPath)

	werr := config.Watch(ctx, cfgPath, func(next *config.Config, loadErr error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nConfig changed, re-sending...\n\n")
		if loadErr != nil {
			_ = formatter.FormatError(output.Call{}, loadErr)
			return
		}
		if err := applyRequestFlags(next); err != nil {
			_ = formatter.FormatError(output.Call{}, err)
			return
		}
		_ = sendOnce(ctx, next, logger, req, formatter, cmd.ErrOrStderr())
	})
	if werr != nil && ctx.Err() == nil {
		return werr
	}
	return nil
}

// applyRequestFlags layers the per-invocation flags over cfg.
func applyRequestFlags(cfg *config.Config) error {
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return errs.Validation("invalid timeout %q: %v", timeoutFlag, err)
		}
		cfg.Timeout = int(d.Milliseconds())
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if proxyFlag != "" {
		cfg.Proxy = proxyFlag
	}
	return cfg.Validate()
}

type callSpec struct {
	method  string
	target  string
	headers map[string]string
	params  map[string]string
	body    []byte
}

func (s *callSpec) options() []pipeline.RequestOption {
	opts := []pipeline.RequestOption{
		pipeline.WithHeaders(s.headers),
		pipeline.WithParams(s.params),
	}
	if s.body != nil {
		opts = append(opts, pipeline.WithBody(s.body))
		if !hasHeader(s.headers, "Content-Type") && json.Valid(s.body) {
			opts = append(opts, pipeline.WithHeader("Content-Type", "application/json"))
		}
	}
	return opts
}

// sendOnce builds a client for cfg, sends the call and prints the outcome.
// A printed failure is returned as a reportedError.
func sendOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger, spec *callSpec, formatter output.Formatter, stderr io.Writer) error {
	set, err := extensions.FromConfig(cfg, extensions.Options{Logger: logger, TraceOutput: stderr})
	if err != nil {
		return errs.Wrap(errs.KindValidation, err, "building extensions")
	}
	collector := set.Metrics
	if summaryFlag && collector == nil {
		collector = metrics.NewCollector("")
		set.Extensions = append(set.Extensions, collector.Extension())
	}

	opts := []pipeline.Option{
		pipeline.WithExtensions(set.Extensions...),
		pipeline.WithLogger(logger),
	}

	if cassetteFlag != "" {
		mode := hlhttp.CassetteReplay
		if recordFlag {
			mode = hlhttp.CassetteRecord
		}
		cassette, err := hlhttp.OpenCassette(cassetteFlag, mode, nil)
		if err != nil {
			return errs.Wrap(errs.KindValidation, err, "opening cassette")
		}
		defer func() {
			if err := cassette.Stop(); err != nil {
				logger.Warn().Err(err).Str("cassette", cassetteFlag).Msg("failed to save cassette")
			}
		}()
		opts = append(opts, pipeline.WithTransport(hlhttp.NewTransport(
			hlhttp.WithFollowRedirects(cfg.GetFollowRedirects()),
			hlhttp.WithMaxRedirects(cfg.MaxRedirects),
			hlhttp.WithRoundTripper(cassette.RoundTripper()),
		)))
	}

	client, err := pipeline.NewWithContext(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing extensions")
		}
	}()

	target, err := expandTarget(cfg, spec.target)
	if err != nil {
		return err
	}

	call := output.Call{Method: strings.ToUpper(spec.method), URL: displayURL(cfg.BaseURL, target, spec.params)}
	result, err := client.Do(ctx, spec.method, target, spec.options()...)
	if err != nil {
		if ferr := formatter.FormatError(call, err); ferr != nil {
			return ferr
		}
		return &reportedError{err: err}
	}
	if err := formatter.FormatResult(call, result); err != nil {
		return err
	}

	if summaryFlag {
		summaryFormatter(stderr).FormatMetrics(collector.Summary())
	}
	return nil
}

// expandTarget resolves {{...}} placeholders in the endpoint when the
// template extension is enabled. Headers and bodies are expanded by the
// extension itself.
func expandTarget(cfg *config.Config, target string) (string, error) {
	tc := cfg.Extensions.Template
	if tc == nil {
		return target, nil
	}
	r := template.NewResolver(nil, template.MapLookup(tc.Variables))
	if tc.Strict {
		out, err := r.ResolveStrict(target)
		if err != nil {
			return "", errs.Wrap(errs.KindValidation, err, "expanding endpoint")
		}
		return out, nil
	}
	out, _, err := r.Resolve(target)
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, err, "expanding endpoint")
	}
	return out, nil
}

func newFormatter(format string, w io.Writer) (output.Formatter, error) {
	switch format {
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(noColorFlag),
			output.WithQuiet(quietFlag),
		), nil
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console or json)", format)
	}
}

func summaryFormatter(w io.Writer) *output.ConsoleFormatter {
	return output.NewConsoleFormatter(
		output.WithWriter(w),
		output.WithVerbose(verboseFlag > 0),
		output.WithNoColor(noColorFlag),
	)
}

func displayURL(base, target string, params map[string]string) string {
	u, err := hlhttp.BuildURL(base, target, params)
	if err != nil {
		return target
	}
	return u
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want 'Name: value')", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

// parseParams parses key=value pairs.
func parseParams(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q (want key=value)", p)
		}
		out[key] = value
	}
	return out, nil
}

// readBody resolves --data: "" means no body, "@-" reads stdin, "@path"
// reads a file and anything else is sent verbatim.
func readBody(data string, stdin io.Reader) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading body from stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
