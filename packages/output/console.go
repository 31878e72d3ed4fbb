package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/core/pipeline"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/history"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/metrics"
	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case map[string][]string:
		return fmt.Sprintf("{headers with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

// Call identifies the request a result belongs to.
type Call struct {
	Method string
	URL    string
}

// Formatter renders one call outcome.
type Formatter interface {
	FormatResult(call Call, result *pipeline.Result) error
	FormatError(call Call, err error) error
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	quiet   bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithQuiet prints only the response body.
func WithQuiet(q bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.quiet = q
	}
}

func statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return color.New(color.FgRed, color.Bold)
	case status >= 400:
		return color.New(color.FgYellow, color.Bold)
	case status >= 300:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func (f *ConsoleFormatter) FormatResult(call Call, result *pipeline.Result) error {
	if !f.quiet {
		cyan := color.New(color.FgCyan).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		fmt.Fprintf(f.writer, "%s %s\n", bold(call.Method), call.URL)
		fmt.Fprintf(f.writer, "%s %s\n", statusColor(result.Status).Sprint(result.StatusText),
			cyan(fmt.Sprintf("(%dms)", result.Duration.Milliseconds())))

		if f.verbose {
			f.formatHeaders(result.Headers)
		}
		fmt.Fprintln(f.writer)
	}

	if result.Response != nil {
		f.formatBody(result.Response.Body, result.Response.IsJSON())
	}
	return nil
}

func (f *ConsoleFormatter) formatHeaders(h headers.Set) {
	dim := color.New(color.Faint).SprintFunc()
	for _, name := range h.Names() {
		for _, v := range h.Values(name) {
			fmt.Fprintf(f.writer, "%s %s\n", dim(name+":"), v)
		}
	}
}

func (f *ConsoleFormatter) formatBody(body []byte, isJSON bool) {
	if len(body) == 0 {
		return
	}
	if isJSON {
		out := pretty.Pretty(body)
		if !color.NoColor {
			out = pretty.Color(out, nil)
		}
		_, _ = f.writer.Write(out)
		return
	}
	_, _ = f.writer.Write(body)
	if body[len(body)-1] != '\n' {
		fmt.Fprintln(f.writer)
	}
}

func (f *ConsoleFormatter) FormatError(call Call, err error) error {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if call.Method != "" && !f.quiet {
		fmt.Fprintf(f.writer, "%s %s\n", color.New(color.Bold).Sprint(call.Method), call.URL)
	}

	var hookErr *errs.HookExecutionError
	if errors.As(err, &hookErr) {
		fmt.Fprintf(f.writer, "%s hook %s failed\n", red("Error:"), hookErr.Hook)
		for _, failure := range hookErr.Failures {
			fmt.Fprintf(f.writer, "  %s %s: %v\n", red("→"), failure.Extension, failure.Err)
		}
		return nil
	}

	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
	if e, ok := errs.As(err); ok {
		if e.Hook != "" {
			fmt.Fprintf(f.writer, "  %s %s\n", yellow("during"), e.Hook)
		}
		if e.Kind == errs.KindRequest && e.Data != nil && f.verbose {
			fmt.Fprintf(f.writer, "  %s %s\n", yellow("body"), formatValue(e.Data, 200))
		}
	}
	return nil
}

// FormatHistory prints recorded calls, newest first.
func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No calls recorded")
		return
	}

	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, e := range entries {
		status := "---"
		if e.Status > 0 {
			status = statusColor(e.Status).Sprint(e.Status)
		}
		fmt.Fprintf(f.writer, "%s  %-7s %s %s %s",
			dim(e.StartedAt.Local().Format(time.DateTime)),
			e.Method, status, e.Endpoint,
			cyan(fmt.Sprintf("(%dms)", e.Duration.Milliseconds())))
		if !e.Success && e.ErrorKind != "" {
			fmt.Fprintf(f.writer, " %s", red(e.ErrorKind))
		}
		fmt.Fprintln(f.writer)
		if f.verbose && e.Error != "" {
			fmt.Fprintf(f.writer, "    %s\n", e.Error)
		}
	}
}

// FormatMetrics prints a metrics summary.
func (f *ConsoleFormatter) FormatMetrics(s *metrics.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Calls"))
	fmt.Fprintf(f.writer, "  %d total, %s, %s", s.TotalRequests,
		green(fmt.Sprintf("%d succeeded", s.SuccessCount)),
		red(fmt.Sprintf("%d failed", s.ErrorCount)))
	if s.TimeoutCount > 0 {
		fmt.Fprintf(f.writer, " (%d timed out)", s.TimeoutCount)
	}
	fmt.Fprintln(f.writer)
	if s.TotalRequests == 0 {
		return
	}

	fmt.Fprintf(f.writer, "  latency min %s  p50 %s  p95 %s  p99 %s  max %s\n",
		round(s.Min), round(s.P50), round(s.P95), round(s.P99), round(s.Max))

	if !f.verbose || len(s.Endpoints) < 2 {
		return
	}
	keys := make([]string, 0, len(s.Endpoints))
	for k := range s.Endpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for _, k := range keys {
		es := s.Endpoints[k]
		fmt.Fprintf(f.writer, "  %s%s  %d calls, %d errors, p50 %s\n",
			k, strings.Repeat(" ", width-len(k)), es.Total, es.Errors, round(es.P50))
	}
}

func round(d time.Duration) time.Duration {
	if d >= time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(time.Microsecond)
}
