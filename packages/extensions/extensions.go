package extensions

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/accesslog"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/auth"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/breaker"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/capture"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/history"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/metrics"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/ratelimit"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/requestid"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/schema"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/sigv4"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/template"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/tracing"
)

// Set is the result of FromConfig.
type Set struct {
	Extensions []extension.Extension

	// Set when the matching extension is enabled.
	Metrics *metrics.Collector
	History *history.Recorder
}

// Names lists the extension names in configuration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Extensions))
	for i, ext := range s.Extensions {
		names[i] = ext.Name
	}
	return names
}

// Options tune FromConfig.
type Options struct {
	// Logger is used by the access log extension.
	Logger zerolog.Logger
	// TraceOutput receives spans when tracing.stdout is set.
	TraceOutput io.Writer
}

// FromConfig builds every extension enabled in cfg.Extensions.
func FromConfig(cfg *config.Config, opts Options) (*Set, error) {
	set := &Set{}
	if cfg == nil {
		return set, nil
	}
	ec := cfg.Extensions
	add := func(ext extension.Extension) {
		set.Extensions = append(set.Extensions, ext)
	}

	if ec.Template != nil {
		add(template.New(
			template.WithVariables(ec.Template.Variables),
			template.WithStrict(ec.Template.Strict),
		))
	}
	if ec.Auth != nil {
		source, err := auth.FromConfig(ec.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth extension: %w", err)
		}
		add(auth.New(source))
	}
	if ec.Breaker != nil {
		var bopts []breaker.Option
		if ec.Breaker.Threshold > 0 {
			bopts = append(bopts, breaker.WithThreshold(ec.Breaker.Threshold))
		}
		if ec.Breaker.Cooldown > 0 {
			bopts = append(bopts, breaker.WithCooldown(time.Duration(ec.Breaker.Cooldown)*time.Millisecond))
		}
		add(breaker.New(bopts...))
	}
	if ec.SigV4 != nil {
		add(sigv4.New(sigv4.FromConfig(ec.SigV4)))
	}
	if ec.RateLimit != nil {
		add(ratelimit.New(ec.RateLimit.RequestsPerSecond, ec.RateLimit.Burst))
	}
	if ec.RequestID {
		add(requestid.New())
	}
	if ec.Tracing != nil {
		ext, err := tracing.FromConfig(ec.Tracing, opts.TraceOutput)
		if err != nil {
			return nil, fmt.Errorf("tracing extension: %w", err)
		}
		add(ext)
	}
	if ec.Schema != nil {
		v, err := schema.LoadValidator(ec.Schema.Path)
		if err != nil {
			return nil, fmt.Errorf("schema extension: %w", err)
		}
		add(schema.New(v, ec.Schema.Critical))
	}
	if len(ec.Capture) > 0 {
		add(capture.New(capture.RulesFromConfig(ec.Capture)...))
	}
	if ec.Metrics != nil {
		set.Metrics = metrics.NewCollector(ec.Metrics.Namespace)
		add(set.Metrics.Extension())
	}
	if ec.History != nil {
		set.History = history.NewRecorder(ec.History.Path)
		add(set.History.Extension())
	}
	if ec.AccessLog {
		add(accesslog.New(accesslog.WithLogger(opts.Logger)))
	}

	return set, nil
}
