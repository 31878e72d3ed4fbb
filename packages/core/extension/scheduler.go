package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
)

// ErrNotInitialized is returned by Execute before Initialize has run.
var ErrNotInitialized = errs.Validation("extensions are not initialized")

// errCriticalFailure is the abort cause raised when a critical extension fails.
var errCriticalFailure = errors.New("critical extension failed")

// Scheduler runs one hook across the extensions of a registry.
type Scheduler struct {
	registry    *Registry
	logger      zerolog.Logger
	initialized atomic.Bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(logger zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler over registry.
func NewScheduler(registry *Registry, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the scheduler runs over.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Initialized reports whether Initialize has run.
func (s *Scheduler) Initialized() bool {
	return s.initialized.Load()
}

// Initialize runs the init hook. It may be called once.
func (s *Scheduler) Initialize(ctx context.Context, cfg *config.Config) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return errs.AlreadyInitialized()
	}
	return s.run(ctx, InitArgs{Config: cfg})
}

// Execute runs args' hook for every extension that handles it.
func (s *Scheduler) Execute(ctx context.Context, args Args) error {
	args, err := normalize(args)
	if err != nil {
		return err
	}
	if initArgs, ok := args.(InitArgs); ok {
		return s.Initialize(ctx, initArgs.Config)
	}
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return s.run(ctx, args)
}

// normalize dereferences pointer forms of the argument structs so handlers
// always receive values.
func normalize(args Args) (Args, error) {
	var (
		out   Args
		isNil bool
	)
	switch a := args.(type) {
	case nil:
		return nil, errs.Validation("hook arguments are required")
	case InitArgs, BeforeRequestArgs, OnRequestArgs, BeforeResponseArgs,
		OnResponseArgs, AfterSuccessArgs, ErrorArgs, AfterRequestArgs:
		return a, nil
	case *InitArgs:
		out, isNil = deref(a)
	case *BeforeRequestArgs:
		out, isNil = deref(a)
	case *OnRequestArgs:
		out, isNil = deref(a)
	case *BeforeResponseArgs:
		out, isNil = deref(a)
	case *OnResponseArgs:
		out, isNil = deref(a)
	case *AfterSuccessArgs:
		out, isNil = deref(a)
	case *ErrorArgs:
		out, isNil = deref(a)
	case *AfterRequestArgs:
		out, isNil = deref(a)
	default:
		return nil, errs.Validation("unsupported hook arguments %T", args)
	}
	if isNil {
		return nil, errs.Validation("hook arguments %T are nil", args)
	}
	return out, nil
}

func deref[T Args](p *T) (Args, bool) {
	if p == nil {
		return nil, true
	}
	return *p, false
}

// Order returns the extensions in execution order: descending priority,
// ties in registration order.
func (s *Scheduler) Order() []Extension {
	exts := s.registry.All()
	sort.SliceStable(exts, func(i, j int) bool {
		return exts[i].Priority > exts[j].Priority
	})
	return exts
}

// handlers returns the ordered extensions that handle hook.
func (s *Scheduler) handlers(hook HookName) []Extension {
	var out []Extension
	for _, ext := range s.Order() {
		if ext.Hooks.Has(hook) {
			out = append(out, ext)
		}
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, args Args) error {
	hook := args.Hook()
	exts := s.handlers(hook)
	if len(exts) == 0 {
		return nil
	}

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	log := s.logger.With().Str("hook", string(hook)).Logger()

	var failures []errs.Failure
	for i, ext := range exts {
		if runCtx.Err() != nil {
			for _, skipped := range exts[i:] {
				log.Debug().
					Str("extension", skipped.Name).
					AnErr("cause", context.Cause(runCtx)).
					Msg("handler skipped")
			}
			if len(failures) == 0 {
				err := errs.Aborted(context.Cause(runCtx))
				err.Hook = string(hook)
				return err
			}
			break
		}

		ec := s.registry.Context(ext.Name)
		err := s.invoke(runCtx, ext, args, ec)
		if err == nil {
			continue
		}

		failures = append(failures, errs.Failure{Extension: ext.Name, Err: err})
		log.Debug().Str("extension", ext.Name).Err(err).Msg("handler failed")

		if hook != HookOnError {
			s.reportFailure(ctx, ext, ec, args, err)
		}
		if ext.Critical {
			abort(fmt.Errorf("%w: %s", errCriticalFailure, ext.Name))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &errs.HookExecutionError{Hook: string(hook), Failures: failures}
}

// invoke runs one handler and waits for it or for ctx, whichever comes first.
func (s *Scheduler) invoke(ctx context.Context, ext Extension, args Args, ec *Context) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%s handler panicked: %v", args.Hook(), r)
			}
		}()
		done <- ext.Hooks.call(ctx, args, ec)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errs.Aborted(context.Cause(ctx))
	}
}

// reportFailure hands a handler failure to the failing extension's own
// onError hook. Failures there are logged only.
func (s *Scheduler) reportFailure(ctx context.Context, ext Extension, ec *Context, args Args, cause error) {
	if ext.Hooks.OnError == nil {
		return
	}
	meta := metaFor(args)
	err := s.invoke(context.WithoutCancel(ctx), ext, ErrorArgs{Err: cause, Meta: meta}, ec)
	if err != nil {
		s.logger.Warn().
			Str("extension", ext.Name).
			Str("hook", string(args.Hook())).
			Err(err).
			Msg("onError handler failed")
	}
}
