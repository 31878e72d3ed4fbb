package extension

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hookline/packages/core/config"
	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
)

// recorder collects the order in which handlers ran.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func beforeRequest(rec *recorder, name string, err error) func(context.Context, BeforeRequestArgs, *Context) error {
	return func(context.Context, BeforeRequestArgs, *Context) error {
		rec.add(name)
		return err
	}
}

func newInitialized(t *testing.T, exts ...Extension) *Scheduler {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(exts...))
	s := NewScheduler(r)
	require.NoError(t, s.Initialize(context.Background(), config.DefaultConfig()))
	return s
}

func TestScheduler_Initialize(t *testing.T) {
	var got *config.Config
	r := NewRegistry()
	require.NoError(t, r.Register(Extension{
		Name: "a",
		Hooks: Hooks{Init: func(_ context.Context, args InitArgs, _ *Context) error {
			got = args.Config
			return nil
		}},
	}))
	s := NewScheduler(r)
	cfg := config.DefaultConfig()

	require.NoError(t, s.Initialize(context.Background(), cfg))
	assert.Same(t, cfg, got)
	assert.True(t, s.Initialized())

	err := s.Initialize(context.Background(), cfg)
	assert.True(t, errs.IsKind(err, errs.KindAlreadyInitialized))

	err = s.Execute(context.Background(), InitArgs{Config: cfg})
	assert.True(t, errs.IsKind(err, errs.KindAlreadyInitialized))
}

func TestScheduler_ExecuteBeforeInitialize(t *testing.T) {
	s := NewScheduler(NewRegistry())
	err := s.Execute(context.Background(), BeforeRequestArgs{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestScheduler_PriorityOrder(t *testing.T) {
	rec := &recorder{}
	s := newInitialized(t,
		Extension{Name: "low", Priority: -10, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "low", nil)}},
		Extension{Name: "first-zero", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "first-zero", nil)}},
		Extension{Name: "high", Priority: 100, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "high", nil)}},
		Extension{Name: "second-zero", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "second-zero", nil)}},
		Extension{Name: "silent", Priority: 1000},
	)

	require.NoError(t, s.Execute(context.Background(), BeforeRequestArgs{}))
	assert.Equal(t, []string{"high", "first-zero", "second-zero", "low"}, rec.list())
	assert.Equal(t, []string{"silent", "high", "first-zero", "second-zero", "low"}, names(s.Order()))
}

func TestScheduler_NonCriticalFailureContinues(t *testing.T) {
	rec := &recorder{}
	s := newInitialized(t,
		Extension{Name: "a", Priority: 3, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "a", errors.New("boom"))}},
		Extension{Name: "b", Priority: 2, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "b", nil)}},
		Extension{Name: "c", Priority: 1, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "c", errors.New("bang"))}},
	)

	err := s.Execute(context.Background(), BeforeRequestArgs{})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.list())

	var hookErr *errs.HookExecutionError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "beforeRequest", hookErr.Hook)
	assert.Equal(t, []string{"a", "c"}, hookErr.Extensions())
	assert.Equal(t, `hook "beforeRequest" failed: a: boom; c: bang`, err.Error())
	assert.True(t, errs.IsKind(err, errs.KindHookExecution))
}

func TestScheduler_CriticalFailureHalts(t *testing.T) {
	rec := &recorder{}
	s := newInitialized(t,
		Extension{Name: "guard", Priority: 10, Critical: true, Hooks: Hooks{BeforeRequest: beforeRequest(rec, "guard", errors.New("denied"))}},
		Extension{Name: "later", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "later", nil)}},
	)

	err := s.Execute(context.Background(), BeforeRequestArgs{})

	var hookErr *errs.HookExecutionError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, []string{"guard"}, hookErr.Extensions())
	assert.Equal(t, []string{"guard"}, rec.list())
}

func TestScheduler_OnErrorOfFailingExtension(t *testing.T) {
	cause := errors.New("boom")
	var (
		gotErr  error
		gotMeta *ErrorMeta
		other   bool
	)
	call := NewCall()
	s := newInitialized(t,
		Extension{
			Name: "failing",
			Hooks: Hooks{
				BeforeRequest: func(context.Context, BeforeRequestArgs, *Context) error { return cause },
				OnError: func(_ context.Context, err error, ec *Context, meta *ErrorMeta) error {
					assert.Equal(t, "failing", ec.Name())
					gotErr, gotMeta = err, meta
					return errors.New("onError is broken too")
				},
			},
		},
		Extension{
			Name: "bystander",
			Hooks: Hooks{
				OnError: func(context.Context, error, *Context, *ErrorMeta) error {
					other = true
					return nil
				},
			},
		},
	)

	err := s.Execute(context.Background(), BeforeRequestArgs{Call: call, Method: "GET", Endpoint: "/users"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause, "onError failure is not returned")
	assert.NotContains(t, err.Error(), "broken")

	assert.Equal(t, cause, gotErr)
	require.NotNil(t, gotMeta)
	assert.Equal(t, HookBeforeRequest, gotMeta.Hook)
	assert.Equal(t, ScopeHandler, gotMeta.Scope)
	assert.Equal(t, call.ID, gotMeta.Call.ID)
	assert.Equal(t, "/users", gotMeta.Endpoint)
	assert.False(t, other, "only the failing extension is notified")
}

func TestScheduler_OnErrorPhaseDoesNotRecurse(t *testing.T) {
	calls := 0
	s := newInitialized(t, Extension{
		Name: "a",
		Hooks: Hooks{OnError: func(context.Context, error, *Context, *ErrorMeta) error {
			calls++
			return errors.New("again")
		}},
	})

	err := s.Execute(context.Background(), ErrorArgs{Err: errors.New("x"), Meta: &ErrorMeta{Hook: HookOnRequest}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestScheduler_PanicRecovered(t *testing.T) {
	rec := &recorder{}
	s := newInitialized(t,
		Extension{Name: "panics", Priority: 1, Hooks: Hooks{BeforeRequest: func(context.Context, BeforeRequestArgs, *Context) error {
			panic("kaboom")
		}}},
		Extension{Name: "after", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "after", nil)}},
	)

	err := s.Execute(context.Background(), BeforeRequestArgs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, []string{"after"}, rec.list())
}

func TestScheduler_CallerCancellation(t *testing.T) {
	rec := &recorder{}
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	s := newInitialized(t,
		Extension{Name: "slow", Priority: 1, Hooks: Hooks{BeforeRequest: func(context.Context, BeforeRequestArgs, *Context) error {
			close(started)
			<-release
			return nil
		}}},
		Extension{Name: "next", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "next", nil)}},
	)

	ctx, cancel := context.WithCancelCause(context.Background())
	stop := errors.New("user pressed ctrl-c")
	go func() {
		<-started
		cancel(stop)
	}()

	err := s.Execute(ctx, BeforeRequestArgs{})

	var hookErr *errs.HookExecutionError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, []string{"slow"}, hookErr.Extensions())
	assert.ErrorIs(t, err, stop)
	assert.True(t, errs.IsKind(hookErr.Failures[0].Err, errs.KindAborted))
	assert.Empty(t, rec.list())
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	rec := &recorder{}
	s := newInitialized(t, Extension{Name: "a", Hooks: Hooks{BeforeRequest: beforeRequest(rec, "a", nil)}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Execute(ctx, BeforeRequestArgs{})
	assert.True(t, errs.IsKind(err, errs.KindAborted))
	assert.Empty(t, rec.list())
}

func TestScheduler_SharedStateAcrossPriorities(t *testing.T) {
	var observed any
	s := newInitialized(t,
		Extension{Name: "B", Priority: 5, Hooks: Hooks{BeforeRequest: func(_ context.Context, _ BeforeRequestArgs, ec *Context) error {
			observed, _ = ec.GetSharedState("x")
			return nil
		}}},
		Extension{Name: "A", Priority: 10, Hooks: Hooks{BeforeRequest: func(_ context.Context, _ BeforeRequestArgs, ec *Context) error {
			ec.SetSharedState("x", 1)
			return nil
		}}},
	)

	require.NoError(t, s.Execute(context.Background(), BeforeRequestArgs{}))
	assert.Equal(t, 1, observed)
}

func TestScheduler_HandlersReceiveClones(t *testing.T) {
	call := NewCall()
	cfg := &RequestConfig{Params: map[string]string{"a": "1"}}
	s := newInitialized(t, Extension{Name: "mutator", Hooks: Hooks{
		AfterRequest: func(_ context.Context, args AfterRequestArgs, _ *Context) error {
			args.Config.Params["a"] = "changed"
			return nil
		},
	}})

	require.NoError(t, s.Execute(context.Background(), AfterRequestArgs{Call: call, Config: cfg}))
	assert.Equal(t, "1", cfg.Params["a"])
}

func TestScheduler_NoHandlers(t *testing.T) {
	s := newInitialized(t, Extension{Name: "idle"})
	assert.NoError(t, s.Execute(context.Background(), AfterSuccessArgs{}))
}

func TestHooks_Names(t *testing.T) {
	h := Hooks{
		Init:         func(context.Context, InitArgs, *Context) error { return nil },
		AfterRequest: func(context.Context, AfterRequestArgs, *Context) error { return nil },
	}
	assert.Equal(t, []HookName{HookInit, HookAfterRequest}, h.Names())
	assert.True(t, HookOnStateChange.Valid())
	assert.False(t, HookName("onTimeout").Valid())
}

func TestCall_Elapsed(t *testing.T) {
	call := Call{ID: "x", Started: time.Now().Add(-time.Second)}
	assert.GreaterOrEqual(t, call.Elapsed(), time.Second)
	assert.NotEqual(t, NewCall().ID, NewCall().ID)
}

func TestScheduler_ExecutePointerArgs(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		var got *config.Config
		r := NewRegistry()
		require.NoError(t, r.Register(Extension{
			Name: "a",
			Hooks: Hooks{Init: func(_ context.Context, args InitArgs, _ *Context) error {
				got = args.Config
				return nil
			}},
		}))
		s := NewScheduler(r)
		cfg := config.DefaultConfig()

		require.NoError(t, s.Execute(context.Background(), &InitArgs{Config: cfg}))
		assert.Same(t, cfg, got)
		assert.True(t, s.Initialized())
	})

	t.Run("beforeRequest", func(t *testing.T) {
		rec := &recorder{}
		s := newInitialized(t, Extension{
			Name: "a",
			Hooks: Hooks{BeforeRequest: func(_ context.Context, args BeforeRequestArgs, _ *Context) error {
				rec.add(args.Method)
				args.Config.Params["page"] = "2"
				return nil
			}},
		})

		rc := &RequestConfig{Params: map[string]string{}}
		require.NoError(t, s.Execute(context.Background(), &BeforeRequestArgs{Method: "GET", Config: rc}))
		assert.Equal(t, []string{"GET"}, rec.list())
		assert.Equal(t, "2", rc.Params["page"])
	})

	t.Run("nil pointers", func(t *testing.T) {
		s := newInitialized(t, Extension{Name: "a", Hooks: Hooks{BeforeRequest: beforeRequest(&recorder{}, "a", nil)}})

		for _, args := range []Args{(*InitArgs)(nil), (*BeforeRequestArgs)(nil), (*ErrorArgs)(nil)} {
			var err error
			assert.NotPanics(t, func() { err = s.Execute(context.Background(), args) })
			assert.True(t, errs.IsKind(err, errs.KindValidation), "%T: %v", args, err)
		}
		assert.True(t, errs.IsKind(s.Execute(context.Background(), nil), errs.KindValidation))
	})
}
