// Package breaker implements a circuit breaker on top of extension state.
//
// The breaker counts consecutive failed calls. Once Threshold is reached it
// opens and rejects calls in beforeRequest until Cooldown has passed, then
// lets one trial call through (half-open). The trial slot is claimed inside
// the state reducer, so concurrent calls racing for it see exactly one winner;
// the rest are rejected until the trial settles. A successful trial closes the
// circuit, a failed one opens it again. Responses below 500 count as
// successes.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

const (
	Name     = "breaker"
	Priority = 95

	DefaultThreshold = 5
	DefaultCooldown  = 30 * time.Second
)

// Circuit states.
const (
	Closed   = "closed"
	Open     = "open"
	HalfOpen = "half-open"
)

// ErrOpen rejects calls while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Option configures the breaker.
type Option func(*options)

type options struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(from, to string)
}

func WithThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cooldown = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// OnTransition is called after each circuit state transition.
func OnTransition(fn func(from, to string)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// New returns a critical breaker extension.
func New(opts ...Option) extension.Extension {
	o := &options{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return extension.Extension{
		Name:     Name,
		Priority: Priority,
		Critical: true,
		InitialState: map[string]any{
			"state":    Closed,
			"failures": 0,
		},
		Hooks: extension.Hooks{
			BeforeRequest: func(_ context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				if ec.ExtensionState().String("state") == Closed {
					return nil
				}
				rejected := false
				err := ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					rejected = false
					switch prev.String("state") {
					case Open:
						if o.now().Sub(prev.Time("openedAt")) < o.cooldown {
							rejected = true
							return prev, nil
						}
						return prev.WithAll(map[string]any{"state": HalfOpen, "trial": args.Call.ID}), nil
					case HalfOpen:
						// A trial call is already in flight.
						rejected = true
					}
					return prev, nil
				})
				if err != nil {
					return err
				}
				if rejected {
					return ErrOpen
				}
				return nil
			},
			AfterRequest: func(_ context.Context, args extension.AfterRequestArgs, ec *extension.Context) error {
				// Calls rejected by the breaker itself say nothing about the server.
				if errors.Is(args.Err, ErrOpen) {
					return nil
				}
				success := isSuccess(args)
				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					// While half-open only the trial call decides.
					if prev.String("state") == HalfOpen && prev.String("trial") != args.Call.ID {
						return prev, nil
					}
					if success {
						return prev.Without("trial").WithAll(map[string]any{"state": Closed, "failures": 0}), nil
					}
					failures := prev.Int("failures") + 1
					next := prev.Without("trial").With("failures", failures)
					if prev.String("state") == HalfOpen || failures >= o.threshold {
						next = next.WithAll(map[string]any{"state": Open, "openedAt": o.now()})
					}
					return next, nil
				})
			},
			OnStateChange: func(change extension.StateChange, ec *extension.Context) error {
				from, to := change.Previous.String("state"), change.Next.String("state")
				if from == to {
					return nil
				}
				ec.Logger().Info().Str("from", from).Str("to", to).Int("failures", change.Next.Int("failures")).Msg("circuit state changed")
				if o.onChange != nil {
					o.onChange(from, to)
				}
				return nil
			},
		},
	}
}

func isSuccess(args extension.AfterRequestArgs) bool {
	if args.Success {
		return true
	}
	return args.Status > 0 && args.Status < 500
}
