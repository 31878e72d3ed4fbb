// Package ratelimit throttles outgoing requests with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hookline/packages/core/extension"
	"github.com/abdul-hamid-achik/hookline/packages/core/state"
)

const (
	Name     = "ratelimit"
	Priority = 80
)

// New returns an extension allowing rps requests per second with the given
// burst. A burst below one is raised to one.
func New(rps float64, burst int) extension.Extension {
	if burst < 1 {
		burst = 1
	}
	return NewWithLimiter(rate.NewLimiter(rate.Limit(rps), burst))
}

// NewWithLimiter returns an extension waiting on limiter before each request.
func NewWithLimiter(limiter *rate.Limiter) extension.Extension {
	return extension.Extension{
		Name:         Name,
		Priority:     Priority,
		InitialState: map[string]any{"throttled": 0, "waited": time.Duration(0)},
		Hooks: extension.Hooks{
			BeforeRequest: func(ctx context.Context, args extension.BeforeRequestArgs, ec *extension.Context) error {
				start := time.Now()
				if err := limiter.Wait(ctx); err != nil {
					return fmt.Errorf("rate limit wait: %w", err)
				}
				waited := time.Since(start)
				if waited < time.Millisecond {
					return nil
				}

				ec.Logger().Debug().Str("call", args.Call.ID).Dur("waited", waited).Msg("request throttled")
				return ec.SetState(func(prev state.Snapshot) (state.Snapshot, error) {
					total, _ := prev.Get("waited")
					d, _ := total.(time.Duration)
					return prev.WithAll(map[string]any{
						"throttled": prev.Int("throttled") + 1,
						"waited":    d + waited,
					}), nil
				})
			},
		},
	}
}
