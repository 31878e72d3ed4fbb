package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"direct", Validation("bad"), KindValidation},
		{"wrapped", fmt.Errorf("context: %w", Timeout(time.Second, context.DeadlineExceeded)), KindTimeout},
		{"aggregate", &HookExecutionError{Hook: "beforeRequest"}, KindHookExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Timeout(50*time.Millisecond, context.DeadlineExceeded)
	assert.Equal(t, "timeout after 50ms: request timed out: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	reqErr := Request(404, "404 Not Found", nil)
	assert.Equal(t, "request (status 404): 404 Not Found", reqErr.Error())

	dup := DuplicateExtension("auth")
	assert.Equal(t, "auth", dup.Extension)
	assert.Contains(t, dup.Error(), `extension "auth" is already registered`)
}

func TestHookExecutionError(t *testing.T) {
	first := errors.New("first failed")
	second := errors.New("second failed")
	err := &HookExecutionError{
		Hook: "beforeRequest",
		Failures: []Failure{
			{Extension: "a", Err: first},
			{Extension: "b", Err: second},
		},
	}

	assert.Equal(t, `hook "beforeRequest" failed: a: first failed; b: second failed`, err.Error())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Equal(t, []string{"a", "b"}, err.Extensions())
	assert.Equal(t, KindHookExecution, err.Kind())
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", StateMutation("counter", errors.New("bad reducer")))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindStateMutation, e.Kind)
	assert.Equal(t, "counter", e.Extension)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
