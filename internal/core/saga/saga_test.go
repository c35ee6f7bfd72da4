package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lotledger/pkg/logger"
)

func TestRun_AllStepsCommit(t *testing.T) {
	var trail []string
	step := func(name string) Step {
		return Step{
			Name:       name,
			Action:     func(context.Context) error { trail = append(trail, name); return nil },
			Compensate: func(context.Context) error { trail = append(trail, "undo "+name); return nil },
		}
	}

	out := Run(context.Background(), "test", step("a"), step("b"))

	assert.True(t, out.IsCommitted())
	assert.NoError(t, out.Error())
	assert.Equal(t, []string{"a", "b"}, trail)
}

func TestRun_FailureCompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var trail []string

	out := Run(context.Background(), "test",
		Step{
			Name:       "a",
			Action:     func(context.Context) error { trail = append(trail, "a"); return nil },
			Compensate: func(context.Context) error { trail = append(trail, "undo a"); return nil },
		},
		Step{
			Name:       "b",
			Action:     func(context.Context) error { trail = append(trail, "b"); return nil },
			Compensate: func(context.Context) error { trail = append(trail, "undo b"); return nil },
		},
		Step{
			Name:       "c",
			Action:     func(context.Context) error { return boom },
			Compensate: func(context.Context) error { trail = append(trail, "undo c"); return nil },
		},
	)

	assert.Equal(t, CompensatedFailure, out.Kind)
	assert.Equal(t, "c", out.FailedStep)
	assert.ErrorIs(t, out.Error(), boom)
	assert.NoError(t, out.CompensationErr)
	assert.Equal(t, []string{"a", "b", "undo b", "undo a"}, trail)
}

func TestRun_CompensationSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensateCtxErr error

	out := Run(ctx, "test",
		Step{
			Name:   "reserve",
			Action: func(context.Context) error { return nil },
			Compensate: func(c context.Context) error {
				compensateCtxErr = c.Err()
				return nil
			},
		},
		Step{
			Name: "execute",
			Action: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	)

	require.Equal(t, CompensatedFailure, out.Kind)
	assert.ErrorIs(t, out.Error(), context.Canceled)
	assert.NoError(t, compensateCtxErr)
}

func TestRun_CompensationErrorDoesNotReplaceOriginal(t *testing.T) {
	original := errors.New("phase b failed")
	undoErr := errors.New("undo failed")
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(context.Background(), logger.Wrap(zap.New(core)))

	out := Run(ctx, "test",
		Step{
			Name:       "reserve",
			Action:     func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return undoErr },
		},
		Step{
			Name:   "execute",
			Action: func(context.Context) error { return original },
		},
	)

	assert.ErrorIs(t, out.Error(), original)
	assert.ErrorIs(t, out.CompensationErr, undoErr)
	assert.EqualError(t, out.CompensationErr, "compensate reserve: undo failed")
	assert.Equal(t, "compensated_failure", out.Kind.String())
	assert.Zero(t, logs.Len(), "reporting is left to the caller")
}

func TestRun_FirstStepFailureHasNothingToUndo(t *testing.T) {
	called := false
	out := Run(context.Background(), "test",
		Step{
			Name:       "reserve",
			Action:     func(context.Context) error { return errors.New("conflict") },
			Compensate: func(context.Context) error { called = true; return nil },
		},
	)

	assert.False(t, out.IsCommitted())
	assert.False(t, called)
}
