// Package saga runs multi-step operations whose steps commit independently
// and undoes the committed ones when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lotledger/saga")

// Kind tags an Outcome.
type Kind int

const (
	// Committed means every step succeeded.
	Committed Kind = iota
	// CompensatedFailure means a step failed and the steps before it were undone.
	CompensatedFailure
)

func (k Kind) String() string {
	switch k {
	case Committed:
		return "committed"
	case CompensatedFailure:
		return "compensated_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Step is one independently committed unit of a saga.
// Compensate may be nil for the last step or for steps with no durable effect.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Outcome is the result of Run.
type Outcome struct {
	Kind Kind

	// FailedStep names the step whose Action failed.
	FailedStep string

	// Err is the original error of the failed step.
	Err error

	// CompensationErr is set when undoing a committed step failed too.
	// The saga is then left partially applied and needs manual repair.
	CompensationErr error
}

// IsCommitted reports whether every step succeeded.
func (o Outcome) IsCommitted() bool {
	return o.Kind == Committed
}

// Error returns the error to surface to the caller: the original failure,
// never the compensation failure.
func (o Outcome) Error() error {
	if o.Kind == Committed {
		return nil
	}
	return o.Err
}

// Run executes steps in order. When a step fails, the Compensate of every
// previously successful step runs in reverse order.
//
// Compensation runs on a context detached from cancellation: a request that
// timed out during the failed step must still be able to undo its earlier steps.
func Run(ctx context.Context, name string, steps ...Step) Outcome {
	ctx, span := tracer.Start(ctx, "saga."+name,
		trace.WithAttributes(attribute.Int("saga.steps", len(steps))))
	defer span.End()

	for i, step := range steps {
		if err := runAction(ctx, step); err != nil {
			out := Outcome{
				Kind:       CompensatedFailure,
				FailedStep: step.Name,
				Err:        err,
			}
			out.CompensationErr = compensate(context.WithoutCancel(ctx), steps[:i])

			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("saga.failed_step", step.Name))
			if out.CompensationErr != nil {
				span.RecordError(out.CompensationErr)
			}
			return out
		}
	}

	return Outcome{Kind: Committed}
}

func runAction(ctx context.Context, step Step) error {
	ctx, span := tracer.Start(ctx, "saga.step."+step.Name)
	defer span.End()

	if err := step.Action(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func compensate(ctx context.Context, done []Step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}

		ctxStep, span := tracer.Start(ctx, "saga.compensate."+step.Name)
		err := step.Compensate(ctxStep)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
		span.End()
	}
	return errors.Join(errs...)
}
