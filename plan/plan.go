package plan

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/crmarques/mobilectl/debugctx"
	"github.com/crmarques/mobilectl/faults"
)

const aggregateMessage = "not all operations completed successfully"

// Step is one unit of a plan. The labels are shown by the reporter before and
// after Work runs.
type Step struct {
	Progress string
	Success  string
	Failure  string
	Work     func(ctx context.Context) error
}

// Reporter receives step announcements. Finished gets the step error, nil on
// success.
type Reporter interface {
	Started(step Step)
	Finished(step Step, err error)
}

type Result struct {
	Attempted int
	Failed    int
}

func (r Result) Succeeded() int {
	return r.Attempted - r.Failed
}

type Executor struct {
	Reporter Reporter
}

// Run executes steps strictly in order. A failing or panicking step never
// stops later steps; the returned error is an AggregateError when at least
// one step failed.
func (e Executor) Run(ctx context.Context, steps []Step) (Result, error) {
	result := Result{}
	logger := debugctx.Logger(ctx).V(debugctx.LevelDebug)

	for idx, step := range steps {
		if e.Reporter != nil {
			e.Reporter.Started(step)
		}

		err := runStep(ctx, step)
		result.Attempted++
		if err != nil {
			result.Failed++
			logger.Info("plan step failed", "index", idx, "step", step.Progress, "error", err.Error())
		} else {
			logger.Info("plan step succeeded", "index", idx, "step", step.Progress)
		}

		if e.Reporter != nil {
			e.Reporter.Finished(step, err)
		}
	}

	if result.Failed > 0 {
		return result, faults.NewTypedError(
			faults.AggregateError,
			fmt.Sprintf("%s (%d of %d failed)", aggregateMessage, result.Failed, result.Attempted),
			nil,
		)
	}
	return result, nil
}

func runStep(ctx context.Context, step Step) (err error) {
	if step.Work == nil {
		return faults.NewTypedError(faults.InternalError, "plan step has no work", nil)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			debugctx.Logger(ctx).V(debugctx.LevelTrace).Info("plan step panicked", "stack", string(debug.Stack()))
			err = faults.NewTypedError(faults.InternalError, fmt.Sprintf("step panicked: %v", recovered), nil)
		}
	}()

	return step.Work(ctx)
}

// Builder collects steps, skipping the ones whose condition is false.
type Builder struct {
	steps []Step
}

func (b *Builder) Add(step Step) *Builder {
	b.steps = append(b.steps, step)
	return b
}

func (b *Builder) AddIf(condition bool, step Step) *Builder {
	if condition {
		b.steps = append(b.steps, step)
	}
	return b
}

func (b *Builder) Steps() []Step {
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	return steps
}

func (b *Builder) Len() int {
	return len(b.steps)
}
