package operation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crmarques/mobilectl/debugctx"
	"github.com/crmarques/mobilectl/faults"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultInterval = 5 * time.Second

const (
	statusUnknownMessage = "unable to determine the status of the asynchronous operation; check the status on the management portal"
	failedMessage        = "operation failed; confirm the status on the management portal"
)

type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
)

// State is one status fetch result. ErrorCode and ErrorMessage are only set
// when the provider reports a cause for a failed operation.
type State struct {
	Status       Status
	ErrorCode    string
	ErrorMessage string
}

type Fetcher interface {
	FetchState(ctx context.Context, id string) (State, error)
}

type FetcherFunc func(ctx context.Context, id string) (State, error)

func (f FetcherFunc) FetchState(ctx context.Context, id string) (State, error) {
	return f(ctx, id)
}

// Observer is told about every status fetch that returned a state.
type Observer interface {
	ObservePoll(id string, status Status, attempt int)
}

// Tracker polls an operation until it reaches a terminal state. Between
// InProgress answers it waits Interval on a timer; After replaces the timer in
// tests.
type Tracker struct {
	Fetcher  Fetcher
	Interval time.Duration
	After    func(time.Duration) <-chan time.Time
	Observer Observer
}

func (t Tracker) Wait(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return faults.NewTypedError(faults.ValidationError, "operation id is required", nil)
	}
	if t.Fetcher == nil {
		return faults.NewTypedError(faults.InternalError, "operation tracker has no status fetcher", nil)
	}

	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := debugctx.Logger(ctx).WithValues("operation", id)
	for attempt := 1; ; attempt++ {
		state, err := t.poll(ctx, id, attempt)
		if err != nil {
			logger.V(debugctx.LevelDebug).Info("operation status unknown", "attempt", attempt, "error", err.Error())
			return faults.NewTypedError(faults.TransportError, statusUnknownMessage, err)
		}
		logger.V(debugctx.LevelDebug).Info("operation status", "attempt", attempt, "status", string(state.Status))

		if t.Observer != nil {
			t.Observer.ObservePoll(id, state.Status, attempt)
		}

		switch state.Status {
		case StatusSucceeded:
			return nil
		case StatusFailed:
			return failedError(state)
		case StatusInProgress:
		default:
			return faults.NewTypedError(
				faults.ProtocolError,
				fmt.Sprintf("unexpected operation status %q; confirm the status on the management portal", state.Status),
				nil,
			)
		}

		if err := t.sleep(ctx, interval); err != nil {
			return faults.NewTypedError(faults.TransportError, statusUnknownMessage, err)
		}
	}
}

// Track runs Wait in its own goroutine and reports the outcome exactly once.
func (t Tracker) Track(ctx context.Context, id string, done func(error)) {
	go func() {
		err := t.Wait(ctx, id)
		if done != nil {
			done(err)
		}
	}()
}

func (t Tracker) poll(ctx context.Context, id string, attempt int) (State, error) {
	ctx, span := otel.Tracer("github.com/crmarques/mobilectl/operation").Start(ctx, "mobilectl.operation.poll")
	defer span.End()
	span.SetAttributes(attribute.String("mobilectl.operation_id", id), attribute.Int("mobilectl.attempt", attempt))

	state, err := t.Fetcher.FetchState(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return State{}, err
	}
	span.SetAttributes(attribute.String("mobilectl.operation_status", string(state.Status)))
	return state, nil
}

func (t Tracker) sleep(ctx context.Context, interval time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.After != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.After(interval):
			return nil
		}
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failedError(state State) error {
	detail := strings.TrimSpace(state.ErrorMessage)
	if code := strings.TrimSpace(state.ErrorCode); code != "" {
		detail = strings.TrimSpace(code + ": " + detail)
	}
	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	return faults.NewTypedError(faults.OperationFailedError, failedMessage, cause)
}
