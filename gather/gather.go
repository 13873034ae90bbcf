package gather

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/crmarques/mobilectl/faults"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrent bounds how many tasks of one All call run at the same time.
const MaxConcurrent = 8

type Task func(ctx context.Context) (any, error)

type Outcome struct {
	Value any
	Err   error
}

// All runs every task concurrently and returns once each one has finished.
// A failing task does not cancel its siblings; its error is kept in its
// Outcome.
func All(ctx context.Context, tasks map[string]Task) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(MaxConcurrent)

	for _, name := range sortedNames(tasks) {
		name := name
		task := tasks[name]
		group.Go(func() error {
			value, err := runTask(ctx, task)
			mu.Lock()
			outcomes[name] = Outcome{Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return outcomes
}

// Join returns the errors of the named outcomes joined in name order, or nil.
func Join(outcomes map[string]Outcome) error {
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := outcomes[name].Err; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func runTask(ctx context.Context, task Task) (value any, err error) {
	if task == nil {
		return nil, faults.NewTypedError(faults.InternalError, "task is nil", nil)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = faults.NewTypedError(faults.InternalError, fmt.Sprintf("task panicked: %v", recovered), nil)
		}
	}()
	return task(ctx)
}

func sortedNames(tasks map[string]Task) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
