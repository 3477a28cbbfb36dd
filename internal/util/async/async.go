package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Run executes tasks concurrently, at most limit at a time, and waits for
// all of them. A limit of zero or less runs every task at once.
//
// Tasks share ctx but are not cancelled when a sibling fails; the errors of
// all failed tasks are joined, each prefixed with the task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "cluster-a", Func: createA},
//	    {Name: "cluster-b", Func: createB},
//	}
//	if err := Run(ctx, tasks, 4); err != nil {
//	    return err
//	}
func Run(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu   sync.Mutex
		errs = make([]error, len(tasks))
	)
	for i, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
