// Package supervisor runs long-lived tasks together and stops all of them
// as soon as one exits.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrTaskExited is returned when a task returns nil while the group is
// still running. Every task is expected to run until cancelled.
var ErrTaskExited = errors.New("task exited")

// Task is a named long-running function.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run starts every task and waits for all of them. The first task to
// return, with or without an error, cancels the rest and its error is
// returned as "<name>: <err>". Tasks that stop because ctx was cancelled
// are not failures: if ctx is cancelled and no task failed, Run returns nil.
func Run(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		g.Go(func() error {
			err := task.Run(gctx)
			if gctx.Err() != nil && (err == nil || isCancellation(err)) {
				return nil
			}
			if err == nil {
				err = ErrTaskExited
			}
			return fmt.Errorf("%s: %w", task.Name, err)
		})
	}

	return g.Wait()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
