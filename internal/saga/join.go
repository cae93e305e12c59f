package saga

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baseplus/skinquiz/internal/storage"
)

// Step names recorded for each saga call.
const (
	StepCreateProduct = "create_product"
	StepAnalytics     = "analytics"
	StepQuiz          = "quiz"
	StepSerumMeta     = "serum_meta"
	StepRedirect      = "redirect"
)

// StepResult is the settled outcome of one saga call.
type StepResult struct {
	Name string
	Err  error
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.Err == nil }

// Policy decides from the settled side-record results whether checkout
// may proceed.
type Policy func(results []StepResult) bool

// AnySucceeded lets checkout proceed when at least one side record was
// written. Side records are best effort and must not block the shopper.
func AnySucceeded(results []StepResult) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}

// AllSucceeded requires every side record to be written.
func AllSucceeded(results []StepResult) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return len(results) > 0
}

type task struct {
	name string
	run  func(ctx context.Context) error
	// retry builds the reconciliation job queued when run fails. It is
	// called after run has returned.
	retry func() (storage.RetryJob, error)
}

// settle runs every task concurrently and waits for all of them. A failing
// task never cancels its siblings; each result lands in its own slot.
func settle(ctx context.Context, timeout time.Duration, tasks []task) []StepResult {
	results := make([]StepResult, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i] = StepResult{Name: t.name, Err: t.run(callCtx)}
			return nil
		})
	}
	g.Wait()
	return results
}
