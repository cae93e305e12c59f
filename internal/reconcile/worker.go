package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/baseplus/skinquiz/internal/quiz"
	"github.com/baseplus/skinquiz/internal/records"
	"github.com/baseplus/skinquiz/internal/storage"
)

// Queue abstracts the retry job queue.
type Queue interface {
	ClaimNextRetry(types []string) (*storage.RetryJob, error)
	CompleteRetry(id string) error
	FailRetry(id string, errMsg string) error
}

// Tracker sends analytics events.
type Tracker interface {
	Track(ctx context.Context, e records.Event) error
}

// RecordWriter writes the database side records.
type RecordWriter interface {
	SaveProduct(ctx context.Context, rec records.DatabaseRecord) error
	SaveQuiz(ctx context.Context, correlationID string, questions []quiz.Question) error
	UpdateSerumMetadata(ctx context.Context, serumID int, correlationID string) error
}

// Worker drains the retry queue.
type Worker struct {
	queue       Queue
	tracker     Tracker
	records     RecordWriter
	poll        time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker. A non-positive pollInterval defaults to 5s.
func NewWorker(queue Queue, tracker Tracker, rec RecordWriter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		queue:       queue,
		tracker:     tracker,
		records:     rec,
		poll:        pollInterval,
		callTimeout: 15 * time.Second,
		logger:      slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("reconcile iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It reports whether a job was
// processed, whatever its result.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNextRetry(JobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	logger := w.logger.With("job_id", job.ID, "type", job.Type, "correlation_id", job.CorrelationID)

	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	if err := w.process(callCtx, job); err != nil {
		logger.Warn("retry failed", "attempt", job.Attempts+1, "error", err)
		if failErr := w.queue.FailRetry(job.ID, err.Error()); failErr != nil {
			logger.Error("failed to mark retry as failed", "error", failErr)
		}
		return true, nil
	}

	if err := w.queue.CompleteRetry(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	logger.Info("side record reconciled")
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *storage.RetryJob) error {
	switch job.Type {
	case JobAnalytics:
		var p analyticsPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		if !p.Tracked {
			if err := w.tracker.Track(ctx, p.Event); err != nil {
				return err
			}
		}
		return w.records.SaveProduct(ctx, p.Record)

	case JobQuiz:
		var p quizPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.records.SaveQuiz(ctx, job.CorrelationID, p.Questions)

	case JobSerumMeta:
		var p serumMetaPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.records.UpdateSerumMetadata(ctx, p.SerumID, job.CorrelationID)

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
