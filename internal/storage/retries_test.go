package storage

import (
	"errors"
	"testing"
	"time"
)

func TestRetryLifecycle(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueRetry(RetryJob{ID: "r1", Type: "quiz", CorrelationID: "corr-1", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueRetry: %v", err)
	}

	job, err := s.ClaimNextRetry([]string{"quiz"})
	if err != nil {
		t.Fatalf("ClaimNextRetry: %v", err)
	}
	if job == nil || job.ID != "r1" || job.Status != RetryRunning || job.MaxAttempts != 5 {
		t.Fatalf("claimed %+v", job)
	}

	again, err := s.ClaimNextRetry([]string{"quiz"})
	if err != nil {
		t.Fatalf("ClaimNextRetry: %v", err)
	}
	if again != nil {
		t.Errorf("claimed a running job twice: %+v", again)
	}

	if err := s.CompleteRetry("r1"); err != nil {
		t.Fatalf("CompleteRetry: %v", err)
	}
	got, err := s.GetRetry("r1")
	if err != nil {
		t.Fatalf("GetRetry: %v", err)
	}
	if got.Status != RetryCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

func TestClaimNextRetry_FiltersType(t *testing.T) {
	s := openTestStore(t)
	s.EnqueueRetry(RetryJob{ID: "r1", Type: "analytics", CorrelationID: "c", PayloadJSON: `{}`})

	job, err := s.ClaimNextRetry([]string{"quiz", "serum_meta"})
	if err != nil {
		t.Fatalf("ClaimNextRetry: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job of another type: %+v", job)
	}
	if job, _ := s.ClaimNextRetry(nil); job != nil {
		t.Error("claimed with no types")
	}
}

func TestClaimNextRetry_RespectsRunAfter(t *testing.T) {
	s := openTestStore(t)
	s.EnqueueRetry(RetryJob{ID: "later", Type: "quiz", CorrelationID: "c", PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)})

	job, err := s.ClaimNextRetry([]string{"quiz"})
	if err != nil {
		t.Fatalf("ClaimNextRetry: %v", err)
	}
	if job != nil {
		t.Errorf("claimed a job that is not due: %+v", job)
	}
}

func TestFailRetry_BackoffThenFailed(t *testing.T) {
	s := openTestStore(t)
	s.EnqueueRetry(RetryJob{ID: "r1", Type: "quiz", CorrelationID: "c", PayloadJSON: `{}`, MaxAttempts: 2})

	if err := s.FailRetry("r1", "db down"); err != nil {
		t.Fatalf("FailRetry: %v", err)
	}
	got, _ := s.GetRetry("r1")
	if got.Status != RetryPending || got.Attempts != 1 || got.LastError != "db down" {
		t.Errorf("after first failure: %+v", got)
	}
	if !got.RunAfter.After(time.Now()) {
		t.Errorf("RunAfter = %v, want in the future", got.RunAfter)
	}

	if err := s.FailRetry("r1", "still down"); err != nil {
		t.Fatalf("FailRetry: %v", err)
	}
	got, _ = s.GetRetry("r1")
	if got.Status != RetryFailed || got.Attempts != 2 {
		t.Errorf("after last failure: %+v", got)
	}
}

func TestRetryNotFound(t *testing.T) {
	s := openTestStore(t)

	if err := s.FailRetry("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailRetry err = %v, want ErrNotFound", err)
	}
	if err := s.CompleteRetry("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteRetry err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRetry("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRetry err = %v, want ErrNotFound", err)
	}
}

func TestListRetries(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		s.EnqueueRetry(RetryJob{ID: id, Type: "quiz", CorrelationID: "c", PayloadJSON: `{}`, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	s.CompleteRetry("r2")

	all, err := s.ListRetries("", 0)
	if err != nil {
		t.Fatalf("ListRetries: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" {
		t.Errorf("got %+v", all)
	}

	pending, err := s.ListRetries(RetryPending, 10)
	if err != nil {
		t.Fatalf("ListRetries: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}
}
