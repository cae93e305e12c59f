package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/baseplus/skinquiz/internal/quiz"
	"github.com/baseplus/skinquiz/internal/records"
	"github.com/baseplus/skinquiz/internal/storage"
)

type mockTracker struct {
	mu     sync.Mutex
	events []records.Event
	err    error
}

func (m *mockTracker) Track(_ context.Context, e records.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

type mockRecords struct {
	mu        sync.Mutex
	products  []records.DatabaseRecord
	quizzes   map[string][]quiz.Question
	serumMeta []int
	err       error
}

func newMockRecords() *mockRecords {
	return &mockRecords{quizzes: map[string][]quiz.Question{}}
}

func (m *mockRecords) SaveProduct(_ context.Context, rec records.DatabaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, rec)
	return m.err
}

func (m *mockRecords) SaveQuiz(_ context.Context, correlationID string, questions []quiz.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[correlationID] = questions
	return m.err
}

func (m *mockRecords) UpdateSerumMetadata(_ context.Context, serumID int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serumMeta = append(m.serumMeta, serumID)
	return m.err
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, store *storage.Store, job storage.RetryJob, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("building job: %v", err)
	}
	if err := store.EnqueueRetry(job); err != nil {
		t.Fatalf("EnqueueRetry: %v", err)
	}
	return job.ID
}

func TestRunOnce_EmptyQueue(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &mockTracker{}, newMockRecords(), time.Millisecond)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("RunOnce reported work on an empty queue")
	}
}

func TestRunOnce_QuizRetry(t *testing.T) {
	store := openTestStore(t)
	rec := newMockRecords()
	w := NewWorker(store, &mockTracker{}, rec, time.Millisecond)

	job, err := QuizJob("corr-1", []quiz.Question{{ID: 3, Answered: true, Question: "Skin type?"}})
	id := enqueue(t, store, job, err)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = %v, %v", done, err)
	}
	if qs := rec.quizzes["corr-1"]; len(qs) != 1 || qs[0].ID != 3 {
		t.Errorf("quiz written = %+v", rec.quizzes)
	}
	got, _ := store.GetRetry(id)
	if got.Status != storage.RetryCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

func TestRunOnce_AnalyticsSkipsTrackedEvent(t *testing.T) {
	store := openTestStore(t)
	tracker := &mockTracker{}
	rec := newMockRecords()
	w := NewWorker(store, tracker, rec, time.Millisecond)

	e := records.Event{Type: records.EventSerumAdded, DistinctID: "anon", SerumID: 555}
	dr := records.DatabaseRecord{RecommendedVariation: records.TextVariation("NightRepair"), ProductID: "corr-1"}
	job, err := AnalyticsJob("corr-1", true, e, dr)
	enqueue(t, store, job, err)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(tracker.events) != 0 {
		t.Errorf("event re-sent: %+v", tracker.events)
	}
	if len(rec.products) != 1 || rec.products[0].RecommendedVariation.Text != "NightRepair" {
		t.Errorf("records = %+v", rec.products)
	}
}

func TestRunOnce_AnalyticsResendsUntrackedEvent(t *testing.T) {
	store := openTestStore(t)
	tracker := &mockTracker{}
	w := NewWorker(store, tracker, newMockRecords(), time.Millisecond)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := records.Event{Type: records.EventSerumAdded, DistinctID: "anon", CorrelationID: "corr-1", At: at, SerumID: 555}
	job, err := AnalyticsJob("corr-1", false, e, records.DatabaseRecord{ProductID: "corr-1"})
	enqueue(t, store, job, err)

	w.RunOnce(context.Background())

	if len(tracker.events) != 1 || tracker.events[0].SerumID != 555 {
		t.Fatalf("events = %+v", tracker.events)
	}
	if got := tracker.events[0]; got.CorrelationID != "corr-1" || !got.At.Equal(at) {
		t.Errorf("replayed event lost its identity: %+v", got)
	}
}

func TestRunOnce_FailureReschedules(t *testing.T) {
	store := openTestStore(t)
	rec := newMockRecords()
	rec.err = errors.New("db down")
	w := NewWorker(store, &mockTracker{}, rec, time.Millisecond)

	job, err := SerumMetaJob("corr-1", 555)
	id := enqueue(t, store, job, err)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = %v, %v", done, err)
	}
	got, _ := store.GetRetry(id)
	if got.Status != storage.RetryPending || got.Attempts != 1 || got.LastError != "db down" {
		t.Errorf("job = %+v", got)
	}

	// Backoff keeps the job out of reach for now.
	done, _ = w.RunOnce(context.Background())
	if done {
		t.Error("claimed a job before its backoff elapsed")
	}
}

func TestRunOnce_UnknownType(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &mockTracker{}, newMockRecords(), time.Millisecond)

	job, err := QuizJob("corr-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.process(context.Background(), &storage.RetryJob{ID: job.ID, Type: "bogus", PayloadJSON: "{}"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	rec := newMockRecords()
	w := NewWorker(store, &mockTracker{}, rec, 10*time.Millisecond)

	job, err := SerumMetaJob("corr-1", 7)
	enqueue(t, store, job, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.serumMeta)
		rec.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
