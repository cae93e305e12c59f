package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Attempt is one add-to-cart saga run. Attempts sharing a CorrelationID
// belong to the same quiz session.
type Attempt struct {
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlation_id"`
	ProductType   string        `json:"product_type"`
	Outcome       string        `json:"outcome"`
	CheckoutURL   string        `json:"checkout_url,omitempty"`
	ErrorCode     int           `json:"error_code,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	DurationMs    int64         `json:"duration_ms"`
	CreatedAt     time.Time     `json:"created_at"`
	Steps         []AttemptStep `json:"steps"`
}

// AttemptStep is the settled result of one network call within an attempt.
type AttemptStep struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Retry job statuses.
const (
	RetryPending   = "pending"
	RetryRunning   = "running"
	RetryCompleted = "completed"
	RetryFailed    = "failed"
)

// RetryJob is a side record that failed during checkout and is queued to
// be written again.
type RetryJob struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	PayloadJSON   string    `json:"payload"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	MaxAttempts   int       `json:"max_attempts"`
	RunAfter      time.Time `json:"run_after"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastError     string    `json:"last_error,omitempty"`
}
