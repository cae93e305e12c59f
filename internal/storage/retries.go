package storage

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

const defaultMaxAttempts = 5

// retryBackoff is the delay before the next attempt after the given number
// of failures.
func retryBackoff(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * time.Second
}

// EnqueueRetry stores a pending retry job. Empty ID and zero times are
// filled in; MaxAttempts defaults to 5.
func (s *Store) EnqueueRetry(job RetryJob) error {
	now := time.Now().UTC()
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO retry_jobs (id, type, correlation_id, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.CorrelationID, job.PayloadJSON, job.MaxAttempts,
		job.RunAfter.UTC().Format(timeLayout), job.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("enqueuing retry %s: %w", job.ID, err)
	}
	return nil
}

const retryColumns = `id, type, correlation_id, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

// ClaimNextRetry marks the oldest due pending job of one of the given types
// as running and returns it. It returns nil when nothing is due.
func (s *Store) ClaimNextRetry(types []string) (*RetryJob, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(timeLayout)
	query := `SELECT ` + retryColumns + ` FROM retry_jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := scanRetryJob(tx.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next retry: %w", err)
	}

	res, err := tx.Exec(`UPDATE retry_jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("updating retry status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = RetryRunning
	return &j, nil
}

// CompleteRetry marks a job as done.
func (s *Store) CompleteRetry(id string) error {
	res, err := s.db.Exec(`UPDATE retry_jobs SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailRetry records a failed attempt. The job is rescheduled with
// exponential backoff until it reaches its attempt limit, then marked failed.
func (s *Store) FailRetry(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM retry_jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE retry_jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(timeLayout), id)
	} else {
		runAfter := now.Add(retryBackoff(attempts))
		_, err = tx.Exec(`UPDATE retry_jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(timeLayout), now.Format(timeLayout), id)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetRetry returns one job.
func (s *Store) GetRetry(id string) (RetryJob, error) {
	j, err := scanRetryJob(s.db.QueryRow(`SELECT `+retryColumns+` FROM retry_jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return RetryJob{}, ErrNotFound
	}
	return j, err
}

// ListRetries returns jobs newest first. An empty status lists all.
func (s *Store) ListRetries(status string, limit int) ([]RetryJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + retryColumns + ` FROM retry_jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []RetryJob
	for rows.Next() {
		j, err := scanRetryJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanRetryJob(row rowScanner) (RetryJob, error) {
	var j RetryJob
	var runAfter, createdAt, updatedAt string
	if err := row.Scan(&j.ID, &j.Type, &j.CorrelationID, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &j.LastError); err != nil {
		return RetryJob{}, err
	}
	var err error
	if j.RunAfter, err = time.Parse(timeLayout, runAfter); err != nil {
		return RetryJob{}, fmt.Errorf("parsing run_after: %w", err)
	}
	if j.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return RetryJob{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return RetryJob{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return j, nil
}
