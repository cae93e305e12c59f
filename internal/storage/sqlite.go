// Package storage keeps a local SQLite ledger of checkout attempts so that
// side records which failed independently can be reconciled later.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger in dataDir and runs pending migrations.
// Pass ":memory:" for an in-memory database.
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "skinquiz.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and avoids
	// "database is locked" on concurrent sagas.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}
		if err := s.applyMigration(version, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(version int, name string) error {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
		return fmt.Errorf("checking migration %d: %w", version, err)
	}
	if exists > 0 {
		return nil
	}

	content, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("applying migration %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration %d: %w", version, err)
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Attempts ---

// SaveAttempt stores an attempt and its steps in one transaction.
func (s *Store) SaveAttempt(a Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO checkout_attempts (id, correlation_id, product_type, outcome, checkout_url, error_code, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CorrelationID, a.ProductType, a.Outcome, a.CheckoutURL,
		a.ErrorCode, a.ErrorMessage, a.DurationMs, a.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("inserting attempt %s: %w", a.ID, err)
	}

	for i, st := range a.Steps {
		if _, err := tx.Exec(`INSERT INTO attempt_steps (attempt_id, position, name, ok, error) VALUES (?, ?, ?, ?, ?)`,
			a.ID, i, st.Name, st.OK, st.Error,
		); err != nil {
			return fmt.Errorf("inserting step %s of attempt %s: %w", st.Name, a.ID, err)
		}
	}
	return tx.Commit()
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const attemptColumns = `id, correlation_id, product_type, outcome, checkout_url, error_code, error_message, duration_ms, created_at`

// GetAttempt returns one attempt with its steps.
func (s *Store) GetAttempt(id string) (Attempt, error) {
	row := s.db.QueryRow(`SELECT `+attemptColumns+` FROM checkout_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	if a.Steps, err = s.attemptSteps(a.ID); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// ListAttempts returns the most recent attempts, newest first. A non-empty
// correlationID restricts the list to one session.
func (s *Store) ListAttempts(correlationID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts`
	var args []any
	if correlationID != "" {
		query += ` WHERE correlation_id = ?`
		args = append(args, correlationID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Steps are loaded after the cursor is closed; the pool has one connection.
	for i := range attempts {
		if attempts[i].Steps, err = s.attemptSteps(attempts[i].ID); err != nil {
			return nil, err
		}
	}
	return attempts, nil
}

func (s *Store) attemptSteps(attemptID string) ([]AttemptStep, error) {
	rows, err := s.db.Query(`SELECT name, ok, error FROM attempt_steps WHERE attempt_id = ? ORDER BY position ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []AttemptStep{}
	for rows.Next() {
		var st AttemptStep
		if err := rows.Scan(&st.Name, &st.OK, &st.Error); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var createdAt string
	if err := row.Scan(&a.ID, &a.CorrelationID, &a.ProductType, &a.Outcome, &a.CheckoutURL,
		&a.ErrorCode, &a.ErrorMessage, &a.DurationMs, &createdAt); err != nil {
		return Attempt{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("parsing created_at: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}
