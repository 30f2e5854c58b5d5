package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/webpagetest/internal/migrations"
	"github.com/studiowebux/webpagetest/internal/types"
)

// Stored in UTC; the driver parses DATETIME columns back into time.Time
const timestampLayout = "2006-01-02 15:04:05.000"

// Manager keeps a log of remote calls in a sqlite database. The CLI and the
// proxy server open it on ":memory:" so nothing outlives the process.
type Manager struct {
	db *sql.DB
}

// NewManager opens the call log at dsn and brings its schema up to date
func NewManager(dsn string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Record stores one call entry
func (m *Manager) Record(entry types.CallLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO calls (
			timestamp, command, url, status, duration_ms, response_size, dry_run, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		entry.Timestamp.UTC().Format(timestampLayout),
		entry.Command,
		entry.URL,
		entry.Status,
		entry.Duration,
		entry.ResponseSize,
		entry.DryRun,
		nullString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save call entry: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. An empty command matches all.
func (m *Manager) Recent(command string, limit int) ([]types.CallLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, command, url, status, duration_ms, response_size, dry_run, error
		FROM calls
		WHERE ? = '' OR command = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, command, command, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load call log: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

// Stats returns the number of calls per command
func (m *Manager) Stats() (map[string]int, error) {
	rows, err := m.db.Query(`SELECT command, COUNT(*) FROM calls GROUP BY command`)
	if err != nil {
		return nil, fmt.Errorf("failed to load call stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var command string
		var count int
		if err := rows.Scan(&command, &count); err != nil {
			return nil, fmt.Errorf("failed to scan call stats: %w", err)
		}
		stats[command] = count
	}
	return stats, rows.Err()
}

// Clear removes every entry
func (m *Manager) Clear() error {
	if _, err := m.db.Exec("DELETE FROM calls"); err != nil {
		return fmt.Errorf("failed to clear call log: %w", err)
	}
	return nil
}

// Close releases the database
func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) scanEntries(rows *sql.Rows) ([]types.CallLog, error) {
	var entries []types.CallLog

	for rows.Next() {
		var (
			entry    types.CallLog
			errorMsg sql.NullString
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Command,
			&entry.URL,
			&entry.Status,
			&entry.Duration,
			&entry.ResponseSize,
			&entry.DryRun,
			&errorMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call entry: %w", err)
		}

		entry.Timestamp = entry.Timestamp.Local()
		entry.Error = errorMsg.String

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
