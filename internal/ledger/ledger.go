// Package ledger provides an append-only event history of learning sessions,
// AC status changes and aux-store fallbacks.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventLearnCompleted   EventType = "learn_completed"
	EventLearnFailed      EventType = "learn_failed"
	EventStatusApplied    EventType = "status_applied"
	EventStatusTimeout    EventType = "status_timeout"
	EventStatusFailed     EventType = "status_failed"
	EventFunctionFallback EventType = "function_fallback"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID         int64
	EventType  EventType
	Timestamp  time.Time
	Payload    map[string]any
	Source     string
	RemoteUUID string
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event for a remote to the ledger
func (l *Ledger) Append(eventType EventType, remoteUUID string, payload map[string]any) error {
	return l.AppendWithSource(eventType, remoteUUID, "", payload)
}

// AppendWithSource adds a new event and records which component produced it
// (cli, mqtt, daemon).
func (l *Ledger) AppendWithSource(eventType EventType, remoteUUID, source string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := l.now().UTC().Unix()

	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, payload, source, remote_uuid) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), now, string(payloadJSON), source, remoteUUID,
	)
	return err
}

// GetByType returns entries filtered by event type, newest first
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, remote_uuid
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByRemote returns the history of one remote, newest first
func (l *Ledger) GetByRemote(remoteUUID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, remote_uuid
		FROM event_ledger
		WHERE remote_uuid = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, remoteUUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByTimeRange returns entries within a time range
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, remote_uuid
		FROM event_ledger
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.Unix(), end.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var source, remoteUUID sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &payloadStr, &source, &remoteUUID,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if source.Valid {
			entry.Source = source.String
		}
		if remoteUUID.Valid {
			entry.RemoteUUID = remoteUUID.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
