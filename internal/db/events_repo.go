package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
)

// EventRecord is a persisted launcher event.
type EventRecord struct {
	ID         string    `db:"id" json:"id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Source     string    `db:"source" json:"source"`
	ServiceKey string    `db:"service_key" json:"service_key,omitempty"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Data       string    `db:"data" json:"data,omitempty"`
}

// EventRepository records bus events for later inspection.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates an event repository.
func NewEventRepository(database *DB) *EventRepository {
	return &EventRepository{db: database}
}

// Record persists one event.
func (r *EventRepository) Record(ctx context.Context, event events.Event) error {
	data := "{}"
	if event.Data != nil {
		if encoded, err := json.Marshal(event.Data); err == nil {
			data = string(encoded)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, source, service_key, timestamp, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.Source, event.ServiceKey(), event.Timestamp, data)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseQuery, "Failed to record event", err)
	}
	return nil
}

// Recent returns up to limit events, newest first, optionally filtered by
// event type pattern (exact) and service key.
func (r *EventRepository) Recent(ctx context.Context, limit int, eventType, serviceKey string) ([]EventRecord, error) {
	query := `SELECT id, event_type, source, service_key, timestamp, data FROM events`
	conditions := []string{}
	args := []interface{}{}

	if eventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, eventType)
	}
	if serviceKey != "" {
		conditions = append(conditions, "service_key = ?")
		args = append(args, serviceKey)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	var records []EventRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, "Failed to query events", err)
	}
	return records, nil
}

// Prune deletes events older than the cutoff.
func (r *EventRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabaseQuery, "Failed to prune events", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
