package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/swuota-server/swuota-server/internal/models"
)

// PostgresStore implements Store for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

const eventsSchema = `
CREATE TABLE IF NOT EXISTS dm_events (
	id          UUID PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	device_id   TEXT NOT NULL,
	login       TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	level       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	details     JSONB
);
CREATE INDEX IF NOT EXISTS dm_events_device_idx ON dm_events (device_id, created_at DESC);
`

// NewPostgresStore creates a new PostgreSQL store and ensures the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Configure applies pool settings.
func (s *PostgresStore) Configure(maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		s.db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		s.db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		s.db.SetConnMaxLifetime(maxLifetime)
	}
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveEvent persists one session event
func (s *PostgresStore) SaveEvent(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO dm_events (
			id, created_at, device_id, login, type, level, description, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.DeviceID, event.Login,
		event.Type, event.Level, event.Description, event.Details,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents lists events newest first, optionally filtered by device
func (s *PostgresStore) ListEvents(ctx context.Context, deviceID string, limit, offset int) ([]*models.Event, int64, error) {
	countQuery := "SELECT COUNT(*) FROM dm_events"
	query := `
		SELECT id, created_at, device_id, login, type, level, description, details
		FROM dm_events`

	args := []interface{}{}
	if deviceID != "" {
		countQuery += " WHERE device_id = $1"
		query += " WHERE device_id = $1"
		args = append(args, deviceID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.DeviceID, &e.Login,
			&e.Type, &e.Level, &e.Description, &e.Details); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
