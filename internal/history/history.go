// Package history records completed sonifications in Postgres so users
// can revisit recent results. The store is optional: when no database is
// configured the service runs without it and the history endpoints report
// the feature as unavailable.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded sonification.
type Entry struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Kind        string    `json:"kind"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
	MediaID     string    `json:"mediaId"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists sonification history in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the history table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sonification_history (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			file_name    TEXT NOT NULL,
			kind         TEXT NOT NULL,
			row_count    INTEGER NOT NULL,
			column_count INTEGER NOT NULL,
			media_id     TEXT NOT NULL,
			duration_ms  BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Insert records a completed sonification.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sonification_history
			(file_name, kind, row_count, column_count, media_id, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		toText(e.FileName), toText(e.Kind),
		int32(e.RowCount), int32(e.ColumnCount),
		toText(e.MediaID), e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, kind, row_count, column_count, media_id,
		       duration_ms, created_at
		FROM sonification_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			id        pgtype.UUID
			rowCnt    int32
			colCnt    int32
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &e.FileName, &e.Kind, &rowCnt, &colCnt,
			&e.MediaID, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.ID = uuidString(id)
		e.RowCount = int(rowCnt)
		e.ColumnCount = int(colCnt)
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	v, err := u.Value()
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
