package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSource reads a ledger snapshot from the case_events table
// (see migrations/). Rows are ordered by event date with the insert id
// as tie-break, matching the input-order tie-break of file sources.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a Postgres-backed ledger source.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load queries all case events. Query failures are fatal; rows that
// fail validation (unknown event type, null-ish id) are skipped and
// counted like any other row fault.
func (s *PostgresSource) Load(ctx context.Context) (*LoadResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, event_type, to_char(event_date, 'YYYY-MM-DD')
		FROM case_events
		ORDER BY event_date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query case_events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &LoadResult{Skipped: make(map[SkipReason]int)}
	for rows.Next() {
		var entityID, eventType, date string
		if err := rows.Scan(&entityID, &eventType, &date); err != nil {
			return nil, fmt.Errorf("scan case_events row: %w", err)
		}
		result.validateRow(entityID, eventType, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case_events: %w", err)
	}

	return result, nil
}

// Insert appends one event row. Used by ingestion tooling and tests;
// the engine itself never writes to the ledger.
func (s *PostgresSource) Insert(ctx context.Context, entityID string, typ EventType, date string) error {
	day, err := ParseDate(date)
	if err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_events (entity_id, event_type, event_date)
		VALUES ($1, $2, $3)
	`, entityID, string(typ), DayString(day))
	if err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}
