package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devskill-org/dusk-lights/lighting"
)

const switchEventsSchema = `
	CREATE TABLE IF NOT EXISTS switch_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		policy TEXT NOT NULL,
		strategy TEXT NOT NULL,
		action TEXT NOT NULL,
		observed BOOLEAN,
		commanded BOOLEAN NOT NULL,
		dry_run BOOLEAN NOT NULL,
		sunrise TIMESTAMPTZ,
		sunset TIMESTAMPTZ,
		civil_dawn TIMESTAMPTZ,
		civil_dusk TIMESTAMPTZ,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS switch_events_timestamp_idx ON switch_events (timestamp);
`

// SwitchEvent is a stored lighting decision
type SwitchEvent struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Policy    string     `json:"policy"`
	Strategy  string     `json:"strategy"`
	Action    string     `json:"action"`
	Observed  *bool      `json:"observed,omitempty"`
	Commanded bool       `json:"commanded"`
	DryRun    bool       `json:"dry_run"`
	Sunrise   *time.Time `json:"sunrise,omitempty"`
	Sunset    *time.Time `json:"sunset,omitempty"`
	CivilDawn *time.Time `json:"civil_dawn,omitempty"`
	CivilDusk *time.Time `json:"civil_dusk,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ensureSchema creates the switch log table
func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, switchEventsSchema); err != nil {
		return fmt.Errorf("failed to create switch_events table: %w", err)
	}
	return nil
}

// newSwitchEvent flattens a decision into a switch log row
func newSwitchEvent(d lighting.Decision) SwitchEvent {
	e := SwitchEvent{
		Timestamp: d.Time,
		Policy:    d.Policy,
		Strategy:  d.Strategy,
		Action:    d.Action.String(),
		Observed:  d.Observed,
		Commanded: d.Commanded,
		DryRun:    d.DryRun,
		Error:     d.Error,
	}

	switch {
	case d.Events != nil:
		e.Sunrise = timePtr(d.Events.Sunrise)
		e.Sunset = timePtr(d.Events.Sunset)
		e.CivilDawn = timePtr(d.Events.CivilDawn)
		e.CivilDusk = timePtr(d.Events.CivilDusk)
	case d.Daylight != nil:
		e.Sunrise = timePtr(d.Daylight.Sunrise)
		e.Sunset = timePtr(d.Daylight.Sunset)
	}

	return e
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// saveSwitchEvent persists a decision to the switch log
func saveSwitchEvent(ctx context.Context, db *sql.DB, d lighting.Decision) error {
	if db == nil {
		return fmt.Errorf("database connection not available")
	}

	e := newSwitchEvent(d)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO switch_events (
			timestamp,
			policy,
			strategy,
			action,
			observed,
			commanded,
			dry_run,
			sunrise,
			sunset,
			civil_dawn,
			civil_dusk,
			error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		e.Timestamp,
		e.Policy,
		e.Strategy,
		e.Action,
		e.Observed,
		e.Commanded,
		e.DryRun,
		e.Sunrise,
		e.Sunset,
		e.CivilDawn,
		e.CivilDusk,
		sql.NullString{String: e.Error, Valid: e.Error != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to insert switch event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// loadSwitchEvents loads the most recent switch events recorded at or after since
func loadSwitchEvents(ctx context.Context, db *sql.DB, since time.Time, limit int) ([]SwitchEvent, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	rows, err := db.QueryContext(ctx, `
		SELECT
			id,
			timestamp,
			policy,
			strategy,
			action,
			observed,
			commanded,
			dry_run,
			sunrise,
			sunset,
			civil_dawn,
			civil_dusk,
			error
		FROM switch_events
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query switch events: %w", err)
	}
	defer rows.Close()

	events := []SwitchEvent{}
	for rows.Next() {
		var (
			e                                     SwitchEvent
			observed                              sql.NullBool
			sunrise, sunset, civilDawn, civilDusk sql.NullTime
			errText                               sql.NullString
		)
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Policy,
			&e.Strategy,
			&e.Action,
			&observed,
			&e.Commanded,
			&e.DryRun,
			&sunrise,
			&sunset,
			&civilDawn,
			&civilDusk,
			&errText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan switch event: %w", err)
		}

		if observed.Valid {
			e.Observed = &observed.Bool
		}
		e.Sunrise = nullTime(sunrise)
		e.Sunset = nullTime(sunset)
		e.CivilDawn = nullTime(civilDawn)
		e.CivilDusk = nullTime(civilDusk)
		e.Error = errText.String

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating switch events: %w", err)
	}

	return events, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// GetSwitchEvents returns the switch log recorded at or after since
func (s *LightScheduler) GetSwitchEvents(ctx context.Context, since time.Time, limit int) ([]SwitchEvent, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	return loadSwitchEvents(ctx, db, since, limit)
}
