package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome records one side-effect attempt made after a lifecycle event.
type Outcome struct {
	ID         int64
	RequestID  string
	Subscriber string
	Event      string
	OK         bool
	Detail     string
	RecordedAt time.Time
}

// OutcomeRepository persists side-effect outcomes.
type OutcomeRepository struct {
	db *DB
}

func NewOutcomeRepository(db *DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// RecordOutcome appends an outcome. RecordedAt defaults to now.
func (r *OutcomeRepository) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.RequestID == "" || o.Subscriber == "" {
		return errors.New("outcome request id and subscriber are required")
	}
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}

	err := withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO outcomes (request_id, subscriber, event, ok, detail, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, o.RequestID, o.Subscriber, o.Event, boolToInt(o.OK), nullString(o.Detail), formatTime(o.RecordedAt))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the outcomes of a request in recording order.
func (r *OutcomeRepository) ListOutcomes(ctx context.Context, requestID string) ([]Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, subscriber, event, ok, detail, recorded_at
		FROM outcomes
		WHERE request_id = ?
		ORDER BY id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// LatestOutcome returns the most recent outcome of subscriber for the
// request, or ErrNotFound.
func (r *OutcomeRepository) LatestOutcome(ctx context.Context, requestID, subscriber string) (Outcome, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, request_id, subscriber, event, ok, detail, recorded_at
		FROM outcomes
		WHERE request_id = ? AND subscriber = ?
		ORDER BY id DESC
		LIMIT 1
	`, requestID, subscriber)
	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Outcome{}, fmt.Errorf("outcome of %s for %s: %w", subscriber, requestID, ErrNotFound)
	}
	return o, err
}

func scanOutcome(s rowScanner) (Outcome, error) {
	var (
		o          Outcome
		ok         int
		detail     sql.NullString
		recordedAt string
	)
	if err := s.Scan(&o.ID, &o.RequestID, &o.Subscriber, &o.Event, &ok, &detail, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("failed to scan outcome: %w", err)
	}
	o.OK = ok != 0
	o.Detail = detail.String

	t, err := parseTime(recordedAt)
	if err != nil {
		return Outcome{}, err
	}
	o.RecordedAt = t
	return o, nil
}
