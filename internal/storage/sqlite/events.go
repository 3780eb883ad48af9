package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/syndicate/internal/models"
)

// AppendEvent inserts an event into the journal.
func (s *txState) AppendEvent(ctx context.Context, e *models.Event) error {
	res, err := s.tx.ExecContext(ctx,
		`INSERT INTO events (kind, payment_idx, participant, counterparty, amount, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.PaymentIndex, e.Participant, e.Counterparty, e.Amount, e.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event sequence: %w", err)
	}
	e.Seq = seq
	return nil
}

// ListEvents retrieves events after the given sequence number in order.
func (s *txState) ListEvents(ctx context.Context, after int64, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.tx.QueryContext(ctx,
		`SELECT seq, kind, payment_idx, participant, counterparty, amount, at
		 FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		var kind string
		if err := rows.Scan(&e.Seq, &kind, &e.PaymentIndex, &e.Participant, &e.Counterparty, &e.Amount, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = models.EventKind(kind)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}
