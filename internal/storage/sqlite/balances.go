package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Balance returns a participant's balance, 0 if none was ever credited.
func (s *txState) Balance(ctx context.Context, participant uuid.UUID) (int64, error) {
	var amount int64
	err := s.tx.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE participant = ?", participant,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// SetBalance upserts a participant's balance. Entries are zeroed, never deleted.
func (s *txState) SetBalance(ctx context.Context, participant uuid.UUID, amount int64) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO balances (participant, amount) VALUES (?, ?)
		 ON CONFLICT(participant) DO UPDATE SET amount = excluded.amount`,
		participant, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}
