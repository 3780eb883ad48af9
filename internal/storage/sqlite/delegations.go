package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

// GetDelegation returns the permissions owner granted to delegate.
func (s *txState) GetDelegation(ctx context.Context, owner, delegate uuid.UUID) (models.Delegation, error) {
	d := models.Delegation{Owner: owner, Delegate: delegate}
	err := s.tx.QueryRowContext(ctx,
		"SELECT can_fork, can_settle FROM delegations WHERE owner = ? AND delegate = ?",
		owner, delegate,
	).Scan(&d.CanFork, &d.CanSettle)
	if errors.Is(err, sql.ErrNoRows) {
		return d, nil
	}
	if err != nil {
		return models.Delegation{}, fmt.Errorf("failed to get delegation: %w", err)
	}
	return d, nil
}

// SetDelegation upserts a delegation entry.
func (s *txState) SetDelegation(ctx context.Context, d models.Delegation) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO delegations (owner, delegate, can_fork, can_settle) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, delegate) DO UPDATE SET can_fork = excluded.can_fork, can_settle = excluded.can_settle`,
		d.Owner, d.Delegate, d.CanFork, d.CanSettle,
	)
	if err != nil {
		return fmt.Errorf("failed to set delegation: %w", err)
	}
	return nil
}
