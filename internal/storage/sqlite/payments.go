package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/syndicate/internal/models"
	"github.com/mmynk/syndicate/internal/storage"
)

// PaymentCount returns the number of payments in the registry.
func (s *txState) PaymentCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// GetPayment retrieves a payment by index, including its forked children.
func (s *txState) GetPayment(ctx context.Context, index int64) (*models.Payment, error) {
	p := &models.Payment{}
	var parent sql.NullInt64

	err := s.tx.QueryRowContext(ctx,
		`SELECT idx, creator, receiver, value, start_time, duration, paid_to_date,
		        vest_base, vest_from, is_fork, parent_idx
		 FROM payments WHERE idx = ?`,
		index,
	).Scan(&p.Index, &p.Creator, &p.Receiver, &p.Value, &p.StartTime, &p.Duration, &p.PaidToDate,
		&p.VestBase, &p.VestFrom, &p.IsFork, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", index, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if parent.Valid {
		p.ParentIndex = parent.Int64
	}

	// Get children in fork order
	rows, err := s.tx.QueryContext(ctx,
		"SELECT child_idx FROM payment_children WHERE parent_idx = ? ORDER BY position",
		index,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get forked children: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("failed to scan forked child: %w", err)
		}
		p.ForkedChildren = append(p.ForkedChildren, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forked children: %w", err)
	}

	return p, nil
}

// AppendPayment inserts p at the next dense index.
func (s *txState) AppendPayment(ctx context.Context, p *models.Payment) error {
	index, err := s.PaymentCount(ctx)
	if err != nil {
		return err
	}

	var parent any
	if p.IsFork {
		parent = p.ParentIndex
	}

	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO payments (idx, creator, receiver, value, start_time, duration, paid_to_date,
		                       vest_base, vest_from, is_fork, parent_idx)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		index, p.Creator, p.Receiver, p.Value, p.StartTime, p.Duration, p.PaidToDate,
		p.VestBase, p.VestFrom, p.IsFork, parent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	p.Index = index
	return nil
}

// UpdatePayment writes back the mutable fields of a payment. Children already
// stored are kept; new entries at the tail of ForkedChildren are appended.
func (s *txState) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res, err := s.tx.ExecContext(ctx,
		`UPDATE payments SET value = ?, paid_to_date = ?, vest_base = ?, vest_from = ?
		 WHERE idx = ?`,
		p.Value, p.PaidToDate, p.VestBase, p.VestFrom, p.Index,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated payment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %d: %w", p.Index, storage.ErrNotFound)
	}

	var stored int
	err = s.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payment_children WHERE parent_idx = ?", p.Index,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to count forked children: %w", err)
	}
	if stored > len(p.ForkedChildren) {
		return fmt.Errorf("payment %d: forked children cannot shrink (%d stored, %d given)",
			p.Index, stored, len(p.ForkedChildren))
	}

	for pos := stored; pos < len(p.ForkedChildren); pos++ {
		_, err = s.tx.ExecContext(ctx,
			"INSERT INTO payment_children (parent_idx, position, child_idx) VALUES (?, ?, ?)",
			p.Index, pos, p.ForkedChildren[pos],
		)
		if err != nil {
			return fmt.Errorf("failed to insert forked child: %w", err)
		}
	}

	return nil
}
