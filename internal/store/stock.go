package store

import (
	"context"
	"fmt"
)

// ReserveStock decrements stock iff at least quantity is available.
// The check and the decrement are one conditional UPDATE, so two racing
// reservations can never both succeed against the same units.
func (s *Store) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1",
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseStock unconditionally returns quantity units to stock
func (s *Store) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}
