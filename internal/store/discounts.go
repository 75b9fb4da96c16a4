package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// CreateDiscount inserts a discount; a taken code yields ErrDuplicate
func (s *Store) CreateDiscount(ctx context.Context, discount *models.Discount) error {
	query := `
		INSERT INTO discounts (code, percentage, expiry_date, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := s.q.GetContext(ctx, &discount.ID, query,
		discount.Code, discount.Percentage, discount.ExpiryDate, discount.CategoryID)
	if isUniqueViolation(err) {
		return fmt.Errorf("discount %q: %w", discount.Code, ErrDuplicate)
	}
	return err
}

// GetDiscountByCode retrieves a discount by its code
func (s *Store) GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	if err := s.getOne(ctx, &discount, fmt.Sprintf("discount %q", code),
		"SELECT id, code, percentage, expiry_date, category_id FROM discounts WHERE code = $1", code); err != nil {
		return nil, err
	}
	return &discount, nil
}

// GetDiscounts retrieves all discounts
func (s *Store) GetDiscounts(ctx context.Context) ([]models.Discount, error) {
	discounts := []models.Discount{}
	err := s.q.SelectContext(ctx, &discounts,
		"SELECT id, code, percentage, expiry_date, category_id FROM discounts ORDER BY id")
	return discounts, err
}

// DeleteDiscount removes a discount
func (s *Store) DeleteDiscount(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM discounts WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("discount %d: %w", id, ErrNotFound)
	}
	return nil
}
