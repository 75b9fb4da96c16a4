package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// dbtx is the query surface shared by *sqlx.DB and *sqlx.Tx
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Store struct {
	db *sqlx.DB
	q  dbtx
}

var _ Repository = (*Store)(nil)

// NewStore connects to Postgres. Non-positive pool sizes keep the driver defaults.
func NewStore(databaseURL string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn against a store bound to a single transaction
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return txConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return txConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// txConflict turns a deadlock or serialization failure into a conflict the
// caller may retry. Any other error is returned unchanged.
func txConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40P01", "40001":
		return &apperr.Error{
			Code:    apperr.ECONFLICT,
			Op:      "Store.WithTx",
			Message: "The request conflicted with a concurrent update. Please try again",
			Err:     err,
		}
	}
	return err
}

// getOne runs a single-row query and maps sql.ErrNoRows to ErrNotFound
func (s *Store) getOne(ctx context.Context, dest interface{}, what string, query string, args ...interface{}) error {
	err := s.q.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.getOne(ctx, &product, fmt.Sprintf("product %d", id),
		"SELECT * FROM products WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductForUpdate retrieves a product and locks its row until the transaction ends
func (s *Store) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.getOne(ctx, &product, fmt.Sprintf("product %d", id),
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.q.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	if err := s.getOne(ctx, &category, fmt.Sprintf("category %d", id),
		"SELECT id, name, description FROM categories WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.getOne(ctx, &user, fmt.Sprintf("user %d", id),
		"SELECT id, username, email, is_staff, is_banned, created_at, updated_at FROM users WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GrantStaff marks the named users as staff. Users already staff are untouched.
func (s *Store) GrantStaff(ctx context.Context, usernames []string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET is_staff = TRUE, updated_at = NOW() WHERE username = ANY($1) AND NOT is_staff",
		pq.Array(usernames))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
