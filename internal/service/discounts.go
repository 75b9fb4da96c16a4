package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// CreateDiscountRequest is the payload for a new discount code
type CreateDiscountRequest struct {
	Code       string          `json:"code" validate:"required,max=50"`
	Percentage decimal.Decimal `json:"percentage"`
	ExpiryDate time.Time       `json:"expiry_date" validate:"required"`
	CategoryID int64           `json:"category" validate:"required,gt=0"`
}

// DiscountCatalog maps codes to category-scoped percentage discounts
type DiscountCatalog struct {
	repo     store.Repository
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

// NewDiscountCatalog creates a new discount catalog
func NewDiscountCatalog(repo store.Repository) *DiscountCatalog {
	return &DiscountCatalog{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// Lookup finds a discount by code
func (c *DiscountCatalog) Lookup(ctx context.Context, q store.Querier, code string) (*models.Discount, error) {
	discount, err := q.GetDiscountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("DiscountCatalog.Lookup", "discount", code)
		}
		return nil, fmt.Errorf("failed to look up discount: %w", err)
	}
	return discount, nil
}

// IsValid reports whether the discount has not yet expired
func (c *DiscountCatalog) IsValid(discount *models.Discount) bool {
	return discount.IsValid(c.now())
}

// Create stores a new discount; staff only
func (c *DiscountCatalog) Create(ctx context.Context, principal *models.User, req *CreateDiscountRequest) (*models.Discount, error) {
	const op = "DiscountCatalog.Create"
	ctx, span := util.StartSpan(ctx, op)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if !principal.IsStaff {
		err = apperr.Forbidden(op, "Only staff can manage discounts")
		return nil, err
	}

	req.Code = strings.TrimSpace(req.Code)
	if verr := c.validate.Struct(req); verr != nil {
		err = apperr.Invalid(op, "%s", validationMessage(verr))
		return nil, err
	}
	if req.Percentage.IsNegative() || req.Percentage.GreaterThan(hundred) {
		err = apperr.Invalid(op, "Percentage must be between 0 and 100")
		return nil, err
	}

	if _, cerr := c.repo.GetCategoryByID(ctx, req.CategoryID); cerr != nil {
		if errors.Is(cerr, store.ErrNotFound) {
			err = apperr.NotFound(op, "category", req.CategoryID)
			return nil, err
		}
		err = fmt.Errorf("failed to load category: %w", cerr)
		return nil, err
	}

	discount := &models.Discount{
		Code:       req.Code,
		Percentage: req.Percentage,
		ExpiryDate: req.ExpiryDate,
		CategoryID: req.CategoryID,
	}
	if cerr := c.repo.CreateDiscount(ctx, discount); cerr != nil {
		if errors.Is(cerr, store.ErrDuplicate) {
			err = apperr.Conflict(op, "Discount code %q already exists", req.Code)
			return nil, err
		}
		err = fmt.Errorf("failed to create discount: %w", cerr)
		return nil, err
	}

	c.logger.Info("Discount created",
		zap.Int64("discount_id", discount.ID),
		zap.String("code", discount.Code),
		zap.Int64("created_by", principal.ID))
	return discount, nil
}

// List returns every discount; staff only
func (c *DiscountCatalog) List(ctx context.Context, principal *models.User) ([]models.Discount, error) {
	if !principal.IsStaff {
		return nil, apperr.Forbidden("DiscountCatalog.List", "Only staff can manage discounts")
	}
	discounts, err := c.repo.GetDiscounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	return discounts, nil
}

// Delete removes a discount; staff only
func (c *DiscountCatalog) Delete(ctx context.Context, principal *models.User, id int64) error {
	const op = "DiscountCatalog.Delete"
	if !principal.IsStaff {
		return apperr.Forbidden(op, "Only staff can manage discounts")
	}
	if err := c.repo.DeleteDiscount(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(op, "discount", id)
		}
		return fmt.Errorf("failed to delete discount: %w", err)
	}
	c.logger.Info("Discount deleted", zap.Int64("discount_id", id), zap.Int64("deleted_by", principal.ID))
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
