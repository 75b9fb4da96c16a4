package service

import (
	"context"
	"errors"
	"fmt"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// StockMirror is the read-side copy of product stock
type StockMirror interface {
	SetStock(ctx context.Context, productID int64, available int) error
	GetStock(ctx context.Context, productID int64) (int, bool, error)
}

// Availability is a product's stock as seen by readers
type Availability struct {
	ProductID int64  `json:"product_id"`
	Available int    `json:"available"`
	Source    string `json:"source"`
}

// InventoryService serves stock reads from the mirror, falling back to the database.
// The mirror never authorises a reservation; the stock ledger does.
type InventoryService struct {
	repo   store.Repository
	mirror StockMirror
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service. mirror may be nil.
func NewInventoryService(repo store.Repository, mirror StockMirror) *InventoryService {
	return &InventoryService{
		repo:   repo,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// GetAvailability returns the stock available for a product
func (s *InventoryService) GetAvailability(ctx context.Context, productID int64) (*Availability, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetAvailability")
	defer span.End()

	if s.mirror != nil {
		available, ok, err := s.mirror.GetStock(ctx, productID)
		if err != nil {
			s.logger.Warn("Inventory mirror read failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if ok {
			return &Availability{ProductID: productID, Available: available, Source: "cache"}, nil
		}
	}

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("InventoryService.GetAvailability", "product", productID)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &Availability{ProductID: productID, Available: product.StockQuantity, Source: "database"}, nil
}

// SyncMirror copies every product's stock from the database into the mirror
func (s *InventoryService) SyncMirror(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	s.logger.Info("Starting inventory sync to Redis")

	products, err := s.repo.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	synced := 0
	for _, product := range products {
		if err := s.mirror.SetStock(ctx, product.ID, product.StockQuantity); err != nil {
			s.logger.Error("Failed to init Redis inventory",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
			continue
		}
		synced++
	}

	s.logger.Info("Inventory sync completed", zap.Int("count", synced), zap.Int("products", len(products)))
	return nil
}

// GetProduct loads a product with its category for projection
func (s *InventoryService) GetProduct(ctx context.Context, productID int64) (*models.Product, *models.Category, error) {
	const op = "InventoryService.GetProduct"
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.NotFound(op, "product", productID)
		}
		return nil, nil, fmt.Errorf("failed to load product: %w", err)
	}
	category, err := s.repo.GetCategoryByID(ctx, product.CategoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load category: %w", err)
	}
	return product, category, nil
}
