// Package inventory manages per-product stock rows. Stock only goes down
// through a sale transaction; this package creates rows and sets values.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

const DefaultLowStockThreshold = 5

// Store persists inventory rows. Every query joins products so rows are
// scoped to the business that owns the product.
type Store interface {
	ProductExists(ctx context.Context, businessID, productID uint) (bool, error)
	Create(ctx context.Context, inv *models.Inventory) error
	Get(ctx context.Context, businessID, productID uint) (*models.Inventory, error)
	Update(ctx context.Context, inv *models.Inventory, fields map[string]interface{}) error
	List(ctx context.Context, businessID uint) ([]models.Inventory, error)
	ListLow(ctx context.Context, businessID uint) ([]models.Inventory, error)
}

type CreateInput struct {
	QuantityAvailable int        `json:"quantity_available"`
	LowStockThreshold *int       `json:"low_stock_threshold"`
	ExpiryDate        *time.Time `json:"-"`
}

// UpdateInput sets the given fields; nil fields are left unchanged.
type UpdateInput struct {
	QuantityAvailable *int       `json:"quantity_available"`
	LowStockThreshold *int       `json:"low_stock_threshold"`
	ExpiryDate        *time.Time `json:"-"`
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create adds the one stock row a product may have.
func (s *Service) Create(ctx context.Context, businessID, productID uint, in CreateInput) (*models.Inventory, error) {
	ok, err := s.store.ProductExists(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}

	threshold := DefaultLowStockThreshold
	if in.LowStockThreshold != nil {
		threshold = *in.LowStockThreshold
	}
	if err := validate(&in.QuantityAvailable, &threshold); err != nil {
		return nil, err
	}

	if _, err := s.store.Get(ctx, businessID, productID); err == nil {
		return nil, apperr.Validation("Inventory already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	inv := &models.Inventory{
		ProductID:         productID,
		QuantityAvailable: in.QuantityAvailable,
		LowStockThreshold: threshold,
		ExpiryDate:        dateOnly(in.ExpiryDate),
	}
	if err := s.store.Create(ctx, inv); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Validation("Inventory already exists")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "inventory created", "business_id", businessID, "product_id", productID, "quantity", inv.QuantityAvailable)
	return inv, nil
}

// Update overwrites quantity, threshold or expiry. It is an adjustment, not a
// relative change, so it does not take the sale row lock.
func (s *Service) Update(ctx context.Context, businessID, productID uint, in UpdateInput) (*models.Inventory, error) {
	inv, err := s.store.Get(ctx, businessID, productID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Inventory not found")
		}
		return nil, err
	}
	if err := validate(in.QuantityAvailable, in.LowStockThreshold); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.QuantityAvailable != nil {
		inv.QuantityAvailable = *in.QuantityAvailable
		fields["quantity_available"] = inv.QuantityAvailable
	}
	if in.LowStockThreshold != nil {
		inv.LowStockThreshold = *in.LowStockThreshold
		fields["low_stock_threshold"] = inv.LowStockThreshold
	}
	if in.ExpiryDate != nil {
		inv.ExpiryDate = dateOnly(in.ExpiryDate)
		fields["expiry_date"] = *inv.ExpiryDate
	}
	if len(fields) == 0 {
		return inv, nil
	}

	if err := s.store.Update(ctx, inv, fields); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "inventory adjusted", "business_id", businessID, "product_id", productID, "quantity", inv.QuantityAvailable)
	return inv, nil
}

func (s *Service) List(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	return s.store.List(ctx, businessID)
}

// LowStock lists rows at or below their threshold.
func (s *Service) LowStock(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	return s.store.ListLow(ctx, businessID)
}

func validate(quantity, threshold *int) error {
	if quantity != nil && *quantity < 0 {
		return apperr.Validation("Quantity cannot be negative")
	}
	if threshold != nil && *threshold < 0 {
		return apperr.Validation("Low stock threshold cannot be negative")
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}
