// Package catalog manages the products of a business.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

var priceCeiling = decimal.NewFromInt(100_000_000)

// Store persists products. Duplicate names surface as apperr.ErrConflict and
// deleting a product that sales reference surfaces as apperr.ErrConflict.
type Store interface {
	Create(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, businessID, productID uint) (*models.Product, error)
	FindByName(ctx context.Context, businessID uint, name string) (*models.Product, error)
	List(ctx context.Context, businessID uint) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, businessID, productID uint) error
}

type CreateInput struct {
	Name         string          `json:"name" binding:"required"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name         *string          `json:"name"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, businessID uint, in CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validatePrices(in.CostPrice, in.SellingPrice); err != nil {
		return nil, err
	}

	if _, err := s.store.FindByName(ctx, businessID, name); err == nil {
		return nil, apperr.Conflict("Product with this name already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	p := &models.Product{
		BusinessID:   businessID,
		Name:         name,
		CostPrice:    in.CostPrice,
		SellingPrice: in.SellingPrice,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("Product with this name already exists")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "product created", "business_id", businessID, "product_id", p.ID)
	return p, nil
}

func (s *Service) List(ctx context.Context, businessID uint) ([]models.Product, error) {
	return s.store.List(ctx, businessID)
}

func (s *Service) Get(ctx context.Context, businessID, productID uint) (*models.Product, error) {
	p, err := s.store.Get(ctx, businessID, productID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	return p, err
}

// Update applies in and checks the price rule against the merged values.
// Existing sale items keep the price they were sold at.
func (s *Service) Update(ctx context.Context, businessID, productID uint, in UpdateInput) (*models.Product, error) {
	p, err := s.Get(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		p.Name = name
	}
	if in.CostPrice != nil {
		p.CostPrice = *in.CostPrice
	}
	if in.SellingPrice != nil {
		p.SellingPrice = *in.SellingPrice
	}
	if err := validatePrices(p.CostPrice, p.SellingPrice); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("Product with this name already exists")
		}
		return nil, err
	}
	return p, nil
}

// Delete removes a product and, by cascade, its inventory row.
func (s *Service) Delete(ctx context.Context, businessID, productID uint) error {
	if _, err := s.Get(ctx, businessID, productID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, businessID, productID); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Conflict("Product has recorded sales and cannot be deleted")
		}
		return err
	}
	s.logger.InfoContext(ctx, "product deleted", "business_id", businessID, "product_id", productID)
	return nil
}

func validateName(name string) error {
	if name == "" {
		return apperr.Validation("Product name is required")
	}
	if len(name) > 255 {
		return apperr.Validation("Product name is too long")
	}
	return nil
}

func validatePrices(cost, selling decimal.Decimal) error {
	for _, p := range []decimal.Decimal{cost, selling} {
		if !p.IsPositive() || p.GreaterThanOrEqual(priceCeiling) {
			return apperr.Validation("Prices must be greater than 0 and below 100 million")
		}
		if p.Exponent() < -2 && !p.Equal(p.Round(2)) {
			return apperr.Validation("Prices can have at most two decimal places")
		}
	}
	if selling.LessThan(cost) {
		return apperr.Validation("Selling price cannot be lower than cost price")
	}
	return nil
}
