package sales

import (
	"context"
	"time"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

// EntitlementChecker answers whether a business holds any paid period on a day.
type EntitlementChecker interface {
	AnyActive(ctx context.Context, businessID uint, asOf time.Time) (bool, error)
}

// History serves read access to committed sales. Businesses without an
// active entitlement only see the last freeDays days, today included.
type History struct {
	store    Store
	gate     EntitlementChecker
	freeDays int
	now      func() time.Time
}

func NewHistory(store Store, gate EntitlementChecker, freeDays int) *History {
	return &History{store: store, gate: gate, freeDays: freeDays, now: time.Now}
}

// List returns a page of sales, newest first.
func (h *History) List(ctx context.Context, businessID uint, limit, offset int) ([]models.Sale, error) {
	if limit < 1 || limit > 100 {
		return nil, apperr.Validation("limit must be between 1 and 100")
	}
	if offset < 0 {
		return nil, apperr.Validation("offset cannot be negative")
	}

	cutoff, err := h.cutoff(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return h.store.List(ctx, businessID, cutoff, limit, offset)
}

// Get returns one sale. Sales older than the free window need an entitlement.
func (h *History) Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error) {
	sale, err := h.store.Get(ctx, businessID, saleID)
	if err != nil {
		return nil, err
	}

	cutoff, err := h.cutoff(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !cutoff.IsZero() && sale.CreatedAt.Before(cutoff) {
		return nil, apperr.PaymentRequired("Upgrade to access historical sales")
	}
	return sale, nil
}

// cutoff is the oldest visible instant, or zero when history is unrestricted.
func (h *History) cutoff(ctx context.Context, businessID uint) (time.Time, error) {
	now := h.now()
	active, err := h.gate.AnyActive(ctx, businessID, now)
	if err != nil {
		return time.Time{}, err
	}
	if active {
		return time.Time{}, nil
	}
	return models.DateOf(now).AddDate(0, 0, -(h.freeDays - 1)), nil
}
