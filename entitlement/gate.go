// Package entitlement answers whether a business holds a paid period.
package entitlement

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ken-eddy/simplesales/models"
)

// Store loads the entitlement rows of a business.
type Store interface {
	ListByBusiness(ctx context.Context, businessID uint) ([]models.ExportAccess, error)
}

// Cache keeps the rows of a business for a short time. Implementations report
// a miss with ok == false.
type Cache interface {
	Get(ctx context.Context, businessID uint) (rows []models.ExportAccess, ok bool, err error)
	Set(ctx context.Context, businessID uint, rows []models.ExportAccess) error
	Invalidate(ctx context.Context, businessID uint) error
}

// Gate is consulted by the read side (history, reports, exports, insights).
// Recording a sale never depends on it.
type Gate struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

// NewGate builds a gate. cache may be nil.
func NewGate(store Store, cache Cache, logger *slog.Logger) *Gate {
	return &Gate{store: store, cache: cache, logger: logger}
}

// Active returns the entitlement of the given period type covering asOf with
// the latest end date, or nil.
func (g *Gate) Active(ctx context.Context, businessID uint, period string, asOf time.Time) (*models.ExportAccess, error) {
	rows, err := g.rows(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.PeriodType == period && r.Covers(asOf) {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

// Current returns any entitlement covering asOf, preferring the latest end.
func (g *Gate) Current(ctx context.Context, businessID uint, asOf time.Time) (*models.ExportAccess, error) {
	rows, err := g.rows(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Covers(asOf) {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (g *Gate) AnyActive(ctx context.Context, businessID uint, asOf time.Time) (bool, error) {
	cur, err := g.Current(ctx, businessID, asOf)
	return cur != nil, err
}

// HasActive reports whether the business holds an active entitlement of
// period type period.
func (g *Gate) HasActive(ctx context.Context, businessID uint, period string, asOf time.Time) (bool, error) {
	a, err := g.Active(ctx, businessID, period, asOf)
	return a != nil, err
}

// Covering reports whether a single entitlement of the period type spans
// every day in [from, to].
func (g *Gate) Covering(ctx context.Context, businessID uint, period string, from, to time.Time) (bool, error) {
	rows, err := g.rows(ctx, businessID)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.PeriodType == period && r.Covers(from) && r.Covers(to) {
			return true, nil
		}
	}
	return false, nil
}

// Unexpired reports whether a period of the type ends on or after asOf,
// including periods queued to start later.
func (g *Gate) Unexpired(ctx context.Context, businessID uint, period string, asOf time.Time) (bool, error) {
	rows, err := g.rows(ctx, businessID)
	if err != nil {
		return false, err
	}
	day := models.DateOf(asOf)
	for _, r := range rows {
		if r.PeriodType == period && !models.DateOf(r.EndDate).Before(day) {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops cached rows after a new entitlement is written.
func (g *Gate) Invalidate(ctx context.Context, businessID uint) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Invalidate(ctx, businessID); err != nil {
		g.logger.WarnContext(ctx, "entitlement cache invalidate failed", "business_id", businessID, "error", err)
	}
}

// rows returns the business's entitlements, latest end date first. Cache
// failures fall back to the store.
func (g *Gate) rows(ctx context.Context, businessID uint) ([]models.ExportAccess, error) {
	if g.cache != nil {
		rows, ok, err := g.cache.Get(ctx, businessID)
		if err != nil {
			g.logger.WarnContext(ctx, "entitlement cache read failed, falling back to database", "business_id", businessID, "error", err)
		} else if ok {
			return rows, nil
		}
	}

	rows, err := g.store.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EndDate.After(rows[j].EndDate) })

	if g.cache != nil {
		if err := g.cache.Set(ctx, businessID, rows); err != nil {
			g.logger.WarnContext(ctx, "entitlement cache write failed", "business_id", businessID, "error", err)
		}
	}
	return rows, nil
}
