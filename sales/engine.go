// Package sales records point-of-sale transactions and serves sales history.
package sales

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

// maxAmount is the largest value a numeric(10,2) column holds.
var maxAmount = decimal.RequireFromString("99999999.99")

// Item is one requested line.
type Item struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Request is a sale submitted by an authenticated cashier.
type Request struct {
	BusinessID uint
	RequestID  string
	Items      []Item
}

// Engine creates sales. Stock is locked per inventory row in the order the
// items were supplied; two requests touching the same products in opposite
// orders can deadlock, which surfaces as a retryable conflict.
type Engine struct {
	store  Store
	logger *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Create records req atomically. A request id that was already committed for
// the business returns the original sale with replayed set and no stock is
// touched.
func (e *Engine) Create(ctx context.Context, req Request) (sale *models.Sale, replayed bool, err error) {
	if err := validateShape(req); err != nil {
		return nil, false, err
	}

	existing, err := e.store.FindByRequestID(ctx, req.BusinessID, req.RequestID)
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "sale replayed", "business_id", req.BusinessID, "request_id", req.RequestID, "sale_id", existing.ID)
		return existing, true, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, false, e.fail(ctx, req, err)
	}

	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, false, apperr.Validation("Item quantity must be greater than zero")
		}
	}

	sale, err = e.commit(ctx, req)
	if errors.Is(err, ErrDuplicateRequest) {
		// A concurrent submission of the same request id won the insert.
		existing, lookupErr := e.store.FindByRequestID(ctx, req.BusinessID, req.RequestID)
		if lookupErr != nil {
			return nil, false, e.fail(ctx, req, lookupErr)
		}
		e.logger.InfoContext(ctx, "sale replayed after race", "business_id", req.BusinessID, "request_id", req.RequestID, "sale_id", existing.ID)
		return existing, true, nil
	}
	if err != nil {
		return nil, false, e.fail(ctx, req, err)
	}

	e.logger.InfoContext(ctx, "sale committed",
		"business_id", req.BusinessID,
		"sale_id", sale.ID,
		"total", sale.TotalAmount.StringFixed(2),
		"items", len(sale.Items),
	)
	return sale, false, nil
}

func (e *Engine) commit(ctx context.Context, req Request) (*models.Sale, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.WarnContext(ctx, "sale rollback failed", "error", rbErr)
			}
		}
	}()

	sale := &models.Sale{
		BusinessID:  req.BusinessID,
		RequestID:   req.RequestID,
		TotalAmount: decimal.Zero,
	}
	if err := tx.CreateSale(sale); err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.SaleItem, 0, len(req.Items))
	for _, it := range req.Items {
		product, err := tx.FindProduct(req.BusinessID, it.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NotFound("Product not found")
			}
			return nil, err
		}

		inv, err := tx.LockInventory(product.ID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NoInventory(product.Name)
			}
			return nil, err
		}
		if inv.QuantityAvailable < it.Quantity {
			return nil, apperr.InsufficientStock(product.Name)
		}
		if err := tx.DecrementInventory(inv.ID, it.Quantity); err != nil {
			return nil, err
		}

		lineTotal := product.SellingPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.SaleItem{
			SaleID:       sale.ID,
			ProductID:    product.ID,
			Quantity:     it.Quantity,
			SellingPrice: product.SellingPrice,
			LineTotal:    lineTotal,
		})
	}

	if total.GreaterThan(maxAmount) {
		return nil, apperr.Validation("Sale total exceeds the maximum allowed amount")
	}

	if err := tx.SetTotal(sale.ID, total); err != nil {
		return nil, err
	}
	if err := tx.CreateItems(items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	sale.TotalAmount = total
	sale.Items = items
	return sale, nil
}

// fail logs err at a level matching its kind and makes sure it carries one.
func (e *Engine) fail(ctx context.Context, req Request, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		err = apperr.Persistence("Unable to complete sale", err)
	}
	attrs := []any{"business_id", req.BusinessID, "request_id", req.RequestID, "error", err}
	if apperr.KindOf(err) == apperr.KindPersistence {
		e.logger.ErrorContext(ctx, "sale failed", attrs...)
	} else {
		e.logger.WarnContext(ctx, "sale rolled back", attrs...)
	}
	return err
}

func validateShape(req Request) error {
	if strings.TrimSpace(req.RequestID) == "" {
		return apperr.Validation("request_id is required")
	}
	if len(req.Items) == 0 {
		return apperr.Validation("Sale must contain items")
	}
	seen := make(map[uint]struct{}, len(req.Items))
	for _, it := range req.Items {
		if _, dup := seen[it.ProductID]; dup {
			return apperr.Validation("Duplicate products in sale are not allowed")
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}
