// Package store implements the storage contracts of the service packages
// with gorm.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/database"
	"github.com/ken-eddy/simplesales/models"
	"github.com/ken-eddy/simplesales/sales"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("sale_items.id ASC")
}

type SaleStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewSaleStore returns the sale store. lockTimeout bounds each inventory row
// lock wait; zero keeps the server default.
func NewSaleStore(db *gorm.DB, lockTimeout time.Duration) *SaleStore {
	return &SaleStore{db: db, lockTimeout: lockTimeout}
}

func (s *SaleStore) FindByRequestID(ctx context.Context, businessID uint, requestID string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.Preload("Items", orderedItems).
		Where("business_id = ? AND request_id = ?", businessID, requestID).
		First(&sale).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return &sale, nil
}

func (s *SaleStore) Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.Preload("Items", orderedItems).
		Where("id = ? AND business_id = ?", saleID, businessID).
		First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Sale not found")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &sale, nil
}

func (s *SaleStore) List(ctx context.Context, businessID uint, since time.Time, limit, offset int) ([]models.Sale, error) {
	q := s.db.Preload("Items", orderedItems).Where("business_id = ?", businessID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var list []models.Sale
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, database.Classify(err)
	}
	return list, nil
}

// Begin opens a transaction bound to ctx and applies the lock timeout.
func (s *SaleStore) Begin(ctx context.Context) (sales.Tx, error) {
	tx := s.db.BeginTx(ctx, &sql.TxOptions{})
	if tx.Error != nil {
		return nil, database.Classify(tx.Error)
	}
	if s.lockTimeout > 0 {
		if err := database.SetLockTimeout(tx, s.lockTimeout); err != nil {
			tx.Rollback()
			return nil, database.Classify(err)
		}
	}
	return &saleTx{ctx: ctx, tx: tx, lockTimeout: s.lockTimeout > 0}, nil
}

type saleTx struct {
	ctx         context.Context
	tx          *gorm.DB
	lockTimeout bool
	reset       bool
}

// resetLockTimeout runs once per transaction. A failure means the
// connection is gone, which the following Commit or Rollback reports.
func (t *saleTx) resetLockTimeout() {
	if !t.lockTimeout || t.reset {
		return
	}
	t.reset = true
	_ = database.ResetLockTimeout(t.tx)
}

// classify prefers the context error: once ctx is done the driver only
// reports a closed transaction.
func (t *saleTx) classify(err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		return database.Classify(ctxErr)
	}
	return database.Classify(err)
}

func (t *saleTx) CreateSale(sale *models.Sale) error {
	err := t.tx.Create(sale).Error
	if database.IsUniqueViolation(err, database.UniqueSaleRequest) {
		return sales.ErrDuplicateRequest
	}
	return t.classify(err)
}

func (t *saleTx) FindProduct(businessID, productID uint) (*models.Product, error) {
	var p models.Product
	if err := t.tx.Where("id = ? AND business_id = ?", productID, businessID).First(&p).Error; err != nil {
		return nil, t.classify(err)
	}
	return &p, nil
}

func (t *saleTx) LockInventory(productID uint) (*models.Inventory, error) {
	var inv models.Inventory
	err := t.tx.Set("gorm:query_option", "FOR UPDATE").
		Where("product_id = ?", productID).
		First(&inv).Error
	if err != nil {
		return nil, t.classify(err)
	}
	return &inv, nil
}

func (t *saleTx) DecrementInventory(inventoryID uint, quantity int) error {
	res := t.tx.Model(&models.Inventory{}).
		Where("id = ? AND quantity_available >= ?", inventoryID, quantity).
		UpdateColumn("quantity_available", gorm.Expr("quantity_available - ?", quantity))
	if res.Error != nil {
		return t.classify(res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.Persistence("Unable to complete sale", errors.New("inventory row changed while locked"))
	}
	return nil
}

func (t *saleTx) SetTotal(saleID uint, total decimal.Decimal) error {
	err := t.tx.Model(&models.Sale{}).Where("id = ?", saleID).UpdateColumn("total_amount", total).Error
	return t.classify(err)
}

func (t *saleTx) CreateItems(items []models.SaleItem) error {
	for i := range items {
		if err := t.tx.Create(&items[i]).Error; err != nil {
			return t.classify(err)
		}
	}
	return nil
}

func (t *saleTx) Commit() error {
	t.resetLockTimeout()
	return t.classify(t.tx.Commit().Error)
}

func (t *saleTx) Rollback() error {
	t.resetLockTimeout()
	return t.tx.Rollback().Error
}
