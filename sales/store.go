package sales

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/models"
)

// ErrDuplicateRequest is returned by Tx.CreateSale when another transaction
// already committed a sale with the same (business_id, request_id).
var ErrDuplicateRequest = errors.New("sales: duplicate request id")

// Store is the persistence contract of the sale engine and the sales read side.
// Lookups that find nothing return an error matching apperr.ErrNotFound.
type Store interface {
	FindByRequestID(ctx context.Context, businessID uint, requestID string) (*models.Sale, error)
	Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error)

	// List returns sales newest first with their items. A zero since
	// returns the full history.
	List(ctx context.Context, businessID uint, since time.Time, limit, offset int) ([]models.Sale, error)

	// Begin opens a transaction bound to ctx. Cancelling ctx rolls it back.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one sale transaction. Row locks taken by LockInventory are held until
// Commit or Rollback.
type Tx interface {
	CreateSale(sale *models.Sale) error
	FindProduct(businessID, productID uint) (*models.Product, error)

	// LockInventory returns the product's stock row locked for update. It
	// fails with a retryable conflict when the lock wait times out.
	LockInventory(productID uint) (*models.Inventory, error)

	// DecrementInventory is the only write path that lowers stock. It is
	// reachable only through an open sale transaction.
	DecrementInventory(inventoryID uint, quantity int) error

	SetTotal(saleID uint, total decimal.Decimal) error
	CreateItems(items []models.SaleItem) error
	Commit() error
	Rollback() error
}
