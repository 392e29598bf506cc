package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

// memStore is an in-memory Store. Inventory row locks are per-product mutexes
// held until the owning transaction ends, and a pending sale insert blocks a
// second insert of the same request id the way a unique index does.
type memStore struct {
	mu          sync.Mutex
	products    map[uint]models.Product
	inventory   map[uint]*models.Inventory // by product id
	invProduct  map[uint]uint              // inventory id -> product id
	rowLocks    map[uint]*sync.Mutex
	pending     map[string]chan struct{}
	sales       []models.Sale
	nextSaleID  uint
	nextItemID  uint
	begins      int
	lockOrder   []uint
	lockTimeout time.Duration

	failCreateItems error
	beforeLock      func(productID uint)
}

func newMemStore() *memStore {
	return &memStore{
		products:    map[uint]models.Product{},
		inventory:   map[uint]*models.Inventory{},
		invProduct:  map[uint]uint{},
		rowLocks:    map[uint]*sync.Mutex{},
		pending:     map[string]chan struct{}{},
		lockTimeout: time.Second,
	}
}

// addProduct registers a product; a negative quantity leaves it unstocked.
func (s *memStore) addProduct(businessID, id uint, name, price string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = models.Product{
		ID:           id,
		BusinessID:   businessID,
		Name:         name,
		CostPrice:    decimal.RequireFromString(price),
		SellingPrice: decimal.RequireFromString(price),
	}
	if quantity >= 0 {
		invID := id + 1000
		s.inventory[id] = &models.Inventory{ID: invID, ProductID: id, QuantityAvailable: quantity, LowStockThreshold: 5}
		s.invProduct[invID] = id
	}
}

func (s *memStore) addSale(businessID uint, requestID string, createdAt time.Time) models.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSaleID++
	sale := models.Sale{ID: s.nextSaleID, BusinessID: businessID, RequestID: requestID, TotalAmount: decimal.Zero, CreatedAt: createdAt}
	s.sales = append(s.sales, sale)
	return sale
}

func (s *memStore) quantity(productID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[productID].QuantityAvailable
}

func (s *memStore) saleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *memStore) beginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

func (s *memStore) FindByRequestID(ctx context.Context, businessID uint, requestID string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sale := range s.sales {
		if sale.BusinessID == businessID && sale.RequestID == requestID {
			out := sale
			return &out, nil
		}
	}
	return nil, apperr.NotFound("Sale not found")
}

func (s *memStore) Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sale := range s.sales {
		if sale.ID == saleID && sale.BusinessID == businessID {
			out := sale
			return &out, nil
		}
	}
	return nil, apperr.NotFound("Sale not found")
}

func (s *memStore) List(ctx context.Context, businessID uint, since time.Time, limit, offset int) ([]models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Sale
	for _, sale := range s.sales {
		if sale.BusinessID != businessID {
			continue
		}
		if !since.IsZero() && sale.CreatedAt.Before(since) {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()
	return &memTx{store: s, ctx: ctx, held: map[uint]bool{}, decrements: map[uint]int{}}, nil
}

type memTx struct {
	store      *memStore
	ctx        context.Context
	held       map[uint]bool
	heldLocks  []*sync.Mutex
	decrements map[uint]int
	key        string
	keyDone    chan struct{}
	sale       *models.Sale
	items      []models.SaleItem
	done       bool
}

func (t *memTx) check() error {
	if t.done {
		return errors.New("memstore: transaction already finished")
	}
	return t.ctx.Err()
}

func (t *memTx) CreateSale(sale *models.Sale) error {
	if err := t.check(); err != nil {
		return err
	}
	s := t.store
	key := fmt.Sprintf("%d/%s", sale.BusinessID, sale.RequestID)
	for {
		s.mu.Lock()
		for _, existing := range s.sales {
			if existing.BusinessID == sale.BusinessID && existing.RequestID == sale.RequestID {
				s.mu.Unlock()
				return ErrDuplicateRequest
			}
		}
		wait, busy := s.pending[key]
		if !busy {
			t.key, t.keyDone = key, make(chan struct{})
			s.pending[key] = t.keyDone
			s.nextSaleID++
			sale.ID = s.nextSaleID
			sale.CreatedAt = time.Now().UTC()
			s.mu.Unlock()
			t.sale = sale
			return nil
		}
		s.mu.Unlock()

		select {
		case <-wait:
		case <-t.ctx.Done():
			return t.ctx.Err()
		}
	}
}

func (t *memTx) FindProduct(businessID, productID uint) (*models.Product, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	p, ok := t.store.products[productID]
	if !ok || p.BusinessID != businessID {
		return nil, apperr.NotFound("Product not found")
	}
	return &p, nil
}

func (t *memTx) LockInventory(productID uint) (*models.Inventory, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	s := t.store
	if s.beforeLock != nil {
		s.beforeLock(productID)
	}

	s.mu.Lock()
	if _, ok := s.inventory[productID]; !ok {
		s.mu.Unlock()
		return nil, apperr.NotFound("Inventory not found")
	}
	m, ok := s.rowLocks[productID]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[productID] = m
	}
	s.mu.Unlock()

	if !t.held[productID] {
		deadline := time.Now().Add(s.lockTimeout)
		for !m.TryLock() {
			if err := t.ctx.Err(); err != nil {
				return nil, err
			}
			if time.Now().After(deadline) {
				return nil, apperr.RetryableConflict("Resource is busy, retry the request", errors.New("lock wait timeout"))
			}
			time.Sleep(time.Millisecond)
		}
		t.held[productID] = true
		t.heldLocks = append(t.heldLocks, m)
		s.mu.Lock()
		s.lockOrder = append(s.lockOrder, productID)
		s.mu.Unlock()
	}

	s.mu.Lock()
	inv := *s.inventory[productID]
	s.mu.Unlock()
	inv.QuantityAvailable -= t.decrements[inv.ID]
	return &inv, nil
}

func (t *memTx) DecrementInventory(inventoryID uint, quantity int) error {
	if err := t.check(); err != nil {
		return err
	}
	t.store.mu.Lock()
	productID, ok := t.store.invProduct[inventoryID]
	t.store.mu.Unlock()
	if !ok {
		return apperr.NotFound("Inventory not found")
	}
	if !t.held[productID] {
		return errors.New("memstore: decrement without row lock")
	}
	t.decrements[inventoryID] += quantity
	return nil
}

func (t *memTx) SetTotal(saleID uint, total decimal.Decimal) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.sale == nil || t.sale.ID != saleID {
		return errors.New("memstore: unknown sale")
	}
	t.sale.TotalAmount = total
	return nil
}

func (t *memTx) CreateItems(items []models.SaleItem) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.store.failCreateItems != nil {
		return t.store.failCreateItems
	}
	t.items = append([]models.SaleItem(nil), items...)
	return nil
}

func (t *memTx) Commit() error {
	if err := t.check(); err != nil {
		t.release()
		return err
	}
	s := t.store
	s.mu.Lock()
	for invID, q := range t.decrements {
		inv := s.inventory[s.invProduct[invID]]
		if inv.QuantityAvailable-q < 0 {
			s.mu.Unlock()
			t.release()
			return errors.New("memstore: check constraint quantity_available >= 0")
		}
	}
	for invID, q := range t.decrements {
		s.inventory[s.invProduct[invID]].QuantityAvailable -= q
	}
	if t.sale != nil {
		committed := *t.sale
		committed.Items = nil
		for _, it := range t.items {
			s.nextItemID++
			it.ID = s.nextItemID
			committed.Items = append(committed.Items, it)
		}
		s.sales = append(s.sales, committed)
	}
	s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	for _, m := range t.heldLocks {
		m.Unlock()
	}
	t.heldLocks = nil
	if t.keyDone != nil {
		t.store.mu.Lock()
		delete(t.store.pending, t.key)
		t.store.mu.Unlock()
		close(t.keyDone)
		t.keyDone = nil
	}
}
