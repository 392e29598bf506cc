package store

import (
	"context"

	"github.com/jinzhu/gorm"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/database"
	"github.com/ken-eddy/simplesales/models"
)

type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	err := s.db.Create(p).Error
	if database.IsUniqueViolation(err, database.UniqueProductName) {
		return apperr.Conflict("Product with this name already exists")
	}
	return database.Classify(err)
}

func (s *ProductStore) Get(ctx context.Context, businessID, productID uint) (*models.Product, error) {
	var p models.Product
	err := s.db.Preload("Inventory").
		Where("id = ? AND business_id = ?", productID, businessID).
		First(&p).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

func (s *ProductStore) FindByName(ctx context.Context, businessID uint, name string) (*models.Product, error) {
	var p models.Product
	if err := s.db.Where("business_id = ? AND name = ?", businessID, name).First(&p).Error; err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

func (s *ProductStore) List(ctx context.Context, businessID uint) ([]models.Product, error) {
	var list []models.Product
	err := s.db.Preload("Inventory").
		Where("business_id = ?", businessID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return list, nil
}

func (s *ProductStore) Update(ctx context.Context, p *models.Product) error {
	err := s.db.Model(&models.Product{}).
		Where("id = ? AND business_id = ?", p.ID, p.BusinessID).
		Updates(map[string]interface{}{
			"name":          p.Name,
			"cost_price":    p.CostPrice,
			"selling_price": p.SellingPrice,
		}).Error
	if database.IsUniqueViolation(err, database.UniqueProductName) {
		return apperr.Conflict("Product with this name already exists")
	}
	return database.Classify(err)
}

// Delete removes the product; its inventory row goes with it through the
// cascading foreign key. Sale items block the delete.
func (s *ProductStore) Delete(ctx context.Context, businessID, productID uint) error {
	res := s.db.Where("id = ? AND business_id = ?", productID, businessID).Delete(&models.Product{})
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Product not found")
	}
	return nil
}

type InventoryStore struct {
	db *gorm.DB
}

func NewInventoryStore(db *gorm.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func (s *InventoryStore) scoped(businessID uint) *gorm.DB {
	return s.db.Preload("Product").
		Joins("JOIN products ON products.id = inventory.product_id").
		Where("products.business_id = ?", businessID)
}

func (s *InventoryStore) ProductExists(ctx context.Context, businessID, productID uint) (bool, error) {
	var n int
	err := s.db.Model(&models.Product{}).Where("id = ? AND business_id = ?", productID, businessID).Count(&n).Error
	if err != nil {
		return false, database.Classify(err)
	}
	return n > 0, nil
}

func (s *InventoryStore) Create(ctx context.Context, inv *models.Inventory) error {
	err := s.db.Create(inv).Error
	if database.IsUniqueViolation(err, database.UniqueInventory) {
		return apperr.Conflict("Inventory already exists")
	}
	return database.Classify(err)
}

func (s *InventoryStore) Get(ctx context.Context, businessID, productID uint) (*models.Inventory, error) {
	var inv models.Inventory
	if err := s.scoped(businessID).Where("inventory.product_id = ?", productID).First(&inv).Error; err != nil {
		return nil, database.Classify(err)
	}
	return &inv, nil
}

func (s *InventoryStore) Update(ctx context.Context, inv *models.Inventory, fields map[string]interface{}) error {
	err := s.db.Model(&models.Inventory{}).Where("id = ?", inv.ID).UpdateColumns(fields).Error
	return database.Classify(err)
}

func (s *InventoryStore) List(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	var list []models.Inventory
	if err := s.scoped(businessID).Order("products.name ASC").Find(&list).Error; err != nil {
		return nil, database.Classify(err)
	}
	return list, nil
}

func (s *InventoryStore) ListLow(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	var list []models.Inventory
	err := s.scoped(businessID).
		Where("inventory.quantity_available <= inventory.low_stock_threshold").
		Order("inventory.quantity_available ASC").
		Find(&list).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return list, nil
}
