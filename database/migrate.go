package database

import (
	"fmt"

	"github.com/jinzhu/gorm"

	"github.com/ken-eddy/simplesales/models"
)

// Constraint names referenced by the stores when they translate violations.
const (
	UniqueProductName  = "uq_business_product_name"
	UniqueSaleRequest  = "uq_business_request_id"
	UniqueInventory    = "uix_inventory_product_id"
	UniqueBusinessName = "uix_businesses_name"
	UniqueUserEmail    = "uix_users_email"
	UniqueExportRef    = "uix_export_access_transaction_reference"
)

type checkConstraint struct {
	table, name, expr string
}

var checks = []checkConstraint{
	{"products", "ck_cost_price_non_negative", "cost_price >= 0"},
	{"products", "ck_selling_price_positive", "selling_price > 0"},
	{"inventory", "ck_inventory_quantity_non_negative", "quantity_available >= 0"},
	{"inventory", "ck_low_stock_non_negative", "low_stock_threshold >= 0"},
	{"sale_items", "ck_sale_item_quantity_positive", "quantity > 0"},
	{"export_access", "ck_export_access_period", "period_type IN ('weekly', 'monthly')"},
}

// Migrate creates the schema and the storage-level constraints that back the
// application checks: uniqueness, non-negative stock, foreign keys with
// cascades. It is safe to run on every start.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Business{},
		&models.User{},
		&models.Product{},
		&models.Inventory{},
		&models.Sale{},
		&models.SaleItem{},
		&models.ExportAccess{},
	).Error
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	steps := []*gorm.DB{
		db.Model(&models.Product{}).AddUniqueIndex(UniqueProductName, "business_id", "name"),
		db.Model(&models.Sale{}).AddUniqueIndex(UniqueSaleRequest, "business_id", "request_id"),
		db.Model(&models.Sale{}).AddIndex("ix_sales_business_created", "business_id", "created_at"),
		db.Model(&models.Sale{}).AddIndex("ix_sales_created_at", "created_at"),

		db.Model(&models.User{}).AddForeignKey("business_id", "businesses(id)", "RESTRICT", "RESTRICT"),
		db.Model(&models.Product{}).AddForeignKey("business_id", "businesses(id)", "RESTRICT", "RESTRICT"),
		db.Model(&models.Inventory{}).AddForeignKey("product_id", "products(id)", "CASCADE", "RESTRICT"),
		db.Model(&models.Sale{}).AddForeignKey("business_id", "businesses(id)", "RESTRICT", "RESTRICT"),
		db.Model(&models.SaleItem{}).AddForeignKey("sale_id", "sales(id)", "CASCADE", "RESTRICT"),
		db.Model(&models.SaleItem{}).AddForeignKey("product_id", "products(id)", "RESTRICT", "RESTRICT"),
		db.Model(&models.ExportAccess{}).AddForeignKey("business_id", "businesses(id)", "RESTRICT", "RESTRICT"),
	}
	for _, step := range steps {
		if step.Error != nil {
			return fmt.Errorf("migrate indexes: %w", step.Error)
		}
	}

	for _, ck := range checks {
		if err := addCheck(db, ck); err != nil {
			return err
		}
	}
	return nil
}

func addCheck(db *gorm.DB, ck checkConstraint) error {
	var count int
	err := db.Raw(
		"SELECT count(*) FROM information_schema.table_constraints WHERE table_name = ? AND constraint_name = ?",
		ck.table, ck.name,
	).Row().Scan(&count)
	if err != nil {
		return fmt.Errorf("lookup constraint %s: %w", ck.name, err)
	}
	if count > 0 {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", ck.table, ck.name, ck.expr)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("add constraint %s: %w", ck.name, err)
	}
	return nil
}
