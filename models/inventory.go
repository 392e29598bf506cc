package models

import "time"

// Inventory is the single stock row of a product. Sales decrement it under a
// row lock; adjustments overwrite it.
type Inventory struct {
	ID                uint       `json:"id" gorm:"primary_key"`
	ProductID         uint       `json:"product_id" gorm:"not null;unique_index"`
	QuantityAvailable int        `json:"quantity_available" gorm:"not null"`
	LowStockThreshold int        `json:"low_stock_threshold" gorm:"not null"`
	ExpiryDate        *time.Time `json:"expiry_date" gorm:"type:date"`
	Product           *Product   `json:"-" gorm:"foreignkey:ProductID"`
}

func (Inventory) TableName() string { return "inventory" }

// IsLow reports whether the stock has reached its threshold.
func (i Inventory) IsLow() bool {
	return i.QuantityAvailable <= i.LowStockThreshold
}
