package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uint            `json:"id" gorm:"primary_key"`
	BusinessID   uint            `json:"business_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	CostPrice    decimal.Decimal `json:"cost_price" gorm:"type:numeric(10,2);not null"`
	SellingPrice decimal.Decimal `json:"selling_price" gorm:"type:numeric(10,2);not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"-"`
	Inventory    *Inventory      `json:"inventory,omitempty" gorm:"foreignkey:ProductID"`
}
