package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is immutable once committed. RequestID is the client idempotency key,
// unique per business.
type Sale struct {
	ID          uint            `json:"id" gorm:"primary_key"`
	BusinessID  uint            `json:"-" gorm:"not null"`
	RequestID   string          `json:"-" gorm:"not null"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []SaleItem      `json:"items" gorm:"foreignkey:SaleID"`
}

type SaleItem struct {
	ID           uint            `json:"-" gorm:"primary_key"`
	SaleID       uint            `json:"-" gorm:"not null;index"`
	ProductID    uint            `json:"product_id" gorm:"not null;index"`
	Quantity     int             `json:"quantity" gorm:"not null"`
	SellingPrice decimal.Decimal `json:"selling_price" gorm:"type:numeric(10,2);not null"`
	LineTotal    decimal.Decimal `json:"line_total" gorm:"type:numeric(10,2);not null"`
}

// ItemsTotal sums the line totals.
func (s Sale) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// Money formats an amount the way numeric(10,2) stores it.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (s Sale) MarshalJSON() ([]byte, error) {
	type sale Sale
	return json.Marshal(struct {
		sale
		TotalAmount string `json:"total_amount"`
	}{sale(s), Money(s.TotalAmount)})
}

func (it SaleItem) MarshalJSON() ([]byte, error) {
	type item SaleItem
	return json.Marshal(struct {
		item
		SellingPrice string `json:"selling_price"`
		LineTotal    string `json:"line_total"`
	}{item(it), Money(it.SellingPrice), Money(it.LineTotal)})
}
