package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExportAccessCovers(t *testing.T) {
	access := ExportAccess{
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"before start", time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC), false},
		{"start day", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"end day late", time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC), true},
		{"after end", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := access.Covers(tt.day); got != tt.want {
				t.Errorf("Covers(%v) = %v, want %v", tt.day, got, tt.want)
			}
		})
	}
}

func TestInventoryIsLow(t *testing.T) {
	if !(Inventory{QuantityAvailable: 5, LowStockThreshold: 5}).IsLow() {
		t.Error("quantity at threshold should be low")
	}
	if (Inventory{QuantityAvailable: 6, LowStockThreshold: 5}).IsLow() {
		t.Error("quantity above threshold should not be low")
	}
}

func TestSaleItemsTotal(t *testing.T) {
	sale := Sale{Items: []SaleItem{
		{LineTotal: decimal.RequireFromString("0.10")},
		{LineTotal: decimal.RequireFromString("0.20")},
	}}
	if got := sale.ItemsTotal(); !got.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("ItemsTotal = %s, want 0.30", got)
	}
}

func TestValidPeriod(t *testing.T) {
	for _, p := range []string{PeriodWeekly, PeriodMonthly} {
		if !ValidPeriod(p) {
			t.Errorf("%q should be valid", p)
		}
	}
	if ValidPeriod("daily") {
		t.Error("daily is not purchasable")
	}
}

func TestSaleJSONKeepsCents(t *testing.T) {
	sale := Sale{
		ID:          9,
		TotalAmount: decimal.RequireFromString("10"),
		Items: []SaleItem{{
			ProductID:    4,
			Quantity:     4,
			SellingPrice: decimal.RequireFromString("2.5"),
			LineTotal:    decimal.RequireFromString("10.000"),
		}},
	}

	raw, err := json.Marshal(sale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got struct {
		ID          uint   `json:"id"`
		TotalAmount string `json:"total_amount"`
		RequestID   string `json:"request_id"`
		Items       []struct {
			ProductID    uint   `json:"product_id"`
			Quantity     int    `json:"quantity"`
			SellingPrice string `json:"selling_price"`
			LineTotal    string `json:"line_total"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}

	if got.ID != 9 || got.TotalAmount != "10.00" {
		t.Errorf("sale = %+v, want id 9 total 10.00", got)
	}
	if got.RequestID != "" {
		t.Errorf("request id leaked: %s", raw)
	}
	if len(got.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(got.Items))
	}
	it := got.Items[0]
	if it.ProductID != 4 || it.Quantity != 4 || it.SellingPrice != "2.50" || it.LineTotal != "10.00" {
		t.Errorf("item = %+v", it)
	}
}
