package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// ValidPeriod reports whether p names a purchasable period.
func ValidPeriod(p string) bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

// ExportAccess is a paid entitlement period. Rows are written only by the
// payment webhook; TransactionReference makes that write idempotent.
type ExportAccess struct {
	ID                   uint            `json:"id" gorm:"primary_key"`
	BusinessID           uint            `json:"business_id" gorm:"not null;index"`
	PeriodType           string          `json:"period_type" gorm:"not null"`
	StartDate            time.Time       `json:"start_date" gorm:"type:date;not null"`
	EndDate              time.Time       `json:"end_date" gorm:"type:date;not null"`
	AmountPaid           decimal.Decimal `json:"amount_paid" gorm:"type:numeric(10,2);not null"`
	TransactionReference string          `json:"transaction_reference" gorm:"not null;unique_index"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (ExportAccess) TableName() string { return "export_access" }

// Covers reports whether day falls within [StartDate, EndDate]. Only the
// calendar date of day is compared.
func (e ExportAccess) Covers(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(e.StartDate)) && !d.After(DateOf(e.EndDate))
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
