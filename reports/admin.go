package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/models"
)

type PlatformOverview struct {
	TotalBusinesses     int64           `json:"total_businesses"`
	BusinessesThisMonth int64           `json:"businesses_this_month"`
	TotalUsers          int64           `json:"total_users"`
	TotalProducts       int64           `json:"total_products"`
	TotalSales          int64           `json:"total_sales"`
	SalesThisMonth      int64           `json:"sales_this_month"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	RevenueThisMonth    decimal.Decimal `json:"revenue_this_month"`
}

type SubscriptionStats struct {
	ActiveWeekly   int64           `json:"active_weekly_subscriptions"`
	ActiveMonthly  int64           `json:"active_monthly_subscriptions"`
	ExpiredWeekly  int64           `json:"expired_weekly_subscriptions"`
	ExpiredMonthly int64           `json:"expired_monthly_subscriptions"`
	TotalEver      int64           `json:"total_subscriptions_ever"`
	TotalRevenue   decimal.Decimal `json:"total_subscription_revenue"`
}

type BusinessSummary struct {
	BusinessID    uint            `json:"business_id"`
	BusinessName  string          `json:"business_name"`
	OwnerEmail    string          `json:"owner_email"`
	IsSuspended   bool            `json:"is_suspended"`
	CreatedAt     time.Time       `json:"created_at"`
	TotalProducts int64           `json:"total_products"`
	TotalSales    int64           `json:"total_sales"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type BusinessPage struct {
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
	TotalRecords int64             `json:"total_records"`
	Data         []BusinessSummary `json:"data"`
}

// PlatformStore runs the cross-tenant queries behind the admin views.
type PlatformStore interface {
	Overview(ctx context.Context, monthStart time.Time) (*PlatformOverview, error)

	// Subscriptions counts entitlements by period type relative to today.
	Subscriptions(ctx context.Context, today time.Time) (*SubscriptionStats, error)

	// Businesses pages through businesses joined with their users. search
	// matches business name or user email, case-insensitively.
	Businesses(ctx context.Context, search string, limit, offset int) ([]BusinessSummary, int64, error)
}

// Admin serves the platform-wide analytics.
type Admin struct {
	store PlatformStore
	now   func() time.Time
}

func NewAdmin(store PlatformStore) *Admin {
	return &Admin{store: store, now: time.Now}
}

func (a *Admin) Overview(ctx context.Context) (*PlatformOverview, error) {
	today := models.DateOf(a.now())
	return a.store.Overview(ctx, time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC))
}

func (a *Admin) Subscriptions(ctx context.Context) (*SubscriptionStats, error) {
	return a.store.Subscriptions(ctx, models.DateOf(a.now()))
}

// Businesses clamps page to at least 1 and resets limits outside 1..50
// to 10.
func (a *Admin) Businesses(ctx context.Context, search string, page, limit int) (*BusinessPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	rows, total, err := a.store.Businesses(ctx, strings.ToLower(strings.TrimSpace(search)), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []BusinessSummary{}
	}
	return &BusinessPage{Page: page, Limit: limit, TotalRecords: total, Data: rows}, nil
}
