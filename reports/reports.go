// Package reports aggregates committed sales into summaries, insights and
// downloadable documents. It only reads.
package reports

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
)

var hundred = decimal.NewFromInt(100)

// Totals aggregates the sales of a window.
type Totals struct {
	Sales  decimal.Decimal
	Cost   decimal.Decimal
	Orders int64
	Items  int64
}

// ProductStat aggregates the sale items of one product in a window. Cost is
// the product's current cost price times quantity.
type ProductStat struct {
	ProductID uint
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
}

// StockLevel is a product's inventory row joined with its last sale.
type StockLevel struct {
	ProductID    uint
	Name         string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Quantity     int
	Threshold    int
	ExpiryDate   *time.Time
	LastSold     *time.Time
}

// SaleRow is one sale item with its sale and product name.
type SaleRow struct {
	SoldAt    time.Time
	SaleID    uint
	Product   string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	SaleTotal decimal.Decimal
}

// Store runs the aggregate queries. All of them are scoped to one business.
type Store interface {
	Totals(ctx context.Context, businessID uint, w Window) (Totals, error)

	// ProductStats groups sale items by product. search filters names
	// case-insensitively when not empty.
	ProductStats(ctx context.Context, businessID uint, w Window, search string) ([]ProductStat, error)
	StockLevels(ctx context.Context, businessID uint) ([]StockLevel, error)

	// SaleRows returns sale items ordered by sale time then sale id.
	SaleRows(ctx context.Context, businessID uint, w Window) ([]SaleRow, error)
}

// Entitlements is the read-only part of the entitlement gate.
type Entitlements interface {
	HasActive(ctx context.Context, businessID uint, period string, asOf time.Time) (bool, error)
	AnyActive(ctx context.Context, businessID uint, asOf time.Time) (bool, error)
	Covering(ctx context.Context, businessID uint, period string, from, to time.Time) (bool, error)
}

type Service struct {
	store        Store
	entitlements Entitlements
	freeDays     int
	logger       *slog.Logger
	now          func() time.Time
}

// NewService builds the report service. freeDays is the sales history
// visible without an entitlement.
func NewService(store Store, entitlements Entitlements, freeDays int, logger *slog.Logger) *Service {
	return &Service{store: store, entitlements: entitlements, freeDays: freeDays, logger: logger, now: time.Now}
}

type SalesReport struct {
	TotalSales             decimal.Decimal `json:"total_sales"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	TotalProfit            decimal.Decimal `json:"total_profit"`
	ProfitMarginPercentage decimal.Decimal `json:"profit_margin_percentage"`
	TotalOrders            int64           `json:"total_orders"`
	TotalItemsSold         int64           `json:"total_items_sold"`
	StartDate              string          `json:"start_date"`
	EndDate                string          `json:"end_date"`
}

type ProductProfit struct {
	ProductID         uint            `json:"product_id"`
	ProductName       string          `json:"product_name"`
	TotalQuantitySold int64           `json:"total_quantity_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
}

type ProductProfitReport struct {
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	TotalProducts int             `json:"total_products"`
	Results       []ProductProfit `json:"results"`
}

// TrendPoint is the profit of one day (weekly trend) or one calendar month
// (monthly trend).
type TrendPoint struct {
	Date       string          `json:"date,omitempty"`
	MonthStart string          `json:"month_start,omitempty"`
	Profit     decimal.Decimal `json:"profit"`
}

func formatDate(t time.Time) string { return t.Format("2006-01-02") }

// percent returns part/whole*100 rounded to cents, or zero when whole is zero.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).RoundBank(2)
}

func (s *Service) calculate(ctx context.Context, businessID uint, w Window) (*SalesReport, error) {
	t, err := s.store.Totals(ctx, businessID, w)
	if err != nil {
		return nil, err
	}
	profit := t.Sales.Sub(t.Cost)
	return &SalesReport{
		TotalSales:             t.Sales,
		TotalCost:              t.Cost,
		TotalProfit:            profit,
		ProfitMarginPercentage: percent(profit, t.Sales),
		TotalOrders:            t.Orders,
		TotalItemsSold:         t.Items,
		StartDate:              formatDate(w.From),
		EndDate:                formatDate(w.To),
	}, nil
}

func (s *Service) require(ctx context.Context, businessID uint, period, message string) error {
	ok, err := s.entitlements.HasActive(ctx, businessID, period, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.PaymentRequired("%s", message)
	}
	return nil
}

// Summary reports revenue for the daily, weekly or monthly window. Weekly and
// monthly cost and profit figures are zeroed without the matching
// entitlement.
func (s *Service) Summary(ctx context.Context, businessID uint, period string) (*SalesReport, error) {
	w, err := RollingWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	report, err := s.calculate(ctx, businessID, w)
	if err != nil {
		return nil, err
	}
	if period == PeriodDaily {
		return report, nil
	}

	paid, err := s.entitlements.HasActive(ctx, businessID, period, s.now())
	if err != nil {
		return nil, err
	}
	if !paid {
		report.TotalCost = decimal.Zero
		report.TotalProfit = decimal.Zero
		report.ProfitMarginPercentage = decimal.Zero
	}
	return report, nil
}

// ProductProfit ranks products by revenue. Weekly and monthly windows need
// the matching entitlement.
func (s *Service) ProductProfit(ctx context.Context, businessID uint, period, search string, limit, offset int) (*ProductProfitReport, error) {
	w, err := RollingWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		return nil, apperr.Validation("limit must be between 1 and 100")
	}
	if offset < 0 {
		return nil, apperr.Validation("offset must be zero or greater")
	}
	if period != PeriodDaily {
		if err := s.require(ctx, businessID, period, "Upgrade to unlock "+period+" product profit insights"); err != nil {
			return nil, err
		}
	}

	stats, err := s.store.ProductStats(ctx, businessID, w, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Revenue.GreaterThan(stats[j].Revenue) })

	report := &ProductProfitReport{
		StartDate:     formatDate(w.From),
		EndDate:       formatDate(w.To),
		TotalProducts: len(stats),
		Results:       []ProductProfit{},
	}
	if offset >= len(stats) {
		return report, nil
	}
	page := stats[offset:]
	if len(page) > limit {
		page = page[:limit]
	}
	for _, st := range page {
		report.Results = append(report.Results, ProductProfit{
			ProductID:         st.ProductID,
			ProductName:       st.Name,
			TotalQuantitySold: st.Quantity,
			TotalRevenue:      st.Revenue,
			TotalCost:         st.Cost,
			TotalProfit:       st.Revenue.Sub(st.Cost),
		})
	}
	return report, nil
}

// Trend returns daily profit for the last 7 days, or monthly profit for the
// current and two previous calendar months.
func (s *Service) Trend(ctx context.Context, businessID uint, period string) ([]TrendPoint, error) {
	if period != PeriodWeekly && period != PeriodMonthly {
		return nil, apperr.Validation("Invalid period type")
	}
	if err := s.require(ctx, businessID, period, "Upgrade to unlock Profit Trend"); err != nil {
		return nil, err
	}

	now := s.now()
	var points []TrendPoint
	if period == PeriodWeekly {
		today := Window{now, now}.Since()
		for i := 6; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			r, err := s.calculate(ctx, businessID, Window{day, day})
			if err != nil {
				return nil, err
			}
			points = append(points, TrendPoint{Date: formatDate(day), Profit: r.TotalProfit})
		}
		return points, nil
	}

	for i := 0; i < 3; i++ {
		w := monthWindow(now, i)
		r, err := s.calculate(ctx, businessID, w)
		if err != nil {
			return nil, err
		}
		points = append(points, TrendPoint{MonthStart: formatDate(w.From), Profit: r.TotalProfit})
	}
	return points, nil
}
