package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

type Insights struct {
	Period                string          `json:"period"`
	CurrentRevenue        decimal.Decimal `json:"current_revenue"`
	PreviousRevenue       decimal.Decimal `json:"previous_revenue"`
	GrowthPercentage      decimal.Decimal `json:"growth_percentage"`
	AverageOrderValue     decimal.Decimal `json:"average_order_value"`
	TopSellingProduct     *string         `json:"top_selling_product"`
	SlowestProduct        *string         `json:"slowest_product"`
	InventoryTurnoverRate decimal.Decimal `json:"inventory_turnover_rate"`
}

// Insights compares the current window with the previous one and ranks
// product movement.
func (s *Service) Insights(ctx context.Context, businessID uint, period string) (*Insights, error) {
	if period != PeriodWeekly && period != PeriodMonthly {
		return nil, apperr.Validation("Invalid period type")
	}
	if err := s.require(ctx, businessID, period, "Upgrade to unlock Business Insights"); err != nil {
		return nil, err
	}

	cur, _ := RollingWindow(period, s.now())
	current, err := s.store.Totals(ctx, businessID, cur)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.Totals(ctx, businessID, previousWindow(period, cur))
	if err != nil {
		return nil, err
	}

	out := &Insights{
		Period:          period,
		CurrentRevenue:  current.Sales,
		PreviousRevenue: previous.Sales,
	}
	switch {
	case !previous.Sales.IsZero():
		out.GrowthPercentage = percent(current.Sales.Sub(previous.Sales), previous.Sales)
	case current.Sales.IsPositive():
		out.GrowthPercentage = hundred
	default:
		out.GrowthPercentage = decimal.Zero
	}
	if current.Orders > 0 {
		out.AverageOrderValue = current.Sales.Div(decimal.NewFromInt(current.Orders)).RoundBank(2)
	}

	stats, err := s.store.ProductStats(ctx, businessID, cur, "")
	if err != nil {
		return nil, err
	}
	var sold int64
	if len(stats) > 0 {
		sort.SliceStable(stats, func(i, j int) bool { return stats[i].Quantity > stats[j].Quantity })
		top, slow := stats[0].Name, stats[len(stats)-1].Name
		out.TopSellingProduct, out.SlowestProduct = &top, &slow
		for _, st := range stats {
			sold += st.Quantity
		}
	}

	levels, err := s.store.StockLevels(ctx, businessID)
	if err != nil {
		return nil, err
	}
	var onHand int64
	for _, l := range levels {
		onHand += int64(l.Quantity)
	}
	if onHand > 0 {
		out.InventoryTurnoverRate = decimal.NewFromInt(sold).Div(decimal.NewFromInt(onHand)).RoundBank(2)
	}
	return out, nil
}

type RankedProduct struct {
	ProductID                    uint            `json:"product_id"`
	ProductName                  string          `json:"product_name"`
	Revenue                      decimal.Decimal `json:"revenue"`
	Cost                         decimal.Decimal `json:"cost"`
	Profit                       decimal.Decimal `json:"profit"`
	ProfitMarginPercentage       decimal.Decimal `json:"profit_margin_percentage"`
	ProfitContributionPercentage decimal.Decimal `json:"profit_contribution_percentage"`
}

type ProfitRanking struct {
	Period              string          `json:"period"`
	TotalBusinessProfit decimal.Decimal `json:"total_business_profit"`
	Top                 []RankedProduct `json:"top_5_products"`
	Bottom              []RankedProduct `json:"bottom_5_products"`
}

// ProfitRanking returns the five most and least profitable products.
func (s *Service) ProfitRanking(ctx context.Context, businessID uint, period string) (*ProfitRanking, error) {
	if period != PeriodWeekly && period != PeriodMonthly {
		return nil, apperr.Validation("Invalid period type")
	}
	if err := s.require(ctx, businessID, period, "Upgrade to unlock Profit Intelligence Engine"); err != nil {
		return nil, err
	}
	w, _ := RollingWindow(period, s.now())
	stats, err := s.store.ProductStats(ctx, businessID, w, "")
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	ranked := make([]RankedProduct, 0, len(stats))
	for _, st := range stats {
		profit := st.Revenue.Sub(st.Cost)
		total = total.Add(profit)
		ranked = append(ranked, RankedProduct{
			ProductID:   st.ProductID,
			ProductName: st.Name,
			Revenue:     st.Revenue,
			Cost:        st.Cost,
			Profit:      profit,
		})
	}
	for i := range ranked {
		ranked[i].ProfitMarginPercentage = percent(ranked[i].Profit, ranked[i].Revenue)
		ranked[i].ProfitContributionPercentage = percent(ranked[i].Profit, total)
	}

	desc := append([]RankedProduct(nil), ranked...)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Profit.GreaterThan(desc[j].Profit) })
	asc := append([]RankedProduct(nil), ranked...)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].Profit.LessThan(asc[j].Profit) })

	return &ProfitRanking{
		Period:              period,
		TotalBusinessProfit: total,
		Top:                 firstN(desc, 5),
		Bottom:              firstN(asc, 5),
	}, nil
}

func firstN(r []RankedProduct, n int) []RankedProduct {
	if len(r) > n {
		return r[:n]
	}
	return r
}

const (
	StockCritical = "critical"
	StockWarning  = "warning"
	StockHealthy  = "healthy"
	StockIdle     = "idle"
)

var stockUrgency = map[string]int{StockCritical: 0, StockWarning: 1, StockHealthy: 2, StockIdle: 3}

type StockForecast struct {
	ProductID              uint             `json:"product_id"`
	ProductName            string           `json:"product_name"`
	CurrentStock           int              `json:"current_stock"`
	AverageDailySales      decimal.Decimal  `json:"average_daily_sales"`
	EstimatedDaysRemaining *decimal.Decimal `json:"estimated_days_remaining"`
	StockStatus            string           `json:"stock_status"`
}

type StockPrediction struct {
	Period  string          `json:"period"`
	Results []StockForecast `json:"results"`
}

// StockPrediction estimates days of stock left from the average daily sales
// of the window, most urgent first.
func (s *Service) StockPrediction(ctx context.Context, businessID uint, period string) (*StockPrediction, error) {
	if period != PeriodWeekly && period != PeriodMonthly {
		return nil, apperr.Validation("Invalid period type")
	}
	if err := s.require(ctx, businessID, period, "Upgrade to unlock Smart Stock Prediction"); err != nil {
		return nil, err
	}
	w, _ := RollingWindow(period, s.now())

	levels, err := s.store.StockLevels(ctx, businessID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.ProductStats(ctx, businessID, w, "")
	if err != nil {
		return nil, err
	}
	sold := make(map[uint]int64, len(stats))
	for _, st := range stats {
		sold[st.ProductID] = st.Quantity
	}

	days := decimal.NewFromInt(int64(w.Days()))
	out := &StockPrediction{Period: period, Results: make([]StockForecast, 0, len(levels))}
	for _, l := range levels {
		f := StockForecast{
			ProductID:    l.ProductID,
			ProductName:  l.Name,
			CurrentStock: l.Quantity,
			StockStatus:  StockIdle,
		}
		if n := sold[l.ProductID]; n > 0 {
			f.AverageDailySales = decimal.NewFromInt(n).Div(days).RoundBank(2)
		}
		if f.AverageDailySales.IsPositive() {
			remaining := decimal.NewFromInt(int64(l.Quantity)).Div(f.AverageDailySales).RoundBank(2)
			f.EstimatedDaysRemaining = &remaining
			switch {
			case remaining.LessThanOrEqual(decimal.NewFromInt(3)):
				f.StockStatus = StockCritical
			case remaining.LessThanOrEqual(decimal.NewFromInt(7)):
				f.StockStatus = StockWarning
			default:
				f.StockStatus = StockHealthy
			}
		}
		out.Results = append(out.Results, f)
	}
	sort.SliceStable(out.Results, func(i, j int) bool {
		return stockUrgency[out.Results[i].StockStatus] < stockUrgency[out.Results[j].StockStatus]
	})
	return out, nil
}

type DeadStock struct {
	ProductID         uint            `json:"product_id"`
	ProductName       string          `json:"product_name"`
	CurrentStock      int             `json:"current_stock"`
	CapitalLocked     decimal.Decimal `json:"capital_locked"`
	Reason            string          `json:"reason,omitempty"`
	DaysSinceLastSale *int            `json:"days_since_last_sale,omitempty"`
}

type SlowMover struct {
	ProductID         uint   `json:"product_id"`
	ProductName       string `json:"product_name"`
	CurrentStock      int    `json:"current_stock"`
	DaysSinceLastSale int    `json:"days_since_last_sale"`
}

type ExpiringStock struct {
	ProductID    uint   `json:"product_id"`
	ProductName  string `json:"product_name"`
	ExpiryDate   string `json:"expiry_date"`
	DaysToExpiry int    `json:"days_to_expiry"`
	CurrentStock int    `json:"current_stock"`
}

type RiskReport struct {
	DeadStock          []DeadStock     `json:"dead_stock"`
	SlowMoving         []SlowMover     `json:"slow_moving"`
	ExpiringSoon       []ExpiringStock `json:"expiring_soon"`
	TotalCapitalLocked decimal.Decimal `json:"total_capital_locked"`
}

// RiskMonitor flags dead, slow and expiring stock. Either period's
// entitlement unlocks it.
func (s *Service) RiskMonitor(ctx context.Context, businessID uint, daysWithoutSales, expiryAlertDays int) (*RiskReport, error) {
	if daysWithoutSales < 1 || expiryAlertDays < 1 {
		return nil, apperr.Validation("days_without_sales and expiry_alert_days must be at least 1")
	}
	now := s.now()
	weekly, err := s.entitlements.HasActive(ctx, businessID, PeriodWeekly, now)
	if err != nil {
		return nil, err
	}
	monthly, err := s.entitlements.HasActive(ctx, businessID, PeriodMonthly, now)
	if err != nil {
		return nil, err
	}
	if !weekly && !monthly {
		return nil, apperr.PaymentRequired("Upgrade to unlock Risk Monitor")
	}

	levels, err := s.store.StockLevels(ctx, businessID)
	if err != nil {
		return nil, err
	}

	today := models.DateOf(now)
	out := &RiskReport{DeadStock: []DeadStock{}, SlowMoving: []SlowMover{}, ExpiringSoon: []ExpiringStock{}}
	total := decimal.Zero
	for _, l := range levels {
		capital := decimal.NewFromInt(int64(l.Quantity)).Mul(l.CostPrice)
		total = total.Add(capital)

		if l.LastSold == nil {
			out.DeadStock = append(out.DeadStock, DeadStock{
				ProductID:     l.ProductID,
				ProductName:   l.Name,
				CurrentStock:  l.Quantity,
				CapitalLocked: capital,
				Reason:        "Never sold",
			})
		} else {
			since := daysBetween(models.DateOf(*l.LastSold), today)
			switch {
			case since > daysWithoutSales:
				out.DeadStock = append(out.DeadStock, DeadStock{
					ProductID:         l.ProductID,
					ProductName:       l.Name,
					CurrentStock:      l.Quantity,
					CapitalLocked:     capital,
					DaysSinceLastSale: &since,
				})
			case since > daysWithoutSales/2:
				out.SlowMoving = append(out.SlowMoving, SlowMover{
					ProductID:         l.ProductID,
					ProductName:       l.Name,
					CurrentStock:      l.Quantity,
					DaysSinceLastSale: since,
				})
			}
		}

		if l.ExpiryDate != nil {
			left := daysBetween(today, models.DateOf(*l.ExpiryDate))
			if left >= 0 && left <= expiryAlertDays {
				out.ExpiringSoon = append(out.ExpiringSoon, ExpiringStock{
					ProductID:    l.ProductID,
					ProductName:  l.Name,
					ExpiryDate:   formatDate(*l.ExpiryDate),
					DaysToExpiry: left,
					CurrentStock: l.Quantity,
				})
			}
		}
	}
	out.TotalCapitalLocked = total.RoundBank(2)
	return out, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
