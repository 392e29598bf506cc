package store

import (
	"context"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/database"
	"github.com/ken-eddy/simplesales/models"
	"github.com/ken-eddy/simplesales/reports"
)

const (
	saleItemsJoin = "JOIN sales ON sales.id = sale_items.sale_id"
	productsJoin  = "JOIN products ON products.id = sale_items.product_id"
	inWindow      = "sales.business_id = ? AND sales.created_at >= ? AND sales.created_at < ?"
)

type ReportStore struct {
	db *gorm.DB
}

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) Totals(ctx context.Context, businessID uint, w reports.Window) (reports.Totals, error) {
	var head struct {
		Sales  decimal.Decimal
		Orders int64
	}
	err := s.db.Table("sales").
		Select("COALESCE(SUM(total_amount), 0) AS sales, COUNT(id) AS orders").
		Where(inWindow, businessID, w.Since(), w.Until()).
		Scan(&head).Error
	if err != nil {
		return reports.Totals{}, database.Classify(err)
	}

	var lines struct {
		Items int64
		Cost  decimal.Decimal
	}
	err = s.db.Table("sale_items").
		Select("COALESCE(SUM(sale_items.quantity), 0) AS items, COALESCE(SUM(products.cost_price * sale_items.quantity), 0) AS cost").
		Joins(saleItemsJoin).
		Joins(productsJoin).
		Where(inWindow, businessID, w.Since(), w.Until()).
		Scan(&lines).Error
	if err != nil {
		return reports.Totals{}, database.Classify(err)
	}

	return reports.Totals{Sales: head.Sales, Cost: lines.Cost, Orders: head.Orders, Items: lines.Items}, nil
}

func (s *ReportStore) ProductStats(ctx context.Context, businessID uint, w reports.Window, search string) ([]reports.ProductStat, error) {
	q := s.db.Table("sale_items").
		Select("products.id AS product_id, products.name AS name, "+
			"COALESCE(SUM(sale_items.quantity), 0) AS quantity, "+
			"COALESCE(SUM(sale_items.line_total), 0) AS revenue, "+
			"COALESCE(SUM(products.cost_price * sale_items.quantity), 0) AS cost").
		Joins(saleItemsJoin).
		Joins(productsJoin).
		Where(inWindow, businessID, w.Since(), w.Until())
	if search != "" {
		q = q.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var stats []reports.ProductStat
	err := q.Group("products.id, products.name").
		Order("revenue DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return stats, nil
}

func (s *ReportStore) StockLevels(ctx context.Context, businessID uint) ([]reports.StockLevel, error) {
	var levels []reports.StockLevel
	err := s.db.Table("inventory").
		Select("products.id AS product_id, products.name AS name, "+
			"products.cost_price AS cost_price, products.selling_price AS selling_price, "+
			"inventory.quantity_available AS quantity, inventory.low_stock_threshold AS threshold, "+
			"inventory.expiry_date AS expiry_date, "+
			"(SELECT MAX(sales.created_at) FROM sales JOIN sale_items ON sale_items.sale_id = sales.id "+
			"WHERE sale_items.product_id = products.id) AS last_sold").
		Joins("JOIN products ON products.id = inventory.product_id").
		Where("products.business_id = ?", businessID).
		Order("products.name ASC").
		Scan(&levels).Error
	if err != nil {
		return nil, database.Classify(err)
	}

	return levels, nil
}

func (s *ReportStore) SaleRows(ctx context.Context, businessID uint, w reports.Window) ([]reports.SaleRow, error) {
	var rows []reports.SaleRow
	err := s.db.Table("sale_items").
		Select("sales.created_at AS sold_at, sales.id AS sale_id, "+
			"COALESCE(products.name, 'Deleted product') AS product, sale_items.quantity AS quantity, "+
			"sale_items.selling_price AS unit_price, sale_items.line_total AS line_total, "+
			"sales.total_amount AS sale_total").
		Joins(saleItemsJoin).
		Joins("LEFT JOIN products ON products.id = sale_items.product_id").
		Where(inWindow, businessID, w.Since(), w.Until()).
		Order("sales.created_at ASC, sales.id ASC, sale_items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

// PlatformStore answers the cross-tenant admin queries.
type PlatformStore struct {
	db *gorm.DB
}

func NewPlatformStore(db *gorm.DB) *PlatformStore {
	return &PlatformStore{db: db}
}

func (s *PlatformStore) count(model interface{}, where string, args ...interface{}) (int64, error) {
	var n int64
	q := s.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, database.Classify(err)
	}
	return n, nil
}

func (s *PlatformStore) sum(table, column, where string, args ...interface{}) (decimal.Decimal, error) {
	var out struct{ Total decimal.Decimal }
	q := s.db.Table(table).Select("COALESCE(SUM(" + column + "), 0) AS total")
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Scan(&out).Error; err != nil {
		return decimal.Zero, database.Classify(err)
	}
	return out.Total, nil
}

func (s *PlatformStore) Overview(ctx context.Context, monthStart time.Time) (*reports.PlatformOverview, error) {
	var (
		o   reports.PlatformOverview
		err error
	)
	counts := []struct {
		dst   *int64
		model interface{}
		where string
	}{
		{&o.TotalBusinesses, &models.Business{}, ""},
		{&o.BusinessesThisMonth, &models.Business{}, "created_at >= ?"},
		{&o.TotalUsers, &models.User{}, ""},
		{&o.TotalProducts, &models.Product{}, ""},
		{&o.TotalSales, &models.Sale{}, ""},
		{&o.SalesThisMonth, &models.Sale{}, "created_at >= ?"},
	}
	for _, c := range counts {
		var args []interface{}
		if c.where != "" {
			args = append(args, monthStart)
		}
		if *c.dst, err = s.count(c.model, c.where, args...); err != nil {
			return nil, err
		}
	}
	if o.TotalRevenue, err = s.sum("sales", "total_amount", ""); err != nil {
		return nil, err
	}
	if o.RevenueThisMonth, err = s.sum("sales", "total_amount", "created_at >= ?", monthStart); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PlatformStore) Subscriptions(ctx context.Context, today time.Time) (*reports.SubscriptionStats, error) {
	var (
		st  reports.SubscriptionStats
		err error
	)
	active := "period_type = ? AND start_date <= ? AND end_date >= ?"
	expired := "period_type = ? AND end_date < ?"
	ea := &models.ExportAccess{}

	if st.ActiveWeekly, err = s.count(ea, active, models.PeriodWeekly, today, today); err != nil {
		return nil, err
	}
	if st.ActiveMonthly, err = s.count(ea, active, models.PeriodMonthly, today, today); err != nil {
		return nil, err
	}
	if st.ExpiredWeekly, err = s.count(ea, expired, models.PeriodWeekly, today); err != nil {
		return nil, err
	}
	if st.ExpiredMonthly, err = s.count(ea, expired, models.PeriodMonthly, today); err != nil {
		return nil, err
	}
	if st.TotalEver, err = s.count(ea, ""); err != nil {
		return nil, err
	}
	if st.TotalRevenue, err = s.sum("export_access", "amount_paid", ""); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PlatformStore) Businesses(ctx context.Context, search string, limit, offset int) ([]reports.BusinessSummary, int64, error) {
	q := s.db.Table("businesses").Joins("JOIN users ON users.business_id = businesses.id")
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(businesses.name) LIKE ? OR LOWER(users.email) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, database.Classify(err)
	}

	var rows []reports.BusinessSummary
	err := q.Select("businesses.id AS business_id, businesses.name AS business_name, " +
		"users.email AS owner_email, businesses.is_suspended AS is_suspended, businesses.created_at AS created_at, " +
		"(SELECT COUNT(*) FROM products WHERE products.business_id = businesses.id) AS total_products, " +
		"(SELECT COUNT(*) FROM sales WHERE sales.business_id = businesses.id) AS total_sales, " +
		"(SELECT COALESCE(SUM(sales.total_amount), 0) FROM sales WHERE sales.business_id = businesses.id) AS total_revenue").
		Order("businesses.id ASC, users.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, database.Classify(err)
	}
	return rows, total, nil
}
