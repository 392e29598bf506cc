package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Document is a rendered download.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

var exportHeader = []interface{}{"Date", "Sale ID", "Product", "Quantity", "Unit Price", "Line Total", "Total Sale Amount"}

// exportWindow: daily is today, weekly the last 7 days, monthly the current
// calendar month to date.
func exportWindow(period string, now time.Time) (Window, string, string, error) {
	today := models.DateOf(now)
	switch period {
	case PeriodDaily:
		return Window{today, today}, "Daily Sales", fmt.Sprintf("daily_sales_%s.xlsx", formatDate(today)), nil
	case PeriodWeekly:
		from := today.AddDate(0, 0, -6)
		return Window{from, today}, "Weekly Sales", fmt.Sprintf("weekly_sales_%s_to_%s.xlsx", formatDate(from), formatDate(today)), nil
	case PeriodMonthly:
		from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{from, today}, "Monthly Sales", fmt.Sprintf("monthly_sales_%s.xlsx", today.Format("2006_01")), nil
	}
	return Window{}, "", "", apperr.Validation("Invalid period type")
}

// Export renders the sales of a period as a spreadsheet. Weekly and monthly
// exports need one entitlement of that type covering the whole window.
func (s *Service) Export(ctx context.Context, businessID uint, period string) (*Document, error) {
	w, sheet, filename, err := exportWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	if period != PeriodDaily {
		ok, err := s.entitlements.Covering(ctx, businessID, period, w.From, w.To)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.PaymentRequired("Please pay to download this export")
		}
	}

	rows, err := s.store.SaleRows(ctx, businessID, w)
	if err != nil {
		return nil, err
	}
	data, err := buildWorkbook(sheet, rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "export rendering failed", "business_id", businessID, "period", period, "error", err)
		return nil, apperr.Persistence("Unable to build export", err)
	}
	s.logger.InfoContext(ctx, "export generated", "business_id", businessID, "period", period, "rows", len(rows))
	return &Document{Filename: filename, ContentType: XLSXContentType, Data: data}, nil
}

// buildWorkbook writes one row per sale item, a blank row and the grand total
// of distinct sales.
func buildWorkbook(sheet string, rows []SaleRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}

	total := decimal.Zero
	seen := make(map[uint]struct{})
	line := 2
	for _, r := range rows {
		if _, ok := seen[r.SaleID]; !ok {
			seen[r.SaleID] = struct{}{}
			total = total.Add(r.SaleTotal)
		}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		values := []interface{}{
			formatDate(r.SoldAt),
			r.SaleID,
			r.Product,
			r.Quantity,
			r.UnitPrice.InexactFloat64(),
			r.LineTotal.InexactFloat64(),
			r.SaleTotal.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		line++
	}

	cell, _ := excelize.CoordinatesToCellName(6, line+1)
	footer := []interface{}{"TOTAL SALES AMOUNT (₦):", total.Round(2).InexactFloat64()}
	if err := f.SetSheetRow(sheet, cell, &footer); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
