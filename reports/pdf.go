package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

const (
	PDFSales        = "sales"
	PDFCurrentStock = "current-stock"
	PDFLowStock     = "low-stock"
)

type pdfRow struct {
	Date       string
	Product    string
	Quantity   int
	Price      decimal.Decimal
	TotalValue decimal.Decimal
}

// PDF renders a sales, current-stock or low-stock report. Sales reports
// reaching past the free history window need an active entitlement.
func (s *Service) PDF(ctx context.Context, businessID uint, reportType string, start, end time.Time) (*Document, error) {
	var (
		rows  []pdfRow
		title string
		w     Window
	)

	switch reportType {
	case PDFSales:
		w = Window{models.DateOf(start), models.DateOf(end)}
		if w.To.Before(w.From) {
			return nil, apperr.Validation("end date must not be before start date")
		}
		if w.Days() > 366 {
			return nil, apperr.Validation("date range must not exceed 366 days")
		}
		if err := s.requireHistory(ctx, businessID, w.From); err != nil {
			return nil, err
		}
		sales, err := s.store.SaleRows(ctx, businessID, w)
		if err != nil {
			return nil, err
		}
		for _, r := range sales {
			rows = append(rows, pdfRow{
				Date:       formatDate(r.SoldAt),
				Product:    r.Product,
				Quantity:   r.Quantity,
				Price:      r.UnitPrice,
				TotalValue: r.LineTotal,
			})
		}
		title = "Sales Report"

	case PDFCurrentStock, PDFLowStock:
		levels, err := s.store.StockLevels(ctx, businessID)
		if err != nil {
			return nil, err
		}
		for _, l := range levels {
			if reportType == PDFLowStock && l.Quantity > l.Threshold {
				continue
			}
			rows = append(rows, pdfRow{
				Product:    l.Name,
				Quantity:   l.Quantity,
				Price:      l.SellingPrice,
				TotalValue: l.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
			})
		}
		title = "Current Stock Report"
		if reportType == PDFLowStock {
			title = "Low Stock Report"
		}

	default:
		return nil, apperr.Validation("Invalid report type")
	}

	data, err := renderPDF(rows, title, reportType, w)
	if err != nil {
		s.logger.ErrorContext(ctx, "pdf rendering failed", "business_id", businessID, "type", reportType, "error", err)
		return nil, apperr.Persistence("Unable to build report", err)
	}
	return &Document{
		Filename:    fmt.Sprintf("%s_report.pdf", reportType),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// requireHistory rejects windows starting before the free history cutoff
// unless the business holds any active entitlement.
func (s *Service) requireHistory(ctx context.Context, businessID uint, from time.Time) error {
	cutoff := models.DateOf(s.now()).AddDate(0, 0, -(s.freeDays - 1))
	if !from.Before(cutoff) {
		return nil
	}
	paid, err := s.entitlements.AnyActive(ctx, businessID, s.now())
	if err != nil {
		return err
	}
	if !paid {
		return apperr.PaymentRequired("Upgrade to access historical sales")
	}
	return nil
}

func renderPDF(rows []pdfRow, title, reportType string, w Window) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)

	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	if reportType == PDFSales {
		pdf.CellFormat(0, 10, fmt.Sprintf("Date Range: %s to %s", formatDate(w.From), formatDate(w.To)), "", 1, "L", false, 0, "")
		pdf.Ln(5)

		var items int
		value := decimal.Zero
		for _, row := range rows {
			items += row.Quantity
			value = value.Add(row.TotalValue)
		}
		pdf.CellFormat(0, 10, fmt.Sprintf("Total Items Sold: %d", items), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Total Sales: NGN %s", value.StringFixed(2)), "", 1, "L", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(30, 10, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 10, "Product", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 10, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 10, "Price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 10, "Total Value", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range rows {
		pdf.CellFormat(30, 10, row.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 10, tr(row.Product), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 10, fmt.Sprintf("%d", row.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 10, "NGN "+row.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 10, "NGN "+row.TotalValue.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
