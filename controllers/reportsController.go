package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/reports"
)

type ReportService interface {
	Summary(ctx context.Context, businessID uint, period string) (*reports.SalesReport, error)
	ProductProfit(ctx context.Context, businessID uint, period, search string, limit, offset int) (*reports.ProductProfitReport, error)
	Trend(ctx context.Context, businessID uint, period string) ([]reports.TrendPoint, error)
	PDF(ctx context.Context, businessID uint, reportType string, start, end time.Time) (*reports.Document, error)
	Export(ctx context.Context, businessID uint, period string) (*reports.Document, error)
	Insights(ctx context.Context, businessID uint, period string) (*reports.Insights, error)
	ProfitRanking(ctx context.Context, businessID uint, period string) (*reports.ProfitRanking, error)
	StockPrediction(ctx context.Context, businessID uint, period string) (*reports.StockPrediction, error)
	RiskMonitor(ctx context.Context, businessID uint, daysWithoutSales, expiryAlertDays int) (*reports.RiskReport, error)
}

type ReportsController struct {
	reports ReportService
}

func NewReportsController(svc ReportService) *ReportsController {
	return &ReportsController{reports: svc}
}

func (rc *ReportsController) Summary(period string) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := rc.reports.Summary(c.Request.Context(), businessID(c), period)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (rc *ReportsController) ProductProfit(period string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 20)
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return
		}

		report, err := rc.reports.ProductProfit(c.Request.Context(), businessID(c), period, c.Query("search"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (rc *ReportsController) Trend(c *gin.Context) {
	points, err := rc.reports.Trend(c.Request.Context(), businessID(c), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// GenerateReport streams a PDF. start and end are only read for sales
// reports.
func (rc *ReportsController) GenerateReport(c *gin.Context) {
	reportType := c.Query("type")

	var start, end time.Time
	if reportType == reports.PDFSales {
		var err error
		if start, err = parseDate(c.Query("start")); err != nil {
			badRequest(c, "start must be a YYYY-MM-DD date")
			return
		}
		if end, err = parseDate(c.Query("end")); err != nil {
			badRequest(c, "end must be a YYYY-MM-DD date")
			return
		}
	}

	doc, err := rc.reports.PDF(c.Request.Context(), businessID(c), reportType, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	sendDocument(c, doc)
}

func (rc *ReportsController) Export(period string) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := rc.reports.Export(c.Request.Context(), businessID(c), period)
		if err != nil {
			respondError(c, err)
			return
		}
		sendDocument(c, doc)
	}
}

func (rc *ReportsController) Insights(c *gin.Context) {
	out, err := rc.reports.Insights(c.Request.Context(), businessID(c), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (rc *ReportsController) ProfitRanking(c *gin.Context) {
	out, err := rc.reports.ProfitRanking(c.Request.Context(), businessID(c), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (rc *ReportsController) StockPrediction(c *gin.Context) {
	out, err := rc.reports.StockPrediction(c.Request.Context(), businessID(c), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (rc *ReportsController) RiskMonitor(c *gin.Context) {
	days, ok := queryInt(c, "days_without_sales", 30)
	if !ok {
		return
	}
	expiry, ok := queryInt(c, "expiry_alert_days", 7)
	if !ok {
		return
	}

	out, err := rc.reports.RiskMonitor(c.Request.Context(), businessID(c), days, expiry)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func sendDocument(c *gin.Context, doc *reports.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}
