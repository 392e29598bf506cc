package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/middleware"
	"github.com/ken-eddy/simplesales/models"
	"github.com/ken-eddy/simplesales/reports"
)

// Paystack payloads are small; anything larger is rejected unread.
const maxWebhookBody = 1 << 20

type SubscriptionReader interface {
	Current(ctx context.Context, businessID uint, asOf time.Time) (*models.ExportAccess, error)
}

type PaymentService interface {
	Initialize(ctx context.Context, businessID uint, email, period string) (string, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (string, error)
}

type AdminService interface {
	Overview(ctx context.Context) (*reports.PlatformOverview, error)
	Subscriptions(ctx context.Context) (*reports.SubscriptionStats, error)
	Businesses(ctx context.Context, search string, page, limit int) (*reports.BusinessPage, error)
}

type BusinessController struct {
	subscriptions SubscriptionReader
	payments      PaymentService
	admin         AdminService
	now           func() time.Time
}

func NewBusinessController(subs SubscriptionReader, payments PaymentService, admin AdminService) *BusinessController {
	return &BusinessController{subscriptions: subs, payments: payments, admin: admin, now: time.Now}
}

type subscriptionStatus struct {
	Active     bool    `json:"active"`
	PeriodType *string `json:"period_type"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
}

func (bc *BusinessController) SubscriptionStatus(c *gin.Context) {
	sub, err := bc.subscriptions.Current(c.Request.Context(), businessID(c), bc.now())
	if err != nil {
		respondError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, subscriptionStatus{})
		return
	}

	start := sub.StartDate.Format(dateLayout)
	end := sub.EndDate.Format(dateLayout)
	c.JSON(http.StatusOK, subscriptionStatus{
		Active:     true,
		PeriodType: &sub.PeriodType,
		StartDate:  &start,
		EndDate:    &end,
	})
}

func (bc *BusinessController) InitializePayment(c *gin.Context) {
	id := middleware.Identity(c)
	if id == nil {
		respondError(c, apperr.Unauthorized("Authentication token required"))
		return
	}

	url, err := bc.payments.Initialize(c.Request.Context(), id.BusinessID, id.Email, c.Query("period_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": url})
}

// PaystackWebhook hands the raw body to the payment service; the signature
// covers the exact bytes Paystack sent.
func (bc *BusinessController) PaystackWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "Invalid webhook payload")
		return
	}

	status, err := bc.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader("x-paystack-signature"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (bc *BusinessController) AdminOverview(c *gin.Context) {
	out, err := bc.admin.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (bc *BusinessController) AdminSubscriptions(c *gin.Context) {
	out, err := bc.admin.Subscriptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (bc *BusinessController) GetBusinesses(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 10)
	if !ok {
		return
	}

	out, err := bc.admin.Businesses(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
