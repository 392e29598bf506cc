// Package payments sells entitlement periods through Paystack and turns
// verified charge events into entitlement rows.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

// Webhook outcomes reported back to Paystack.
const (
	StatusIgnored          = "ignored"
	StatusAlreadyProcessed = "already_processed"
	StatusActivated        = "subscription_activated"
)

// Store persists entitlement rows for the webhook.
type Store interface {
	BusinessExists(ctx context.Context, businessID uint) (bool, error)
	FindByReference(ctx context.Context, reference string) (*models.ExportAccess, error)

	// Activate calls build with the latest entitlement of the period type
	// ending on or after today (nil if none) and inserts what it returns.
	// Concurrent activations for one business are serialized.
	Activate(ctx context.Context, businessID uint, period string, today time.Time,
		build func(latest *models.ExportAccess) *models.ExportAccess) error
}

// Checkout starts a hosted payment.
type Checkout interface {
	Initialize(ctx context.Context, in InitRequest) (string, error)
}

// Entitlements is the part of the entitlement gate payments needs.
type Entitlements interface {
	Unexpired(ctx context.Context, businessID uint, period string, asOf time.Time) (bool, error)
	Invalidate(ctx context.Context, businessID uint)
}

// Prices are the server-controlled period prices in kobo.
type Prices struct {
	WeeklyKobo  int64
	MonthlyKobo int64
}

func (p Prices) For(period string) int64 {
	if period == models.PeriodWeekly {
		return p.WeeklyKobo
	}
	return p.MonthlyKobo
}

type Service struct {
	store        Store
	checkout     Checkout
	entitlements Entitlements
	prices       Prices
	secret       string
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(store Store, checkout Checkout, entitlements Entitlements, prices Prices, secret string, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		checkout:     checkout,
		entitlements: entitlements,
		prices:       prices,
		secret:       secret,
		logger:       logger,
		now:          time.Now,
	}
}

// Initialize returns a checkout URL for one period of the given type.
func (s *Service) Initialize(ctx context.Context, businessID uint, email, period string) (string, error) {
	if !models.ValidPeriod(period) {
		return "", apperr.Validation("Invalid period type")
	}
	running, err := s.entitlements.Unexpired(ctx, businessID, period, s.now())
	if err != nil {
		return "", err
	}
	if running {
		return "", apperr.Validation("Subscription already active")
	}

	url, err := s.checkout.Initialize(ctx, InitRequest{
		Email:  email,
		Amount: s.prices.For(period),
		Metadata: map[string]any{
			"business_id": businessID,
			"period_type": period,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "paystack initialize failed", "business_id", businessID, "error", err)
		if errors.Is(err, ErrProviderRejected) {
			return "", apperr.Validation("Payment initialization failed")
		}
		return "", apperr.Persistence("Unable to connect to payment provider", err)
	}
	return url, nil
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
		Metadata  struct {
			BusinessID json.RawMessage `json:"business_id"`
			PeriodType string          `json:"period_type"`
		} `json:"metadata"`
	} `json:"data"`
}

// HandleWebhook verifies and applies one Paystack event. Replays of a
// processed reference are acknowledged without changes.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	if s.secret == "" {
		return "", apperr.Persistence("Paystack secret key not configured", nil)
	}
	if signature == "" {
		s.logger.WarnContext(ctx, "paystack webhook without signature")
		return "", apperr.Unauthorized("Missing Paystack signature")
	}
	if !VerifySignature(s.secret, body, signature) {
		s.logger.WarnContext(ctx, "invalid paystack signature")
		return "", apperr.Unauthorized("Invalid Paystack signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", apperr.Validation("Invalid webhook payload")
	}
	if ev.Event != "charge.success" {
		return StatusIgnored, nil
	}

	businessID, ok := parseID(ev.Data.Metadata.BusinessID)
	period := ev.Data.Metadata.PeriodType
	if !ok || !models.ValidPeriod(period) {
		s.logger.ErrorContext(ctx, "invalid metadata in paystack webhook", "reference", ev.Data.Reference)
		return "", apperr.Validation("Invalid payment metadata")
	}
	reference := ev.Data.Reference
	if reference == "" {
		return "", apperr.Validation("Missing transaction reference")
	}
	expected := s.prices.For(period)
	if ev.Data.Amount != expected {
		s.logger.ErrorContext(ctx, "incorrect payment amount", "reference", reference, "amount", ev.Data.Amount, "expected", expected)
		return "", apperr.Validation("Incorrect payment amount")
	}

	exists, err := s.store.BusinessExists(ctx, businessID)
	if err != nil {
		return "", err
	}
	if !exists {
		s.logger.ErrorContext(ctx, "paystack webhook for unknown business", "business_id", businessID)
		return "", apperr.Validation("Invalid business")
	}

	if _, err := s.store.FindByReference(ctx, reference); err == nil {
		return StatusAlreadyProcessed, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	today := models.DateOf(s.now())
	err = s.store.Activate(ctx, businessID, period, today, func(latest *models.ExportAccess) *models.ExportAccess {
		start, end := NextPeriod(latest, period, today)
		return &models.ExportAccess{
			BusinessID:           businessID,
			PeriodType:           period,
			StartDate:            start,
			EndDate:              end,
			AmountPaid:           decimal.NewFromInt(expected).Shift(-2),
			TransactionReference: reference,
		}
	})
	if errors.Is(err, apperr.ErrConflict) {
		// The same reference was delivered twice concurrently.
		return StatusAlreadyProcessed, nil
	}
	if err != nil {
		return "", err
	}

	s.entitlements.Invalidate(ctx, businessID)
	s.logger.InfoContext(ctx, "subscription activated", "business_id", businessID, "period_type", period, "reference", reference)
	return StatusActivated, nil
}

// NextPeriod places a new period the day after latest ends, or today when
// nothing is running. Weekly periods span 7 days, monthly 30.
func NextPeriod(latest *models.ExportAccess, period string, today time.Time) (start, end time.Time) {
	start = models.DateOf(today)
	if latest != nil && !models.DateOf(latest.EndDate).Before(start) {
		start = models.DateOf(latest.EndDate).AddDate(0, 0, 1)
	}
	span := 30
	if period == models.PeriodWeekly {
		span = 7
	}
	return start, start.AddDate(0, 0, span-1)
}

// parseID accepts the business id as a JSON number or numeric string.
func parseID(raw json.RawMessage) (uint, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
