package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/auth"
	"github.com/ken-eddy/simplesales/inventory"
	"github.com/ken-eddy/simplesales/middleware"
	"github.com/ken-eddy/simplesales/models"
	"github.com/ken-eddy/simplesales/reports"
	"github.com/ken-eddy/simplesales/sales"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asOwner stands in for the auth middleware.
func asOwner(c *gin.Context) {
	id := &auth.Identity{UserID: 7, BusinessID: 3, Email: "owner@shop.ng"}
	c.Set(middleware.KeyIdentity, id)
	c.Set(middleware.KeyBusinessID, id.BusinessID)
	c.Next()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.InsufficientStock("Rice"), http.StatusBadRequest},
		{apperr.NoInventory("Rice"), http.StatusBadRequest},
		{apperr.Unauthorized("no"), http.StatusUnauthorized},
		{apperr.PaymentRequired("pay"), http.StatusPaymentRequired},
		{apperr.Forbidden("no"), http.StatusForbidden},
		{apperr.NotFound("gone"), http.StatusNotFound},
		{apperr.Conflict("taken"), http.StatusConflict},
		{apperr.RetryableConflict("busy", nil), http.StatusConflict},
		{apperr.Persistence("down", nil), http.StatusInternalServerError},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type fakeEngine struct {
	got      sales.Request
	sale     *models.Sale
	replayed bool
	err      error
}

func (f *fakeEngine) Create(ctx context.Context, req sales.Request) (*models.Sale, bool, error) {
	f.got = req
	return f.sale, f.replayed, f.err
}

type fakeHistory struct {
	limit, offset int
}

func (f *fakeHistory) List(ctx context.Context, businessID uint, limit, offset int) ([]models.Sale, error) {
	f.limit, f.offset = limit, offset
	return []models.Sale{}, nil
}

func (f *fakeHistory) Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error) {
	return nil, apperr.NotFound("Sale not found")
}

func salesRouter(engine *fakeEngine, history *fakeHistory) *gin.Engine {
	sc := NewSalesController(engine, history)
	r := gin.New()
	r.Use(asOwner)
	r.POST("/sales", sc.CreateSale)
	r.GET("/sales", sc.GetSales)
	r.GET("/sales/:id", sc.GetSale)
	return r
}

func TestCreateSale(t *testing.T) {
	sale := &models.Sale{
		ID:          11,
		TotalAmount: decimal.RequireFromString("250.00"),
		Items: []models.SaleItem{
			{ProductID: 1, Quantity: 2, SellingPrice: decimal.RequireFromString("100"), LineTotal: decimal.RequireFromString("200")},
		},
	}
	body := `{"request_id":"r-1","items":[{"product_id":1,"quantity":2}]}`

	tests := []struct {
		name       string
		engine     *fakeEngine
		body       string
		wantStatus int
		wantReplay bool
		wantRetry  bool
	}{
		{"created", &fakeEngine{sale: sale}, body, http.StatusCreated, false, false},
		{"replayed", &fakeEngine{sale: sale, replayed: true}, body, http.StatusCreated, true, false},
		{"insufficient stock", &fakeEngine{err: apperr.InsufficientStock("Rice")}, body, http.StatusBadRequest, false, false},
		{"foreign product", &fakeEngine{err: apperr.NotFound("Product not found")}, body, http.StatusNotFound, false, false},
		{"lock timeout", &fakeEngine{err: apperr.RetryableConflict("Inventory is busy, retry", nil)}, body, http.StatusConflict, false, true},
		{"malformed json", &fakeEngine{sale: sale}, `{"items":`, http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(salesRouter(tt.engine, &fakeHistory{}), http.MethodPost, "/sales", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := w.Header().Get("Idempotent-Replayed") == "true"; got != tt.wantReplay {
				t.Errorf("replay header = %v, want %v", got, tt.wantReplay)
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.wantRetry {
				t.Errorf("Retry-After present = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestCreateSalePassesTenantAndItems(t *testing.T) {
	engine := &fakeEngine{sale: &models.Sale{ID: 1}}
	do(salesRouter(engine, &fakeHistory{}), http.MethodPost, "/sales",
		`{"request_id":"r-9","items":[{"product_id":4,"quantity":1},{"product_id":2,"quantity":3}]}`)

	if engine.got.BusinessID != 3 || engine.got.RequestID != "r-9" {
		t.Fatalf("request = %+v", engine.got)
	}
	if len(engine.got.Items) != 2 || engine.got.Items[0].ProductID != 4 || engine.got.Items[1].Quantity != 3 {
		t.Errorf("items = %+v, want request order preserved", engine.got.Items)
	}
}

func TestCreateSaleBody(t *testing.T) {
	engine := &fakeEngine{sale: &models.Sale{
		ID:          11,
		TotalAmount: decimal.RequireFromString("250.00"),
		Items:       []models.SaleItem{{ProductID: 1, Quantity: 2}},
	}}
	w := do(salesRouter(engine, &fakeHistory{}), http.MethodPost, "/sales", `{"request_id":"r","items":[{"product_id":1,"quantity":2}]}`)

	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "total_amount", "created_at", "items"} {
		if _, ok := got[key]; !ok {
			t.Errorf("response missing %q: %s", key, w.Body.String())
		}
	}
	if _, ok := got["request_id"]; ok {
		t.Error("request_id should not be echoed")
	}
	if got["total_amount"] != "250.00" {
		t.Errorf("total_amount = %v, want \"250.00\"", got["total_amount"])
	}
}

func TestGetSales(t *testing.T) {
	history := &fakeHistory{}
	r := salesRouter(&fakeEngine{}, history)

	if w := do(r, http.MethodGet, "/sales", ""); w.Code != http.StatusOK || history.limit != 20 || history.offset != 0 {
		t.Errorf("defaults: status %d limit %d offset %d", w.Code, history.limit, history.offset)
	}
	if w := do(r, http.MethodGet, "/sales?limit=5&offset=10", ""); w.Code != http.StatusOK || history.limit != 5 || history.offset != 10 {
		t.Errorf("explicit: status %d limit %d offset %d", w.Code, history.limit, history.offset)
	}
	if w := do(r, http.MethodGet, "/sales?limit=ten", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric limit: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/sales/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/sales/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown sale: status %d, want 404", w.Code)
	}
}

type fakeAuth struct {
	token    string
	err      error
	promoted string
}

func (f *fakeAuth) Signup(ctx context.Context, in auth.SignupInput) error { return f.err }

func (f *fakeAuth) Login(ctx context.Context, in auth.LoginInput) (string, error) {
	if in.Email != "owner@shop.ng" {
		return "", apperr.Unauthorized("Invalid credentials")
	}
	return f.token, f.err
}

func (f *fakeAuth) ForgotPassword(ctx context.Context, email string) error { return nil }

func (f *fakeAuth) ResetPassword(ctx context.Context, token, newPassword string) error { return f.err }

func (f *fakeAuth) PromoteAdmin(ctx context.Context, configured, presented, email string) error {
	if configured == "" || configured != presented {
		return apperr.Forbidden("Not allowed")
	}
	f.promoted = email
	return nil
}

func TestLogin(t *testing.T) {
	uc := NewUserController(&fakeAuth{token: "jwt-token"}, time.Hour, "s3cret")
	r := gin.New()
	r.POST("/auth/login", uc.Login)

	t.Run("json body", func(t *testing.T) {
		w := do(r, http.MethodPost, "/auth/login", `{"email":"owner@shop.ng","password":"pw"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"access_token":"jwt-token"`) || !strings.Contains(w.Body.String(), `"token_type":"bearer"`) {
			t.Errorf("body = %s", w.Body.String())
		}
		cookie := w.Header().Get("Set-Cookie")
		if !strings.Contains(cookie, "token=jwt-token") || !strings.Contains(cookie, "HttpOnly") {
			t.Errorf("Set-Cookie = %q", cookie)
		}
	})

	t.Run("oauth2 form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("username=owner@shop.ng&password=pw"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
	})

	t.Run("wrong credentials", func(t *testing.T) {
		w := do(r, http.MethodPost, "/auth/login", `{"email":"x@shop.ng","password":"pw"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestSignupAndPromote(t *testing.T) {
	fa := &fakeAuth{}
	uc := NewUserController(fa, time.Hour, "s3cret")
	r := gin.New()
	r.POST("/auth/signup", uc.CreateUser)
	r.POST("/internal/promote-admin", uc.PromoteAdmin)

	if w := do(r, http.MethodPost, "/auth/signup", `{"email":"not-an-email","password":"pw","business_name":"Shop"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid email: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodPost, "/auth/signup", `{"email":"a@shop.ng","password":"longenough1","business_name":"Shop"}`); w.Code != http.StatusCreated {
		t.Errorf("signup: status %d, want 201", w.Code)
	}

	fa.err = apperr.Conflict("Email already exists")
	if w := do(r, http.MethodPost, "/auth/signup", `{"email":"a@shop.ng","password":"longenough1","business_name":"Shop"}`); w.Code != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", w.Code)
	}

	if w := do(r, http.MethodPost, "/internal/promote-admin", `{"email":"a@shop.ng","secret":"guess"}`); w.Code != http.StatusForbidden {
		t.Errorf("wrong secret: status %d, want 403", w.Code)
	}
	if w := do(r, http.MethodPost, "/internal/promote-admin", `{"email":"a@shop.ng","secret":"s3cret"}`); w.Code != http.StatusOK || fa.promoted != "a@shop.ng" {
		t.Errorf("promote: status %d promoted %q", w.Code, fa.promoted)
	}
}

type fakeInventory struct {
	created inventory.CreateInput
}

func (f *fakeInventory) Create(ctx context.Context, businessID, productID uint, in inventory.CreateInput) (*models.Inventory, error) {
	f.created = in
	return &models.Inventory{ID: 1, ProductID: productID, QuantityAvailable: in.QuantityAvailable, LowStockThreshold: 5, ExpiryDate: in.ExpiryDate}, nil
}

func (f *fakeInventory) Update(ctx context.Context, businessID, productID uint, in inventory.UpdateInput) (*models.Inventory, error) {
	return nil, apperr.NotFound("Inventory not found")
}

func (f *fakeInventory) List(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	return nil, nil
}

func (f *fakeInventory) LowStock(ctx context.Context, businessID uint) ([]models.Inventory, error) {
	return []models.Inventory{{ID: 2, ProductID: 9, QuantityAvailable: 1, LowStockThreshold: 5}}, nil
}

func TestInventoryHandlers(t *testing.T) {
	inv := &fakeInventory{}
	pc := NewProductController(nil, inv)
	r := gin.New()
	r.Use(asOwner)
	r.GET("/inventory", pc.GetInventory)
	r.GET("/inventory/low-stock", pc.LowStockItems)
	r.POST("/inventory/:product_id", pc.CreateInventory)
	r.PUT("/inventory/:product_id", pc.UpdateInventory)

	w := do(r, http.MethodPost, "/inventory/4", `{"quantity_available":12,"expiry_date":"2026-06-30"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d (%s)", w.Code, w.Body.String())
	}
	if inv.created.ExpiryDate == nil || !inv.created.ExpiryDate.Equal(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expiry = %v", inv.created.ExpiryDate)
	}
	if !strings.Contains(w.Body.String(), `"expiry_date":"2026-06-30"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := do(r, http.MethodPost, "/inventory/4", `{"quantity_available":12,"expiry_date":"30/06/2026"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad date: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodPost, "/inventory/4", `{"low_stock_threshold":3}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing quantity: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodPut, "/inventory/4", `{"quantity_available":1}`); w.Code != http.StatusNotFound {
		t.Errorf("update missing: status %d, want 404", w.Code)
	}
	if w := do(r, http.MethodGet, "/inventory", ""); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list: status %d body %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/inventory/low-stock", ""); !strings.Contains(w.Body.String(), `"is_low":true`) {
		t.Errorf("low stock body = %s", w.Body.String())
	}
}

type fakeReports struct {
	ReportService
	pdfType    string
	start, end time.Time
}

func (f *fakeReports) PDF(ctx context.Context, businessID uint, reportType string, start, end time.Time) (*reports.Document, error) {
	f.pdfType, f.start, f.end = reportType, start, end
	return &reports.Document{Filename: reportType + "_report.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func (f *fakeReports) Export(ctx context.Context, businessID uint, period string) (*reports.Document, error) {
	if period != reports.PeriodDaily {
		return nil, apperr.PaymentRequired("Please pay to download this export")
	}
	return &reports.Document{Filename: "daily_sales.xlsx", ContentType: reports.XLSXContentType, Data: []byte("xlsx")}, nil
}

func TestDocuments(t *testing.T) {
	fr := &fakeReports{}
	rc := NewReportsController(fr)
	r := gin.New()
	r.Use(asOwner)
	r.GET("/reports/pdf", rc.GenerateReport)
	r.GET("/exports/daily", rc.Export(reports.PeriodDaily))
	r.GET("/exports/weekly", rc.Export(reports.PeriodWeekly))

	w := do(r, http.MethodGet, "/reports/pdf?type=sales&start=2026-03-01&end=2026-03-15", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: status %d type %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !fr.end.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", fr.end)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=sales_report.pdf" {
		t.Errorf("Content-Disposition = %q", got)
	}

	if w := do(r, http.MethodGet, "/reports/pdf?type=sales&start=yesterday&end=2026-03-15", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad start: status %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/reports/pdf?type=low-stock", ""); w.Code != http.StatusOK || fr.pdfType != reports.PDFLowStock {
		t.Errorf("low stock pdf: status %d type %q", w.Code, fr.pdfType)
	}

	if w := do(r, http.MethodGet, "/exports/daily", ""); w.Code != http.StatusOK || w.Header().Get("Content-Type") != reports.XLSXContentType {
		t.Errorf("daily export: status %d type %q", w.Code, w.Header().Get("Content-Type"))
	}
	if w := do(r, http.MethodGet, "/exports/weekly", ""); w.Code != http.StatusPaymentRequired {
		t.Errorf("weekly export: status %d, want 402", w.Code)
	}
}

type fakeSubscriptions struct {
	current *models.ExportAccess
}

func (f fakeSubscriptions) Current(ctx context.Context, businessID uint, asOf time.Time) (*models.ExportAccess, error) {
	return f.current, nil
}

type fakePayments struct {
	body      string
	signature string
	email     string
}

func (f *fakePayments) Initialize(ctx context.Context, businessID uint, email, period string) (string, error) {
	if period != models.PeriodWeekly && period != models.PeriodMonthly {
		return "", apperr.Validation("Invalid period type")
	}
	f.email = email
	return "https://checkout.paystack.com/abc", nil
}

func (f *fakePayments) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	f.body, f.signature = string(body), signature
	if signature == "" {
		return "", apperr.Unauthorized("Missing Paystack signature")
	}
	return "subscription_activated", nil
}

func TestSubscriptionAndPayments(t *testing.T) {
	pay := &fakePayments{}
	active := &models.ExportAccess{
		PeriodType: models.PeriodWeekly,
		StartDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}

	idle := NewBusinessController(fakeSubscriptions{}, pay, nil)
	paid := NewBusinessController(fakeSubscriptions{current: active}, pay, nil)
	r := gin.New()
	r.POST("/webhooks/paystack", idle.PaystackWebhook)
	owner := r.Group("/", asOwner)
	owner.GET("/subscription/status", idle.SubscriptionStatus)
	owner.GET("/paid/status", paid.SubscriptionStatus)
	owner.POST("/payments/initialize", idle.InitializePayment)

	w := do(r, http.MethodGet, "/subscription/status", "")
	if strings.TrimSpace(w.Body.String()) != `{"active":false,"period_type":null,"start_date":null,"end_date":null}` {
		t.Errorf("inactive status = %s", w.Body.String())
	}
	w = do(r, http.MethodGet, "/paid/status", "")
	if !strings.Contains(w.Body.String(), `"start_date":"2026-03-10"`) || !strings.Contains(w.Body.String(), `"active":true`) {
		t.Errorf("active status = %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/payments/initialize?period_type=weekly", "")
	if w.Code != http.StatusOK || pay.email != "owner@shop.ng" || !strings.Contains(w.Body.String(), "payment_url") {
		t.Errorf("initialize: status %d email %q body %s", w.Code, pay.email, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/payments/initialize?period_type=yearly", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad period: status %d, want 400", w.Code)
	}

	raw := `{"event":"charge.success","data":{"reference":"ref-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(raw))
	req.Header.Set("x-paystack-signature", "abc123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || pay.body != raw || pay.signature != "abc123" {
		t.Errorf("webhook: status %d body %q sig %q", rec.Code, pay.body, pay.signature)
	}
	if w := do(r, http.MethodPost, "/webhooks/paystack", raw); w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned webhook: status %d, want 401", w.Code)
	}
}
