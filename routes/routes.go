package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/controllers"
	"github.com/ken-eddy/simplesales/middleware"
	"github.com/ken-eddy/simplesales/reports"
)

// Deps is everything the route table hands to handlers and middleware.
type Deps struct {
	Users    *controllers.UserController
	Products *controllers.ProductController
	Sales    *controllers.SalesController
	Reports  *controllers.ReportsController
	Business *controllers.BusinessController

	Auth    middleware.Authenticator
	Limiter middleware.Limiter
	Logger  *slog.Logger

	// Health reports whether the backing stores answer.
	Health func(ctx context.Context) error
}

// Options configures the engine built by NewRouter.
type Options struct {
	CORSOrigins []string

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is believed. Empty trusts none, so rate limits key on
	// the connecting address.
	TrustedProxies []string

	Logger *slog.Logger
}

// NewRouter returns a gin engine with recovery, request logging and CORS
// installed.
func NewRouter(o Options) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(o.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(o.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     o.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return router, nil
}

func SetupRoutes(router *gin.Engine, d Deps) {
	perMinute := func(name string, n int) gin.HandlerFunc {
		return middleware.RateLimit(d.Limiter, name, n, time.Minute, d.Logger)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Simple Sales API is running"})
	})
	router.GET("/healthz", func(c *gin.Context) {
		if err := d.Health(c.Request.Context()); err != nil {
			d.Logger.ErrorContext(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	auth := router.Group("/auth")
	{
		auth.POST("/signup", perMinute("signup", 3), d.Users.CreateUser)
		auth.POST("/login", perMinute("login", 5), d.Users.Login)
		auth.POST("/logout", d.Users.Logout)
		auth.POST("/forgot-password", perMinute("forgot-password", 3), d.Users.ForgotPassword)
		auth.POST("/reset-password", d.Users.ResetPassword)
	}
	router.POST("/webhooks/paystack", perMinute("paystack-webhook", 20), d.Business.PaystackWebhook)
	router.POST("/internal/promote-admin", d.Users.PromoteAdmin)

	// Protected routes
	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(d.Auth))
	{
		protected.GET("/auth/session", controllers.VerifyAuth)

		products := protected.Group("/products")
		{
			products.GET("", d.Products.GetProducts)
			products.POST("", d.Products.CreateProduct)
			products.GET("/:id", d.Products.GetProduct)
			products.PUT("/:id", d.Products.UpdateProduct)
			products.DELETE("/:id", d.Products.DeleteProduct)
		}

		inventory := protected.Group("/inventory")
		{
			inventory.GET("", d.Products.GetInventory)
			inventory.GET("/low-stock", d.Products.LowStockItems)
			inventory.POST("/:product_id", d.Products.CreateInventory)
			inventory.PUT("/:product_id", d.Products.UpdateInventory)
		}

		sales := protected.Group("/sales")
		{
			sales.POST("", perMinute("sales", 30), d.Sales.CreateSale)
			sales.GET("", d.Sales.GetSales)
			sales.GET("/:id", d.Sales.GetSale)
		}

		protected.GET("/subscription/status", d.Business.SubscriptionStatus)
		protected.POST("/payments/initialize", d.Business.InitializePayment)

		rep := protected.Group("/reports")
		{
			for _, period := range []string{reports.PeriodDaily, reports.PeriodWeekly, reports.PeriodMonthly} {
				rep.GET("/"+period, d.Reports.Summary(period))
				rep.GET("/"+period+"/products", d.Reports.ProductProfit(period))
			}
			rep.GET("/trend", d.Reports.Trend)
			rep.GET("/pdf", d.Reports.GenerateReport)
		}

		exports := protected.Group("/exports")
		{
			exports.GET("/daily", perMinute("export-daily", 10), d.Reports.Export(reports.PeriodDaily))
			exports.GET("/weekly", perMinute("export-weekly", 5), d.Reports.Export(reports.PeriodWeekly))
			exports.GET("/monthly", perMinute("export-monthly", 5), d.Reports.Export(reports.PeriodMonthly))
		}

		protected.GET("/insights/summary", d.Reports.Insights)

		premium := protected.Group("/premium")
		{
			premium.GET("/profit-ranking", d.Reports.ProfitRanking)
			premium.GET("/stock-prediction", d.Reports.StockPrediction)
			premium.GET("/risk-monitor", d.Reports.RiskMonitor)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/overview", d.Business.AdminOverview)
			admin.GET("/subscriptions", d.Business.AdminSubscriptions)
			admin.GET("/businesses", d.Business.GetBusinesses)
		}
	}
}
