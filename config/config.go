package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. It is built once at startup and passed
// to the components that need it.
type Config struct {
	Env  string
	Port string

	DBDriver          string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBDebug           bool

	// SaleLockTimeout bounds how long a sale waits for an inventory row lock.
	SaleLockTimeout time.Duration

	JWTSecret        string
	AccessTokenTTL   time.Duration
	PasswordResetTTL time.Duration
	FrontendResetURL string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	EntitlementCacheTTL time.Duration

	PaystackSecretKey string
	PaystackBaseURL   string
	WeeklyPriceKobo   int64
	MonthlyPriceKobo  int64

	ResendAPIKey    string
	ResendFromEmail string

	CORSOrigins         []string
	TrustedProxies      []string
	InternalAdminSecret string
	FreeHistoryDays     int
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "simplesales"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		FrontendResetURL: getEnv("FRONTEND_RESET_URL", "http://localhost:5500/reset-password.html"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),

		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		ResendFromEmail: os.Getenv("RESEND_FROM_EMAIL"),

		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://127.0.0.1:5500,http://localhost:5500")),
		TrustedProxies:      splitList(os.Getenv("TRUSTED_PROXIES")),
		InternalAdminSecret: os.Getenv("INTERNAL_ADMIN_SECRET"),
	}

	var err error
	if cfg.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.SaleLockTimeout, err = getDuration("SALE_LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PasswordResetTTL, err = getDuration("PASSWORD_RESET_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.EntitlementCacheTTL, err = getDuration("ENTITLEMENT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	weekly, err := getInt("WEEKLY_PRICE_KOBO", 15000)
	if err != nil {
		return nil, err
	}
	monthly, err := getInt("MONTHLY_PRICE_KOBO", 50000)
	if err != nil {
		return nil, err
	}
	cfg.WeeklyPriceKobo, cfg.MonthlyPriceKobo = int64(weekly), int64(monthly)
	if cfg.FreeHistoryDays, err = getInt("FREE_HISTORY_DAYS", 7); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is not set")
	}
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SaleLockTimeout <= 0 {
		return errors.New("config: SALE_LOCK_TIMEOUT must be positive")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	if c.FreeHistoryDays < 1 {
		return errors.New("config: FREE_HISTORY_DAYS must be at least 1")
	}
	if len(c.CORSOrigins) == 0 {
		return errors.New("config: CORS_ORIGINS must list at least one origin")
	}
	return nil
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBPassword, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
