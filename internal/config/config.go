// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Config holds all configuration for our application
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	JWT      JWTConfig
	Security SecurityConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Cart     CartConfig
	Shipping ShippingConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Admin    AdminConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name         string
	Version      string
	Environment  string
	Debug        bool
	PublicURL    string
	CompanyName  string
	CompanyEmail string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MongoConfig contains MongoDB configuration, only used by the mongo cart persister
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	BcryptCost         int
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
}

// PaymentConfig contains MercadoPago configuration
type PaymentConfig struct {
	AccessToken     string
	BaseURL         string
	RedirectBaseURL string
	Currency        string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	AutoReturn      string
	NotificationURL string
	WebhookSecret   string
	Timeout         time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// CheckoutConfig contains checkout orchestration configuration
type CheckoutConfig struct {
	Timeout time.Duration
	LockTTL time.Duration
}

// CartConfig contains session cart configuration
type CartConfig struct {
	Persistence  string // redis, mongo or none
	TTL          time.Duration
	MaxSessions  int
	CookieName   string
	CookieMaxAge int
}

// ShippingConfig contains the postal code rate table
type ShippingConfig struct {
	Rates       map[string]decimal.Decimal
	DefaultRate decimal.Decimal
}

// StorageConfig contains file storage configuration
type StorageConfig struct {
	LocalPath  string
	PublicPath string
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	MaxSize           int64
	AllowedExtensions []string
	MaxProductImages  int
}

// AdminConfig contains the bootstrap admin account
type AdminConfig struct {
	Email             string
	Password          string
	LowStockThreshold int
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:         getEnv("APP_NAME", "Storefront Backend"),
			Version:      getEnv("APP_VERSION", "1.0.0"),
			Environment:  getEnv("APP_ENV", "development"),
			Debug:        getEnvAsBool("APP_DEBUG", true),
			PublicURL:    getEnv("APP_PUBLIC_URL", "http://localhost:8080"),
			CompanyName:  getEnv("COMPANY_NAME", "Storefront"),
			CompanyEmail: getEnv("COMPANY_EMAIL", "ventas@example.com"),
		},
		Server: ServerConfig{
			Port:         getEnv("APP_PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "storefront_db"),
			User:         getEnv("DB_USER", "storefront_user"),
			Password:     getEnv("DB_PASSWORD", "storefront_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DATABASE", "storefront"),
			Collection: getEnv("MONGO_CART_COLLECTION", "carts"),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-in-production"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRE", 12*time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		Payment: PaymentConfig{
			AccessToken:     getEnv("MP_ACCESS_TOKEN", ""),
			BaseURL:         getEnv("MP_BASE_URL", "https://api.mercadopago.com"),
			RedirectBaseURL: getEnv("MP_REDIRECT_BASE_URL", "https://www.mercadopago.com.ar/checkout/v1/redirect"),
			Currency:        getEnv("MP_CURRENCY", "ARS"),
			SuccessURL:      getEnv("MP_SUCCESS_URL", "http://localhost:8080/api/v1/payments/success"),
			FailureURL:      getEnv("MP_FAILURE_URL", "http://localhost:8080/api/v1/payments/failure"),
			PendingURL:      getEnv("MP_PENDING_URL", "http://localhost:8080/api/v1/payments/pending"),
			AutoReturn:      getEnv("MP_AUTO_RETURN", "approved"),
			NotificationURL: getEnv("MP_NOTIFICATION_URL", ""),
			WebhookSecret:   getEnv("MP_WEBHOOK_SECRET", ""),
			Timeout:         getEnvAsDuration("MP_TIMEOUT", 30*time.Second),
			BreakerFailures: getEnvAsInt("MP_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvAsDuration("MP_BREAKER_TIMEOUT", 30*time.Second),
		},
		Checkout: CheckoutConfig{
			Timeout: getEnvAsDuration("CHECKOUT_TIMEOUT", 45*time.Second),
			LockTTL: getEnvAsDuration("CHECKOUT_LOCK_TTL", 60*time.Second),
		},
		Cart: CartConfig{
			Persistence:  getEnv("CART_PERSISTENCE", "redis"),
			TTL:          getEnvAsDuration("CART_TTL", 24*time.Hour),
			MaxSessions:  getEnvAsInt("CART_MAX_SESSIONS", 10000),
			CookieName:   getEnv("CART_COOKIE_NAME", "session_id"),
			CookieMaxAge: getEnvAsInt("CART_COOKIE_MAX_AGE", 86400),
		},
		Shipping: ShippingConfig{
			Rates:       getEnvAsRateTable("SHIPPING_RATES", "1:1500,2:2500,5:3500,8:4500"),
			DefaultRate: getEnvAsDecimal("SHIPPING_DEFAULT_RATE", decimal.NewFromInt(3000)),
		},
		Storage: StorageConfig{
			LocalPath:  getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			PublicPath: getEnv("STORAGE_PUBLIC_PATH", "/uploads"),
		},
		Upload: UploadConfig{
			MaxSize:           getEnvAsInt64("UPLOAD_MAX_SIZE", 5242880), // 5MB
			AllowedExtensions: getEnvAsSlice("UPLOAD_ALLOWED_EXTENSIONS", []string{"jpg", "jpeg", "png", "webp"}),
			MaxProductImages:  getEnvAsInt("UPLOAD_MAX_PRODUCT_IMAGES", 4),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			Password: getEnv("ADMIN_PASSWORD", ""),

			LowStockThreshold: getEnvAsInt("ADMIN_LOW_STOCK_THRESHOLD", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	switch c.Cart.Persistence {
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required when CART_PERSISTENCE=mongo")
		}
	case "none":
	default:
		return fmt.Errorf("CART_PERSISTENCE must be one of redis, mongo, none: got %q", c.Cart.Persistence)
	}

	if _, err := currency.ParseISO(c.Payment.Currency); err != nil {
		return fmt.Errorf("MP_CURRENCY is not a valid ISO 4217 code: %w", err)
	}
	if c.IsProduction() && c.Payment.AccessToken == "" {
		return fmt.Errorf("MP_ACCESS_TOKEN is required in production")
	}

	if c.Checkout.Timeout <= 0 {
		return fmt.Errorf("CHECKOUT_TIMEOUT must be positive")
	}
	if c.Checkout.LockTTL < c.Checkout.Timeout {
		return fmt.Errorf("CHECKOUT_LOCK_TTL must not be shorter than CHECKOUT_TIMEOUT")
	}

	if c.Shipping.DefaultRate.IsNegative() {
		return fmt.Errorf("SHIPPING_DEFAULT_RATE must not be negative")
	}
	for prefix, rate := range c.Shipping.Rates {
		if rate.IsNegative() {
			return fmt.Errorf("shipping rate for prefix %s must not be negative", prefix)
		}
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsRateTable parses "prefix:rate,prefix:rate". Malformed entries are skipped.
func getEnvAsRateTable(key, defaultValue string) map[string]decimal.Decimal {
	return parseRateTable(getEnv(key, defaultValue))
}

func parseRateTable(raw string) map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(raw, ",") {
		prefix, rate, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || prefix == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			continue
		}
		rates[strings.TrimSpace(prefix)] = d
	}
	return rates
}
