package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Email     EmailConfig     `yaml:"email"`
	Payment   PaymentConfig   `yaml:"payment"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
}

// StorageConfig selects the ledger engine
type StorageConfig struct {
	Engine   string `yaml:"engine"`    // "postgres" or "bolt"
	BoltPath string `yaml:"bolt_path"` // file for the bolt engine
}

// RedisConfig contains the payment lease store settings. An empty Addr
// selects the in-process guard.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// EmailConfig selects the notifier
type EmailConfig struct {
	Provider       string `yaml:"provider"` // "smtp", "sendgrid" or "none"
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromName       string `yaml:"from_name"`
	FromAddress    string `yaml:"from_address"`
	AdminAddress   string `yaml:"admin_address"`
}

// PaymentConfig contains processor settings
type PaymentConfig struct {
	StripeSecretKey        string `yaml:"stripe_secret_key"`
	StripeCurrency         string `yaml:"stripe_currency"`
	ProcessorTimeoutSecond int    `yaml:"processor_timeout_seconds"`
	LeaseTTLSeconds        int    `yaml:"lease_ttl_seconds"`
	SandboxEnabled         bool   `yaml:"sandbox_enabled"`
}

// ProcessorTimeout returns the bound on a single processor call
func (p PaymentConfig) ProcessorTimeout() time.Duration {
	return time.Duration(p.ProcessorTimeoutSecond) * time.Second
}

// LeaseTTL returns how long a payment attempt holds its idempotency lease
func (p PaymentConfig) LeaseTTL() time.Duration {
	return time.Duration(p.LeaseTTLSeconds) * time.Second
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BillingConfig overrides the built-in rate table. Missing entries keep
// their defaults.
type BillingConfig struct {
	CommissionRates map[string]float64    `yaml:"commission_rates"`
	FixedPrices     map[string]float64    `yaml:"fixed_prices"`
	Packages        []PackageConfig       `yaml:"packages"`
	PaymentMethods  []PaymentMethodConfig `yaml:"payment_methods"`
}

// PackageConfig is one purchasable credit package
type PackageConfig struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Credits  float64 `yaml:"credits"`
	Bonus    float64 `yaml:"bonus"`
	PriceUSD float64 `yaml:"price_usd"`
}

// PaymentMethodConfig enables a payment method and its extra bonus
type PaymentMethodConfig struct {
	Name         string  `yaml:"name"`
	Enabled      bool    `yaml:"enabled"`
	BonusPercent float64 `yaml:"bonus_percent"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	FailStalePayments   string `yaml:"fail_stale_payments"`
	SendDailyDigest     string `yaml:"send_daily_digest"`
	StalePendingMinutes int    `yaml:"stale_pending_minutes"`
}

// StalePendingAge returns how old a pending purchase must be before the sweep fails it
func (s SchedulerConfig) StalePendingAge() time.Duration {
	return time.Duration(s.StalePendingMinutes) * time.Minute
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Storage
	if val := os.Getenv("STORAGE_ENGINE"); val != "" {
		c.Storage.Engine = val
	}
	if val := os.Getenv("STORAGE_BOLT_PATH"); val != "" {
		c.Storage.BoltPath = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		fmt.Sscanf(val, "%d", &c.Redis.DB)
	}

	// SMTP
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SMTP_FROM"); val != "" {
		c.SMTP.From = val
	}

	// Email / payment secrets
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Payment.StripeSecretKey = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 30
	}

	// Storage validation
	c.Storage.Engine = strings.ToLower(c.Storage.Engine)
	if c.Storage.Engine == "" {
		c.Storage.Engine = "postgres"
	}
	switch c.Storage.Engine {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "bolt":
		if c.Storage.BoltPath == "" {
			c.Storage.BoltPath = "ledger.db"
		}
	default:
		return fmt.Errorf("unsupported storage engine: %s", c.Storage.Engine)
	}

	// Email validation
	if c.Email.Provider == "" {
		c.Email.Provider = "none"
	}
	switch c.Email.Provider {
	case "smtp":
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
		}
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("SendGrid API key is required")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	if c.Email.FromAddress == "" {
		c.Email.FromAddress = c.SMTP.From
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Billing"
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Payment defaults
	if c.Payment.ProcessorTimeoutSecond == 0 {
		c.Payment.ProcessorTimeoutSecond = 30
	}
	if c.Payment.LeaseTTLSeconds == 0 {
		c.Payment.LeaseTTLSeconds = 300
	}
	if c.Payment.LeaseTTLSeconds < c.Payment.ProcessorTimeoutSecond {
		return fmt.Errorf("payment lease TTL (%ds) must not be shorter than the processor timeout (%ds)",
			c.Payment.LeaseTTLSeconds, c.Payment.ProcessorTimeoutSecond)
	}
	if c.Payment.StripeCurrency == "" {
		c.Payment.StripeCurrency = "usd"
	}

	// Billing validation
	for typ, rate := range c.Billing.CommissionRates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("commission rate for %s must be between 0 and 1: %v", typ, rate)
		}
	}
	for _, p := range c.Billing.Packages {
		if p.ID == "" {
			return fmt.Errorf("credit package id is required")
		}
		if p.PriceUSD <= 0 {
			return fmt.Errorf("credit package %s must have a positive price", p.ID)
		}
		if p.Credits <= 0 || p.Bonus < 0 {
			return fmt.Errorf("credit package %s has invalid credits or bonus", p.ID)
		}
	}

	// Scheduler defaults
	if c.Scheduler.FailStalePayments == "" {
		c.Scheduler.FailStalePayments = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.SendDailyDigest == "" {
		c.Scheduler.SendDailyDigest = "0 0 6 * * *" // 6 AM UTC
	}
	if c.Scheduler.StalePendingMinutes == 0 {
		c.Scheduler.StalePendingMinutes = 60
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
