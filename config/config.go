package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	Log      LogConfig
	Orvion   OrvionConfig
	Checkout CheckoutConfig
	Routes   RoutesConfig
	MySQL    MySQLConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	Level string
}

type OrvionConfig struct {
	APIKey  string
	BaseURL string

	HealthTimeout  time.Duration
	PaymentTimeout time.Duration
}

type CheckoutConfig struct {
	// BaseURL is the hosted payment page used when a charge carries no
	// checkout URL of its own.
	BaseURL string
	// ReturnURL optionally overrides where hosted checkout sends users back.
	ReturnURL string
}

type RoutesConfig struct {
	DefaultCurrency string
	PremiumAmount   string
	FlowAmount      string
}

type MySQLConfig struct {
	// DSN is optional; without it the payment-event audit trail is disabled.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "orvion-demo"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "5001"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Orvion: OrvionConfig{
			APIKey:         getEnv("ORVION_API_KEY", ""),
			BaseURL:        getEnv("BACKEND_URL", "http://localhost:8000"),
			HealthTimeout:  getSecondsEnv("ORVION_HEALTH_TIMEOUT_SECONDS", 10*time.Second),
			PaymentTimeout: getSecondsEnv("ORVION_PAYMENT_TIMEOUT_SECONDS", 30*time.Second),
		},
		Checkout: CheckoutConfig{
			BaseURL:   getEnv("CHECKOUT_BASE_URL", "https://pay.orvion.sh/checkout"),
			ReturnURL: getEnv("RETURN_URL", ""),
		},
		Routes: RoutesConfig{
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USDC"),
			PremiumAmount:   getEnv("PREMIUM_ROUTE_AMOUNT", "0.01"),
			FlowAmount:      getEnv("FLOW_ROUTE_AMOUNT", "0.0015"),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
