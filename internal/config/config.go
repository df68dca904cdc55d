package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GatewayEnvSandbox = "sandbox"
	GatewayEnvLive    = "live"

	ChildPropagationLog      = "log"
	ChildPropagationPayments = "payments"

	minTokenMargin         = 60 * time.Second
	defaultPayloadMaxBytes = 64 * 1024
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Gateway GatewayConfig
	Webhook WebhookConfig
	Redis   RedisConfig

	AdminAPIToken string
}

type GatewayConfig struct {
	Environment      string
	BaseURL          string
	HTTPTimeout      time.Duration
	TokenMargin      time.Duration
	CredentialSecret string
}

type WebhookConfig struct {
	// WebhookID enables signature verification when set.
	WebhookID        string
	PayloadMaxBytes  int
	ChildPropagation string
	RateLimit        float64
	RateBurst        int
	LockTTL          time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "paybridge"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTLP_ENDPOINT", "")),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paybridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "paybridge.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Gateway: GatewayConfig{
			Environment:      NormalizeGatewayEnv(getenv("GATEWAY_ENVIRONMENT", GatewayEnvSandbox)),
			BaseURL:          strings.TrimRight(strings.TrimSpace(getenv("GATEWAY_API_BASE_URL", "")), "/"),
			HTTPTimeout:      getenvDuration("GATEWAY_HTTP_TIMEOUT", 30*time.Second),
			TokenMargin:      ClampTokenMargin(getenvDuration("GATEWAY_TOKEN_MARGIN", minTokenMargin)),
			CredentialSecret: strings.TrimSpace(getenv("GATEWAY_CREDENTIAL_SECRET", "")),
		},
		Webhook: WebhookConfig{
			WebhookID:        strings.TrimSpace(getenv("GATEWAY_WEBHOOK_ID", "")),
			PayloadMaxBytes:  getenvInt("WEBHOOK_PAYLOAD_MAX_BYTES", defaultPayloadMaxBytes),
			ChildPropagation: normalizeChildPropagation(getenv("CHILD_PROPAGATION", ChildPropagationLog)),
			RateLimit:        getenvFloat("WEBHOOK_RATE", 20),
			RateBurst:        getenvInt("WEBHOOK_BURST", 40),
			LockTTL:          getenvDuration("WEBHOOK_LOCK_TTL", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
	}

	if cfg.Webhook.PayloadMaxBytes <= 0 {
		cfg.Webhook.PayloadMaxBytes = defaultPayloadMaxBytes
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// NormalizeGatewayEnv maps anything that is not "live" to sandbox.
func NormalizeGatewayEnv(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), GatewayEnvLive) {
		return GatewayEnvLive
	}
	return GatewayEnvSandbox
}

// ClampTokenMargin enforces the minimum token safety margin.
func ClampTokenMargin(margin time.Duration) time.Duration {
	if margin < minTokenMargin {
		return minTokenMargin
	}
	return margin
}

func normalizeChildPropagation(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), ChildPropagationPayments) {
		return ChildPropagationPayments
	}
	return ChildPropagationLog
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("45s") or plain seconds ("45").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
