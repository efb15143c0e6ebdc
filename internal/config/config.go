// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
)

// ストアのドライバー名。
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL   string
	APITimeout   time.Duration
	APIRateLimit float64

	// Server
	ServerPort string
	BaseURL    string

	// Store
	StoreDriver        string
	DatabaseURL        string
	RedisURL           string
	RedisStateTTL      time.Duration
	StateRetentionDays int

	// Visitor
	VisitorIdleTTL time.Duration

	// Guard
	GuardCountdownSeconds int
	GuardFallbackPath     string
	LoginPath             string

	// Pricing
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal

	// Rate Limit（1分あたり）
	RateLimitGeneral int
	RateLimitAuth    int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// ログ
	LogLevel string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。ファイルが存在しない場合は何もしない。
// 既に設定されている環境変数は上書きしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 不正な値はデフォルト値にフォールバックする。ストアのドライバーに必要な接続先が
// 未設定の場合や、Cookieドメインがパブリックサフィックスの場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(getEnvString("API_BASE_URL", "http://localhost:5000/api"), "/")
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 15*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 50)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisStateTTL = getEnvDuration("REDIS_STATE_TTL", 30*24*time.Hour)
	cfg.StateRetentionDays = getEnvInt("STATE_RETENTION_DAYS", 90)
	cfg.VisitorIdleTTL = getEnvDuration("VISITOR_IDLE_TTL", 30*time.Minute)
	cfg.GuardCountdownSeconds = getEnvInt("GUARD_COUNTDOWN_SECONDS", 5)
	cfg.GuardFallbackPath = getEnvString("GUARD_FALLBACK_PATH", "/unauthorized")
	cfg.LoginPath = getEnvString("LOGIN_PATH", "/login")
	cfg.FreeDeliveryThreshold = getEnvDecimal("FREE_DELIVERY_THRESHOLD", "50.00")
	cfg.DeliveryFee = getEnvDecimal("DELIVERY_FEE", "4.99")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = strings.TrimPrefix(getEnvString("COOKIE_DOMAIN", ""), ".")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL: %q", cfg.APIBaseURL)
	}

	var missing []string
	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (memory, postgres, redis)", cfg.StoreDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.CookieDomain != "" && isPublicSuffix(cfg.CookieDomain) {
		return fmt.Errorf("COOKIE_DOMAIN %q is a public suffix", cfg.CookieDomain)
	}
	return nil
}

// isPublicSuffix はドメインがパブリックサフィックス（com, co.uk, github.io等）かどうかを返す。
// ドットを含まない非ICANNの名前（localhost等）は対象外とする。
func isPublicSuffix(domain string) bool {
	d := strings.ToLower(domain)
	suffix, icann := publicsuffix.PublicSuffix(d)
	return suffix == d && (icann || strings.Contains(d, "."))
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvDecimal(key, defaultVal string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
	}
	return decimal.RequireFromString(defaultVal)
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
