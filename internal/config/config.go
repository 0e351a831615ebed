package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultCategories はトップページにセクションを持つ既知カテゴリ。
var defaultCategories = []string{"NATIONAL", "POLITICS", "ECONOMY", "SPORTS", "TECHNOLOGY", "ENTERTAINMENT"}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store（記事ストアエンドポイント）
	StoreEndpointURL     string
	StoreFetchTimeout    time.Duration
	StoreSubmitTimeout   time.Duration
	StoreMaxResponseSize int64

	// Database（storeモードのバックエンド）
	DatabaseURL      string
	StoreLockTimeout time.Duration

	// Admin
	AdminPasswordHash string
	SessionMaxAge     int

	// Rate Limit（req/min/クライアント）
	RateLimitGeneral int
	RateLimitLogin   int
	RateLimitSubmit  int

	// Import
	ImportFeedURLs       []string
	ImportCategory       string
	ImportInterval       time.Duration
	ImportTimeout        time.Duration
	ImportMaxSize        int64
	ImportMaxConcurrent  int
	ImportMaxItemsPerRun int

	// Portal
	Categories []string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string

	// リバースプロキシ配下でX-Forwarded-ForからクライアントIPを復元する
	TrustProxy bool
}

// Load は環境変数からConfigを読み込む。
// どのモードでも必須となる値はないため、モードごとの必須チェックは
// RequirePortal / RequireDatabase で行う。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StoreEndpointURL = os.Getenv("STORE_ENDPOINT_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	cfg.StoreFetchTimeout = getEnvDuration("STORE_FETCH_TIMEOUT", 20*time.Second)
	cfg.StoreSubmitTimeout = getEnvDuration("STORE_SUBMIT_TIMEOUT", 30*time.Second)
	cfg.StoreMaxResponseSize = getEnvInt64("STORE_MAX_RESPONSE_SIZE", 10485760)
	cfg.StoreLockTimeout = getEnvDuration("STORE_LOCK_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 5)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 30)
	cfg.ImportFeedURLs = getEnvList("IMPORT_FEED_URLS", nil)
	cfg.ImportCategory = getEnvString("IMPORT_CATEGORY", "NATIONAL")
	cfg.ImportInterval = getEnvDuration("IMPORT_INTERVAL", 30*time.Minute)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ImportMaxConcurrent = getEnvInt("IMPORT_MAX_CONCURRENT", 4)
	cfg.ImportMaxItemsPerRun = getEnvInt("IMPORT_MAX_ITEMS_PER_RUN", 20)
	cfg.Categories = getEnvList("NEWS_CATEGORIES", defaultCategories)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)

	if cfg.StoreEndpointURL != "" && !strings.HasPrefix(cfg.StoreEndpointURL, "http://") && !strings.HasPrefix(cfg.StoreEndpointURL, "https://") {
		return nil, fmt.Errorf("STORE_ENDPOINT_URL must be an http(s) URL: %q", cfg.StoreEndpointURL)
	}

	return cfg, nil
}

// RequirePortal はserve/worker/exportモードに必要な環境変数を検証する。
// adminが真の場合は管理者パスワードハッシュも必須とする。
func (c *Config) RequirePortal(admin bool) error {
	var missing []string
	if c.StoreEndpointURL == "" {
		missing = append(missing, "STORE_ENDPOINT_URL")
	}
	if admin && c.AdminPasswordHash == "" {
		missing = append(missing, "ADMIN_PASSWORD_HASH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// RequireDatabase はstore/migrateモードに必要な環境変数を検証する。
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}
	return nil
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
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数をトリム済みのスライスとして返す。
// 空要素は除外する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
