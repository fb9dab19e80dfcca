// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストアのバックエンド種別
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend   string
	StoreTable     string
	StoreUserTable string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// OAuth
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURL     string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenantID     string
	MicrosoftRedirectURL  string
	OAuthTimeout          time.Duration

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitCreate  int

	// Fields
	SanitizeFields bool

	// Server
	ServerPort  string
	BaseURL     string
	FrontendURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS / CSRF
	CORSAllowedOrigin string
	CSRFProtection    bool

	// Logging
	LogLevel string
}

// GoogleEnabled はGoogleログインが設定済みかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// MicrosoftEnabled はMicrosoftログインが設定済みかを返す。
func (c *Config) MicrosoftEnabled() bool {
	return c.MicrosoftClientID != "" && c.MicrosoftClientSecret != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", StoreBackendPostgres))
	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreBackendRedis:
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case StoreBackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q (postgres, redis, memory)", cfg.StoreBackend)
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.MicrosoftClientID = os.Getenv("MICROSOFT_CLIENT_ID")
	cfg.MicrosoftClientSecret = os.Getenv("MICROSOFT_CLIENT_SECRET")

	// IDとシークレットは対で設定する
	missing = appendPairMissing(missing, "GOOGLE_CLIENT_ID", cfg.GoogleClientID, "GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	missing = appendPairMissing(missing, "MICROSOFT_CLIENT_ID", cfg.MicrosoftClientID, "MICROSOFT_CLIENT_SECRET", cfg.MicrosoftClientSecret)

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !cfg.GoogleEnabled() && !cfg.MicrosoftEnabled() {
		return nil, fmt.Errorf("at least one login provider must be configured (GOOGLE_CLIENT_ID/SECRET or MICROSOFT_CLIENT_ID/SECRET)")
	}

	// Optional fields with defaults
	cfg.StoreTable = getEnvString("STORE_TABLE", "JobApplications")
	cfg.StoreUserTable = getEnvString("STORE_USER_TABLE", "Users")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/auth/google/callback")
	cfg.MicrosoftTenantID = getEnvString("MICROSOFT_TENANT_ID", "common")
	cfg.MicrosoftRedirectURL = getEnvString("MICROSOFT_REDIRECT_URL", cfg.BaseURL+"/auth/microsoft/callback")
	cfg.OAuthTimeout = getEnvDuration("OAUTH_TIMEOUT", 10*time.Second)

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCreate = getEnvInt("RATE_LIMIT_CREATE", 30)

	cfg.SanitizeFields = getEnvBool("SANITIZE_FIELDS", true)

	cfg.ServerPort = getEnvString("SERVER_PORT", "3001")
	cfg.FrontendURL = strings.TrimRight(getEnvString("FRONTEND_URL", "http://localhost:3000"), "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.FrontendURL)
	cfg.CSRFProtection = getEnvBool("CSRF_PROTECTION", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func appendPairMissing(missing []string, idKey, id, secretKey, secret string) []string {
	switch {
	case id != "" && secret == "":
		return append(missing, secretKey)
	case id == "" && secret != "":
		return append(missing, idKey)
	default:
		return missing
	}
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
