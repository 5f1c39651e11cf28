package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// insecureJWTSecret はJWT_SECRET未設定時のフォールバック値。
// 開発環境専用であり、本番では必ずJWT_SECRETを設定すること。
const insecureJWTSecret = "nufounders-insecure-dev-secret"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（空の場合はインメモリストアで起動する）
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	// プロバイダーのエンドポイント上書き（テスト用）
	GoogleTokenURL    string
	GoogleUserInfoURL string
	GitHubTokenURL    string
	GitHubAPIURL      string

	ProviderTimeout   time.Duration
	OutboundSSRFGuard bool

	// Session
	JWTSecret         string
	JWTSecretFallback bool
	AppID             string
	OwnerOpenID       string

	// Redirect
	OAuthSuccessRedirect string

	// Rate Limit（req/min）
	RateLimitRPC   int
	RateLimitOAuth int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS / CSRF
	CORSAllowedOrigin string
	CSRFProtection    bool
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// クライアント認証情報はここでは必須にしない。
	// 欠落はコード交換時にProviderConfigErrorとして扱う。
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = insecureJWTSecret
		cfg.JWTSecretFallback = true
		slog.Warn("JWT_SECRET is not set; using an insecure built-in secret")
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AppID = getEnvString("VITE_APP_ID", "nufounders")
	cfg.OwnerOpenID = os.Getenv("OWNER_OPEN_ID")
	cfg.GoogleTokenURL = os.Getenv("GOOGLE_TOKEN_URL")
	cfg.GoogleUserInfoURL = os.Getenv("GOOGLE_USERINFO_URL")
	cfg.GitHubTokenURL = os.Getenv("GITHUB_TOKEN_URL")
	cfg.GitHubAPIURL = os.Getenv("GITHUB_API_URL")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.OutboundSSRFGuard = getEnvBool("OUTBOUND_SSRF_GUARD", true)
	cfg.OAuthSuccessRedirect = getEnvString("OAUTH_SUCCESS_REDIRECT", "/")
	cfg.RateLimitRPC = getEnvInt("RATE_LIMIT_RPC", 120)
	cfg.RateLimitOAuth = getEnvInt("RATE_LIMIT_OAUTH", 20)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)
	cfg.CSRFProtection = getEnvBool("CSRF_PROTECTION", false)

	return cfg, nil
}

// OAuthCallbackURL はOAuthプロバイダーに登録する汎用コールバックURLを返す。
func (c *Config) OAuthCallbackURL() string {
	return c.BaseURL + "/api/oauth/callback"
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
