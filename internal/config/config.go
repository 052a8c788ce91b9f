// Package config は環境変数からの設定読み込みと起動時検証を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvProduction / EnvDevelopment はAPP_ENVに指定する動作モード。
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// devFallbackSecret は開発モードでJWT_SECRET未設定時に使用する固定シークレット。
// 本番モードでは使用されず、未設定は起動エラーになる。
const devFallbackSecret = "classhub-dev-signing-secret-do-not-use-in-production"

// minSecretLength は本番モードで要求する署名シークレットの最小長。
const minSecretLength = 32

// weakSecrets は本番モードで拒否する既知の弱いシークレット値。
var weakSecrets = map[string]struct{}{
	"":                          {},
	"secret":                    {},
	"password":                  {},
	"jwt-secret":                {},
	"jwt_secret":                {},
	"change-me":                 {},
	"change-me-in-production":   {},
	"changeme":                  {},
	"dev-secret":                {},
	"development":               {},
	devFallbackSecret:           {},
	"your-secret-key":           {},
	"supersecret":               {},
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// 動作モード（production / development）
	Env string

	// 署名シークレット
	JWTSecret string

	// Session
	SessionTTL time.Duration

	// Setup Token
	SetupTokenTTL time.Duration

	// Rate Limit（固定ウィンドウ）
	RateLimitWindow  time.Duration
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigins []string

	// Email（未設定の場合は有効化リンクをログ出力にフォールバック）
	EmailAPIURL string
	EmailAPIKey string
	EmailFrom   string
}

// IsProduction は本番モードで動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load は環境変数からConfigを読み込み、起動時検証を行う。
// 本番モードでの検証違反は致命的エラーとして返し、プロセスを起動させない。
// 開発モードではJWT_SECRET未設定を固定フォールバックで補い、エラーにしない。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = getEnvString("APP_ENV", EnvDevelopment)

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.SetupTokenTTL = getEnvDuration("SETUP_TOKEN_TTL", 7*24*time.Hour)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 200)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 5)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigins = splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.EmailAPIURL = os.Getenv("EMAIL_API_URL")
	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	cfg.EmailFrom = getEnvString("EMAIL_FROM", "noreply@classhub.example.com")

	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecrets は署名シークレットとCORS設定の起動時検証を行う。
// 本番モード: シークレットは必須・最小長以上・既知の弱い値でないこと、
// CORSオリジンの明示的な許可リストが必要。
// 開発モード: シークレット未設定は固定フォールバックで補う。
func (c *Config) validateSecrets() error {
	if !c.IsProduction() {
		if c.JWTSecret == "" {
			c.JWTSecret = devFallbackSecret
		}
		return nil
	}

	if _, weak := weakSecrets[strings.ToLower(c.JWTSecret)]; weak {
		return fmt.Errorf("JWT_SECRET is missing or a known-weak placeholder; refusing to start in production")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production (got %d)", minSecretLength, len(c.JWTSecret))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must be set explicitly in production")
	}

	return nil
}

// splitOrigins はカンマ区切りのオリジンリストをパースする。
func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}

	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
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
