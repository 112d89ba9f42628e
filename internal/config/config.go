// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ストレージのバックエンド。
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`
	AppName    string `env:"APP_NAME" envDefault:"DataPulse"`

	// Backend API
	BackendBaseURL string        `env:"BACKEND_BASE_URL,required,notEmpty"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	// Identity provider
	IdPAPIKey   string        `env:"IDP_API_KEY"`
	IdPEndpoint string        `env:"IDP_ENDPOINT"`
	IdPTimeout  time.Duration `env:"IDP_TIMEOUT" envDefault:"10s"`
	// IdPSSRFGuard が有効な場合、IDプロバイダーへの接続にプライベートアドレスを拒否するクライアントを使う。
	// ローカルのエミュレーターに接続する場合は無効にする。
	IdPSSRFGuard bool `env:"IDP_SSRF_GUARD" envDefault:"true"`

	// Verification
	SuccessRedirectDelay     time.Duration `env:"VERIFICATION_SUCCESS_DELAY" envDefault:"1s"`
	InvalidLinkRedirectDelay time.Duration `env:"VERIFICATION_INVALID_LINK_DELAY" envDefault:"3s"`
	VerificationFlowTTL      time.Duration `env:"VERIFICATION_FLOW_TTL" envDefault:"10m"`

	// Storage
	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	StorageIdleTTL  time.Duration `env:"STORAGE_IDLE_TTL" envDefault:"720h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
	// StorageConnectAttempts は起動時にストレージへ接続を試みる回数。composeでDBより先に起動した場合に備える。
	StorageConnectAttempts int `env:"STORAGE_CONNECT_ATTEMPTS" envDefault:"5"`

	// Cookie
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"2592000"`
	CookieDomain  string `env:"COOKIE_DOMAIN"`
	CookieSecure  bool   `env:"-"`

	// Rate Limit（req/min/browser）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitSignIn  int `env:"RATE_LIMIT_SIGN_IN" envDefault:"5"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。カレントディレクトリに.envがあれば先に読み込む。
// 必須環境変数が未設定の場合や組み合わせが不正な場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORAGE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q (memory, postgres, redis)", c.StorageBackend))
	}

	if c.StorageConnectAttempts <= 0 {
		errs = append(errs, errors.New("STORAGE_CONNECT_ATTEMPTS must be positive"))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_GENERAL must be positive"))
	}
	if c.RateLimitSignIn <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_SIGN_IN must be positive"))
	}
	if c.SuccessRedirectDelay <= 0 || c.InvalidLinkRedirectDelay <= 0 {
		errs = append(errs, errors.New("verification redirect delays must be positive"))
	}

	return errors.Join(errs...)
}
