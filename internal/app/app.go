package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hitoshi/datapulse-console/internal/auth"
	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/config"
	"github.com/hitoshi/datapulse-console/internal/database"
	"github.com/hitoshi/datapulse-console/internal/handler"
	"github.com/hitoshi/datapulse-console/internal/identity"
	"github.com/hitoshi/datapulse-console/internal/logger"
	"github.com/hitoshi/datapulse-console/internal/metrics"
	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/security"
	"github.com/hitoshi/datapulse-console/internal/verification"
	"github.com/hitoshi/datapulse-console/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数でConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は設定全体を必要としない
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting console",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// console はserveモードで組み立てたHTTPハンドラーと、停止時に止めるべきバックグラウンド処理を保持する。
type console struct {
	handler   http.Handler
	collector *metrics.Collector
	stop      func()
}

// newConsole は全依存関係をワイヤリングしてルーターを構築する。
func newConsole(cfg *config.Config, storage *browserStorage, log *slog.Logger) (*console, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewMessageSanitizer()

	idpHTTPClient := &http.Client{Timeout: cfg.IdPTimeout}
	if cfg.IdPSSRFGuard {
		idpHTTPClient = ssrfGuard.NewSafeClient(cfg.IdPTimeout)
	}
	idp := identity.NewClient(identity.Config{
		Endpoint:   cfg.IdPEndpoint,
		HTTPClient: idpHTTPClient,
		Logger:     log,
	})

	api := backend.NewClient(backend.Config{
		BaseURL:    cfg.BackendBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.BackendTimeout},
		Logger:     log,
		Metrics:    collector,
	})
	authService := auth.NewService(api, log)

	renderer, err := handler.NewRenderer(cfg.AppName, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:  rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst: cfg.RateLimitGeneral,
		SignInRate:   rate.Limit(float64(cfg.RateLimitSignIn) / 60.0),
		SignInBurst:  cfg.RateLimitSignIn,
	})
	registry := verification.NewRegistry(cfg.VerificationFlowTTL, log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:    log,
		Storage:   storage.repo,
		Sanitizer: sanitizer,
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Renderer:    renderer,
		AuthService: authService,
		Verification: handler.VerificationDeps{
			Registry:  registry,
			Exchanger: idp,
			Recorder:  collector,
			Clock:     verification.RealClock(),
			Config: verification.Config{
				APIKey:                   cfg.IdPAPIKey,
				DashboardPath:            handler.DashboardPath,
				LoginPath:                handler.LoginPath,
				SuccessRedirectDelay:     cfg.SuccessRedirectDelay,
				InvalidLinkRedirectDelay: cfg.InvalidLinkRedirectDelay,
			},
			Logger: log,
		},
		API:            api,
		URLValidator:   ssrfGuard,
		HealthChecker:  storage.health,
		MetricsHandler: metrics.Handler(reg),
	})

	return &console{
		handler:   router,
		collector: collector,
		stop: func() {
			rateLimiter.Stop()
			registry.Stop()
		},
	}, nil
}

// runServe はHTTPサーバーを起動し、ctxが終了したらグレースフルシャットダウンする。
// メモリストレージの場合はアイドルなブラウザデータの掃除も同じプロセスで行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.close()

	c, err := newConsole(cfg, storage, log)
	if err != nil {
		return err
	}
	defer c.stop()

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if storage.backend == config.StorageMemory {
		job := cleanup.NewCleanupJob(storage.repo, c.collector, log)
		job.IdleTTL = cfg.StorageIdleTTL
		g.Go(func() error {
			job.Loop(gctx, cfg.CleanupInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runWorker は共有ストレージのアイドルなブラウザデータを定期的に削除する。
// メモリストレージはserveプロセス内で掃除されるため対象外。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBackend == config.StorageMemory {
		return fmt.Errorf("worker requires STORAGE_BACKEND=%s or %s", config.StoragePostgres, config.StorageRedis)
	}

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.close()

	log := slog.Default()
	collector := metrics.NewCollector(prometheus.NewRegistry())

	job := cleanup.NewCleanupJob(storage.repo, collector, log)
	job.IdleTTL = cfg.StorageIdleTTL

	slog.Info("cleanup worker started",
		slog.String("storage", storage.backend),
		slog.Duration("interval", cfg.CleanupInterval),
		slog.Duration("idle_ttl", cfg.StorageIdleTTL),
	)
	job.Loop(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はブラウザストレージ用のマイグレーションを実行して終了する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations", slog.String("url", maskDatabaseURL(cfg.DatabaseURL)))

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はローカルのサーバーの/healthを叩く。
// distrolessイメージにはcurlがないため、Dockerのヘルスチェックはこのサブコマンドを使う。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はログ出力用に接続文字列の認証情報を隠す。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
