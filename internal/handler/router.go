package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/datapulse-console/internal/middleware"
	"github.com/hitoshi/datapulse-console/internal/repository"
	"github.com/hitoshi/datapulse-console/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Storage     repository.LocalStorageRepository
	Sanitizer   security.MessageSanitizerService
	Cookie      middleware.CookieConfig
	CSRF        middleware.CSRFConfig
	RateLimiter *middleware.RateLimiter

	Renderer *Renderer

	// 認証
	AuthService  AuthServiceInterface
	Verification VerificationDeps

	// 画面
	API          ConsoleAPI
	URLValidator URLValidator

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Browser → RateLimit(General) → CSRF
//
// 保護された画面はさらにRouteGuardを通る。/healthと/metricsはチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer)
	verificationHandler := NewVerificationHandler(deps.Verification, deps.Renderer)
	dashboardHandler := NewDashboardHandler(deps.API, deps.API, deps.API, deps.Renderer)
	orgHandler := NewOrganizationHandler(deps.API, deps.Renderer)
	domainHandler := NewDomainHandler(deps.API, deps.API, deps.API, deps.Renderer)
	platformHandler := NewPlatformHandler(deps.API, deps.Renderer)
	integrationHandler := NewIntegrationHandler(deps.API, deps.API, deps.API, deps.URLValidator, deps.Renderer)
	eventHandler := NewEventHandler(deps.API, deps.API, deps.Renderer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewBrowserMiddleware(deps.Storage, deps.Sanitizer, deps.Cookie, logger))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- 認証不要の画面 ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		})

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.SignInMiddleware())
			}
			r.Post("/login", authHandler.Login)
			r.Post("/signup", authHandler.SignUp)
		})
		r.Get("/login", authHandler.ShowLogin)
		r.Get("/signup", authHandler.ShowSignUp)
		r.Post("/logout", authHandler.Logout)

		r.Get(VerificationPath, verificationHandler.Show)
		r.Post(VerificationPath+"/retry", verificationHandler.Retry)

		// --- 認証が必要な画面 ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRouteGuard(LoginPath))

			r.Get(DashboardPath, dashboardHandler.Show)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Get("/create", orgHandler.ShowCreate)
				r.Post("/create", orgHandler.Create)
				r.Get("/{id}", orgHandler.Show)
				r.Post("/{id}", orgHandler.Update)
			})

			r.Route("/domains", func(r chi.Router) {
				r.Get("/", domainHandler.List)
				r.Get("/create", domainHandler.ShowCreate)
				r.Post("/create", domainHandler.Create)
				r.Get("/{id}", domainHandler.Show)
				r.Post("/{id}", domainHandler.Update)
				r.Post("/{id}/delete", domainHandler.Delete)
			})

			r.Route("/platforms", func(r chi.Router) {
				r.Get("/", platformHandler.List)
				r.Get("/{id}", platformHandler.Show)
			})

			r.Route("/integrations", func(r chi.Router) {
				r.Get("/", integrationHandler.List)
				r.Get("/create", integrationHandler.ShowCreate)
				r.Post("/create", integrationHandler.Create)
				r.Get("/accounts", integrationHandler.ShowAccounts)
				r.Post("/accounts", integrationHandler.SaveAccounts)
				r.Get("/{id}", integrationHandler.Show)
				r.Post("/{id}/delete", integrationHandler.Delete)
			})

			r.Get("/events", eventHandler.List)
			r.Post("/events/historical", eventHandler.ImportHistorical)
		})
	})

	return r
}
