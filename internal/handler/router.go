package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobtracker/internal/metrics"
	"github.com/hitoshi/jobtracker/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFProtection    bool
	CSRFConfig        middleware.CSRFConfig
	Metrics           metrics.MetricsCollector // nilの場合は計測しない
	MetricsHandler    http.Handler             // nilの場合は/metricsを公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 応募記録
	ApplicationService ApplicationServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /applications: Session → RateLimit(General) → [CSRF] → [RateLimit(Create)]
//
// 認証ルート（/auth/*）とヘルスチェックはセッションゲートの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	appHandler := NewApplicationHandler(deps.ApplicationService)

	// --- 認証不要のルート ---

	r.Get("/", Root)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	r.Get("/logout", authHandler.LogoutRedirect)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/check", authHandler.Check)
		r.Post("/logout", authHandler.Logout)
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/{provider}", authHandler.Login)
		r.Get("/{provider}/callback", authHandler.Callback)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthService))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		if deps.CSRFProtection {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", appHandler.List)
			r.With(deps.RateLimiter.CreateMiddleware()).Post("/", appHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", appHandler.Get)
				r.Put("/", appHandler.Update)
				r.Delete("/", appHandler.Delete)
			})
		})
	})

	return r
}
