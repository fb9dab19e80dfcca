package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobtracker/internal/application"
	"github.com/hitoshi/jobtracker/internal/auth"
	"github.com/hitoshi/jobtracker/internal/config"
	"github.com/hitoshi/jobtracker/internal/database"
	"github.com/hitoshi/jobtracker/internal/handler"
	"github.com/hitoshi/jobtracker/internal/metrics"
	"github.com/hitoshi/jobtracker/internal/middleware"
	"github.com/hitoshi/jobtracker/internal/repository"
	"github.com/hitoshi/jobtracker/internal/security"
)

// redisKeyPrefix はRedis上の全キーに付与するプレフィックス。
const redisKeyPrefix = "jobtracker:"

// backend はSTORE_BACKENDに応じて構築したストア群。
type backend struct {
	name     string
	records  *repository.InstrumentedRecordStore
	users    *repository.InstrumentedRecordStore
	sessions repository.SessionRepository
	closers  []func() error
}

// Close は接続を閉じる。
func (b *backend) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openBackend は設定されたバックエンドに接続し、計測付きのストアを返す。
func openBackend(ctx context.Context, cfg *config.Config, observer repository.StoreObserver) (*backend, error) {
	var (
		records, users repository.RecordStore
		b              = &backend{name: cfg.StoreBackend}
	)

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		records = repository.NewPostgresRecordStore(db, cfg.StoreTable)
		users = repository.NewPostgresRecordStore(db, cfg.StoreUserTable)
		b.sessions = repository.NewPostgresSessionRepo(db)

	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
		b.closers = append(b.closers, client.Close)
		records = repository.NewRedisRecordStore(client, redisKeyPrefix, cfg.StoreTable)
		users = repository.NewRedisRecordStore(client, redisKeyPrefix, cfg.StoreUserTable)
		b.sessions = repository.NewRedisSessionRepo(client, redisKeyPrefix)

	case config.StoreBackendMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		records = repository.NewMemoryRecordStore()
		users = repository.NewMemoryRecordStore()
		b.sessions = repository.NewMemorySessionRepo()

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	b.records = repository.NewInstrumentedRecordStore(records, observer, cfg.StoreBackend)
	b.users = repository.NewInstrumentedRecordStore(users, observer, cfg.StoreBackend)
	return b, nil
}

// openDatabase はPostgreSQLに接続し、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// endpointProvider はサーバー側から呼び出すIdPエンドポイントを公開するプロバイダー。
type endpointProvider interface {
	auth.OAuthProvider
	Endpoints() []string
}

// buildProviders は設定済みのOAuthプロバイダーを生成する。
// IdPへの通信はSSRF対策済みのクライアントで行い、エンドポイントは起動時に検証する。
func buildProviders(cfg *config.Config) ([]auth.OAuthProvider, error) {
	client := security.NewOutboundClient(cfg.OAuthTimeout)

	var candidates []endpointProvider
	if cfg.GoogleEnabled() {
		candidates = append(candidates, auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   client,
		}))
	}
	if cfg.MicrosoftEnabled() {
		candidates = append(candidates, auth.NewMicrosoftOAuthProvider(auth.MicrosoftOAuthConfig{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			TenantID:     cfg.MicrosoftTenantID,
			RedirectURL:  cfg.MicrosoftRedirectURL,
			HTTPClient:   client,
		}))
	}

	providers := make([]auth.OAuthProvider, 0, len(candidates))
	for _, p := range candidates {
		for _, endpoint := range p.Endpoints() {
			if err := security.ValidateEndpoint(endpoint); err != nil {
				return nil, fmt.Errorf("invalid %s endpoint %q: %w", p.Name(), endpoint, err)
			}
		}
		slog.Info("oauth provider enabled", slog.String("provider", string(p.Name())))
		providers = append(providers, p)
	}
	return providers, nil
}

// server はHTTPハンドラーと、停止時に解放すべきリソースをまとめたもの。
type server struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

// buildServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func buildServer(cfg *config.Config, b *backend, reg *prometheus.Registry, collector *metrics.Collector) (*server, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	var sanitizer application.FieldSanitizer
	if cfg.SanitizeFields {
		sanitizer = security.NewFieldSanitizer()
	}

	authService := auth.NewService(
		providers,
		auth.NewIdentityResolver(repository.NewRecordUserRepo(b.users)),
		b.sessions,
		auth.NewTokenSigner(cfg.SessionSecret),
		collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	appService := application.NewService(b.records, sanitizer)

	limiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCreate),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		CSRFProtection:    cfg.CSRFProtection,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:   cfg.FrontendURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ApplicationService: appService,
		HealthChecker:      b.records,
	})

	return &server{handler: router, limiter: limiter}, nil
}
