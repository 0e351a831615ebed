package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/intelnews/internal/middleware"
)

// HealthChecker はヘルスチェック時に依存先の疎通を確認するインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	TrustProxy        bool // X-Forwarded-For等からクライアントIPを復元する

	// 閲覧
	News NewsFetcher
	Feed FeedServiceInterface

	// 管理
	AuthService AuthServiceInterface
	Publisher   Publisher
	AdminConfig AdminHandlerConfig

	// 運用
	MetricsHandler http.Handler  // nilの場合は/metricsを公開しない
	HealthChecker  HealthChecker // nilの場合は常にok
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// 管理ルート（/api/admin/*）はログインを除きSession → CSRFを追加で通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	newsHandler := NewNewsHandler(deps.News, deps.Feed)
	adminHandler := NewAdminHandler(deps.AuthService, deps.Publisher, deps.AdminConfig)

	// --- 運用エンドポイント（レート制限の対象外） ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 閲覧（認証不要） ---
		r.Get("/api/news", newsHandler.ListNews)
		r.Get("/api/home", newsHandler.Home)
		r.Get("/api/feed", newsHandler.FeedChunk)
		r.Get("/api/articles/{id}", newsHandler.GetArticle)
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Route("/api/admin", func(r chi.Router) {
			// ログイン（ログイン専用レート制限を追加）
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", adminHandler.Login)

			// --- 管理者セッションが必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
				r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

				r.Get("/me", adminHandler.Me)
				r.Post("/logout", adminHandler.Logout)

				r.Group(func(r chi.Router) {
					r.Use(deps.RateLimiter.SubmitMiddleware())
					r.Post("/articles", adminHandler.PublishArticle)
					r.Post("/ticker", adminHandler.PublishTicker)
				})
			})
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
