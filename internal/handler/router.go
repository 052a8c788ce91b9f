package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/classhub/internal/middleware"
	"github.com/hitoshi/classhub/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	JWTSecret          []byte
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Metrics            middleware.StatusMetrics

	// サービス
	AuthService    AuthServiceInterface
	SetupService   SetupServiceInterface
	AccountService AccountServiceInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → (ルートごとのRateLimit/Auth/Role)
//
// セットアップルート（/setup/*）とログイン・登録は認証の外、
// /auth/meと/api/*は認証ミドルウェアの内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効く共通ミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTSecret)

	authHandler := NewAuthHandler(deps.AuthService)
	setupHandler := NewSetupHandler(deps.SetupService)
	accountHandler := NewAccountHandler(deps.AccountService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		// ログイン試行は総当たり対策の厳しいレート制限を適用する
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.GeneralMiddleware()).Post("/register", authHandler.Register)

		// 自分自身の情報取得は認証＋API全般のレート制限の内側
		r.With(authMiddleware, deps.RateLimiter.GeneralMiddleware()).Get("/me", authHandler.Me)
	})

	// アカウント有効化（ワンタイムURLのため認証なし）
	r.Route("/setup", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Get("/validate", setupHandler.Validate)
		r.Post("/", setupHandler.Consume)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// アカウント発行（講師・管理者のみ）
		r.Route("/api/accounts", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleTeacher, model.RoleAdmin))
			r.Post("/", accountHandler.Provision)
			r.Post("/{id}/resend-invite", accountHandler.ResendInvite)
		})
	})

	// --- 運用ルート ---

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}
