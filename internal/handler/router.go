package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pactman/internal/metrics"
	"github.com/hitoshi/pactman/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DB のPingContextを受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// ヘルスチェック（nil可、nilの場合は無条件でokを返す）
	HealthChecker HealthChecker

	// /metrics ハンドラー（nil可）
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 契約書（受信者登録を含む）
	ContractService ContractServiceInterface

	// 署名セッション（受信者向け・認証なし）
	SigningService SigningServiceInterface

	// テンプレート
	TemplateCatalog TemplateCatalogInterface

	// ユーザー
	UserService UserServiceInterface

	// メトリクス（nil可）
	MetricsCollector metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と署名ルート（/sign/*）はセッション以降のチェーンの外に配置する。
// 署名ルートは匿名アクセスのためIP単位のレート制限だけを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default(), deps.MetricsCollector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	contractHandler := NewContractHandler(deps.ContractService)
	signingHandler := NewSigningHandler(deps.SigningService, deps.MetricsCollector)
	templateHandler := NewTemplateHandler(deps.TemplateCatalog)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// ヘルスチェック（Dockerヘルスチェックとロードバランサー向け）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ用エンドポイント
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 署名ルート（受信者はアクセストークンだけで識別される）
	// IP単位のレート制限でトークン総当たりを抑止する
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.SigningMiddleware())

		r.Route("/sign/{token}", func(r chi.Router) {
			r.Get("/", signingHandler.GetSigningView)
			r.Post("/", signingHandler.SubmitSignature)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 契約書管理
		r.Route("/api/contracts", func(r chi.Router) {
			r.Post("/", contractHandler.CreateContract)
			r.Get("/", contractHandler.ListContracts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contractHandler.GetContract)
				r.Patch("/", contractHandler.UpdateContract)
				r.Delete("/", contractHandler.DeleteContract)

				// POST /api/contracts/{id}/send - 受信者登録と送信
				r.Post("/send", contractHandler.SendContract)
				r.Post("/cancel", contractHandler.CancelContract)

				// GET /api/contracts/{id}/audit - 監査ログ
				r.Get("/audit", contractHandler.GetAuditTrail)
			})
		})

		// テンプレート
		r.Route("/api/templates", func(r chi.Router) {
			r.Get("/", templateHandler.ListTemplates)
			r.Get("/{id}", templateHandler.GetTemplate)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetProfile)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
