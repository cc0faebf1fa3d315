package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/unipress/internal/access"
	"github.com/hitoshi/unipress/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// アクセス分類
	Classifier *access.Classifier
	Resolver   *access.Resolver

	// サービス
	VerificationService VerificationServiceInterface
	BillingService      BillingServiceInterface
	EntitlementFinder   EntitlementFinderInterface

	// ページ面（レンダリングは外部コラボレーター）
	Pages http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → SecurityHeaders → Logging
//	APIルート: RequireSession → RateLimit(General)
//	ページ面: Principal解決 → アクセス分類（リダイレクト判定はハンドラー実行前）
//
// Webhookと認証リンクはセッションの外に配置する
// （Webhookは署名が認証であり、認証リンクはメールから開かれるため）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))

	verificationHandler := NewVerificationHandler(deps.VerificationService)
	billingHandler := NewBillingHandler(deps.BillingService)
	meHandler := NewMeHandler(deps.Resolver, deps.EntitlementFinder)

	// --- 運用エンドポイント ---

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// --- 認証不要のルート ---

	// 課金Webhook（署名検証がリクエストの認証を兼ねる）
	r.Post("/api/billing/webhook", billingHandler.Webhook)

	// 認証リンク（メールから開かれるため公開）
	r.Get("/api/verification/confirm", verificationHandler.Confirm)
	r.Post("/api/verification/confirm", verificationHandler.Confirm)

	// --- 認証が必要なAPIルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /api/verification/send - 認証メール送信（専用レート制限を追加）
		r.With(deps.RateLimiter.VerificationMiddleware()).Post("/api/verification/send", verificationHandler.Send)

		r.Get("/api/me", meHandler.Me)
	})

	// --- ページ面 ---
	// 分類器がハンドラー実行前に通過・リダイレクトを決定する。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPrincipalMiddleware(deps.SessionFinder))
		r.Use(deps.Classifier.Middleware())
		r.Mount("/", deps.Pages)
	})

	return r
}

// NewPagePlaceholder はページレンダリング未接続時のプレースホルダーを返す。
// レンダリング層は外部コラボレーターであり、このコアの対象外。
func NewPagePlaceholder() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("unipress: " + r.URL.Path))
	})
}
