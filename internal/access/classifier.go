package access

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

// 分類処理のウォールクロック上限。超過時は最も制限的な分岐に倒す。
const classifyTimeout = 3 * time.Second

// RouteConfig はルート分類の対象となるパス集合を保持する。
// 静的な設定であり、実行時に計算しない。
type RouteConfig struct {
	// PublicPrefixes は分類対象外のパスプレフィックス
	// （認証ページ、パスワードリセット、静的アセット、APIルート）。
	PublicPrefixes []string

	// ProtectedPrefixes は認証を必須とするパスプレフィックス
	// （ライターダッシュボード、購読管理、プロフィール）。
	ProtectedPrefixes []string

	// DashboardPrefix はライターダッシュボードのプレフィックス。
	DashboardPrefix string

	// AdminPrefix は管理画面のプレフィックス。
	AdminPrefix string

	// ReaderAreaPrefixes はリーダー専用領域のプレフィックス
	// （購読ページ、プロフィールページ）。
	ReaderAreaPrefixes []string

	// WriterLoginPath はライター用ログイン入口。
	WriterLoginPath string

	// ReaderLoginPath はリーダー用ログイン入口。
	ReaderLoginPath string

	// ArticleListPath は公開記事一覧。
	ArticleListPath string

	// DashboardPath はライターダッシュボードのトップ。
	DashboardPath string
}

// DefaultRouteConfig はデフォルトのルート設定を返す。
func DefaultRouteConfig() RouteConfig {
	return RouteConfig{
		PublicPrefixes: []string{
			"/login", "/signup", "/password-reset",
			"/dashboard/login", "/dashboard/signup",
			"/articles", "/static", "/assets", "/api",
			"/healthz", "/metrics", "/favicon.ico",
		},
		ProtectedPrefixes:  []string{"/dashboard", "/subscription", "/profile", "/admin"},
		DashboardPrefix:    "/dashboard",
		AdminPrefix:        "/admin",
		ReaderAreaPrefixes: []string{"/subscription", "/profile"},
		WriterLoginPath:    "/dashboard/login",
		ReaderLoginPath:    "/login",
		ArticleListPath:    "/articles",
		DashboardPath:      "/dashboard",
	}
}

// Decision は1つのルールの判定結果を表す。
type Decision int

const (
	// DecisionNext は次のルールの評価に進むことを示す。
	DecisionNext Decision = iota
	// DecisionAllow は以降のルールを評価せずリクエストを通過させることを示す。
	DecisionAllow
	// DecisionRedirect は指定先へのリダイレクトを示す。
	DecisionRedirect
)

// Rule は述語→アクションの1ルールを表す。
// ルールは順序付きリストとして評価され、最初のAllow/Redirectで短絡する。
type Rule struct {
	Name   string
	Decide func(ctx context.Context, path string, principal model.Principal) (Decision, string)
}

// RedirectRecorder はリダイレクト発生の記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type RedirectRecorder interface {
	RecordClassifierRedirect(rule string)
}

// Classifier は全ページリクエストをハンドラー実行前に分類し、
// 通過またはリダイレクトを決定する。
// ルーターであって権限の源泉ではない: WriterProfileの作成等はここでは行わない。
type Classifier struct {
	config   RouteConfig
	resolver *Resolver
	rules    []Rule
	metrics  RedirectRecorder // nil可
}

// NewClassifier はデフォルトのルールチェーンを構成したClassifierを生成する。
//
// 評価順序:
//  1. 公開パスは無条件で通過
//  2. 未認証で保護パス → ログイン入口へリダイレクト
//     （ダッシュボード配下はライター用、それ以外はリーダー用。ログイン面が分かれているため）
//  3. 管理画面で管理者権限なし → 記事一覧へリダイレクト
//  4. ダッシュボード配下でライター不適格 → 記事一覧へリダイレクト
//  5. リーダー専用領域でライター適格 → ダッシュボードへリダイレクト
//     （ライターはリーダー向け購読導線を使わない）
//  6. それ以外は通過
func NewClassifier(config RouteConfig, resolver *Resolver, metrics RedirectRecorder) *Classifier {
	c := &Classifier{
		config:   config,
		resolver: resolver,
		metrics:  metrics,
	}
	c.rules = []Rule{
		{Name: "public_passthrough", Decide: c.decidePublic},
		{Name: "require_login", Decide: c.decideRequireLogin},
		{Name: "admin_area", Decide: c.decideAdminArea},
		{Name: "writer_dashboard", Decide: c.decideWriterDashboard},
		{Name: "reader_area", Decide: c.decideReaderArea},
	}
	return c
}

// Classify はパスとPrincipalからリダイレクト先を決定する。
// 戻り値の2番目が空文字列の場合は通過を意味する。
// 分類中のストアエラーはここより上に伝播しない。
func (c *Classifier) Classify(ctx context.Context, path string, principal model.Principal) (rule string, redirect string) {
	for _, r := range c.rules {
		decision, target := r.Decide(ctx, path, principal)
		switch decision {
		case DecisionAllow:
			return r.Name, ""
		case DecisionRedirect:
			return r.Name, target
		}
	}
	return "", ""
}

// Middleware はClassifierをnet/httpミドルウェアとして返す。
// PrincipalMiddlewareの後に配置すること。
func (c *Classifier) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), classifyTimeout)
			defer cancel()

			principal, err := middleware.PrincipalFromContext(r.Context())
			if err != nil {
				// Principalミドルウェア未通過のリクエストは匿名として扱う
				principal = model.Principal{}
			}

			rule, redirect := c.Classify(ctx, r.URL.Path, principal)
			if redirect != "" {
				if c.metrics != nil {
					c.metrics.RecordClassifierRedirect(rule)
				}
				slog.Info("access redirect",
					slog.String("rule", rule),
					slog.String("path", r.URL.Path),
					slog.String("redirect", redirect),
				)
				http.Redirect(w, r, redirect, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// decidePublic は公開パスを無条件で通過させる。
func (c *Classifier) decidePublic(_ context.Context, path string, _ model.Principal) (Decision, string) {
	for _, prefix := range c.config.PublicPrefixes {
		if hasPathPrefix(path, prefix) {
			return DecisionAllow, ""
		}
	}
	return DecisionNext, ""
}

// decideRequireLogin は未認証の保護パスアクセスをログイン入口にリダイレクトする。
// ライターとリーダーでログイン面が分かれているため、宛先を使い分ける。
func (c *Classifier) decideRequireLogin(_ context.Context, path string, principal model.Principal) (Decision, string) {
	if principal.Authenticated {
		return DecisionNext, ""
	}
	for _, prefix := range c.config.ProtectedPrefixes {
		if hasPathPrefix(path, prefix) {
			if hasPathPrefix(path, c.config.DashboardPrefix) {
				return DecisionRedirect, c.config.WriterLoginPath
			}
			return DecisionRedirect, c.config.ReaderLoginPath
		}
	}
	return DecisionNext, ""
}

// decideAdminArea は管理画面をモデレーター以上に制限する。
func (c *Classifier) decideAdminArea(ctx context.Context, path string, principal model.Principal) (Decision, string) {
	if !hasPathPrefix(path, c.config.AdminPrefix) {
		return DecisionNext, ""
	}
	if c.resolver.RoleFor(ctx, principal).IsAdmin() {
		return DecisionAllow, ""
	}
	return DecisionRedirect, c.config.ArticleListPath
}

// decideWriterDashboard はダッシュボード配下をライター適格アカウントに制限する。
// 不適格な認証済みアカウントはリーダーであり、ライターツールを見せてはならない。
func (c *Classifier) decideWriterDashboard(ctx context.Context, path string, principal model.Principal) (Decision, string) {
	if !hasPathPrefix(path, c.config.DashboardPrefix) {
		return DecisionNext, ""
	}
	if c.resolver.WriterEligible(ctx, principal) {
		return DecisionAllow, ""
	}
	return DecisionRedirect, c.config.ArticleListPath
}

// decideReaderArea はリーダー専用領域からライター適格アカウントを
// ダッシュボードへ誘導する。
func (c *Classifier) decideReaderArea(ctx context.Context, path string, principal model.Principal) (Decision, string) {
	for _, prefix := range c.config.ReaderAreaPrefixes {
		if hasPathPrefix(path, prefix) {
			if c.resolver.WriterEligible(ctx, principal) {
				return DecisionRedirect, c.config.DashboardPath
			}
			return DecisionAllow, ""
		}
	}
	return DecisionNext, ""
}

// hasPathPrefix はパスがプレフィックスに一致するかを返す。
// "/dashboard"は"/dashboard"と"/dashboard/..."に一致し、"/dashboardx"には一致しない。
func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
