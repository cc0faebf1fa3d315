package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/unipress/internal/access"
	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

// --- ルーターテスト用モック ---

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type mockSessionFinder struct {
	session *model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.session, nil
}

type mockWriterRepo struct {
	exists bool
}

func (m *mockWriterRepo) FindByAccountID(ctx context.Context, accountID string) (*model.WriterProfile, error) {
	return nil, nil
}
func (m *mockWriterRepo) FindByID(ctx context.Context, id string) (*model.WriterProfile, error) {
	return nil, nil
}
func (m *mockWriterRepo) ExistsByAccountID(ctx context.Context, accountID string) (bool, error) {
	return m.exists, nil
}

type mockAdminRepo struct{}

func (m *mockAdminRepo) FindActiveByAccountID(ctx context.Context, accountID string) (*model.AdminGrant, error) {
	return nil, nil
}

func newTestRouterDeps(sessionFinder *mockSessionFinder) *RouterDeps {
	resolver := access.NewResolver(&mockWriterRepo{}, &mockAdminRepo{}, "ac.jp")
	classifier := access.NewClassifier(access.DefaultRouteConfig(), resolver, nil)
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.CleanupInterval = time.Hour

	return &RouterDeps{
		HealthChecker:     &mockHealthChecker{},
		SessionFinder:     sessionFinder,
		CORSAllowedOrigin: "https://unipress.example.com",
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),

		Classifier: classifier,
		Resolver:   resolver,

		VerificationService: &mockVerificationService{},
		BillingService:      &mockBillingService{},
		EntitlementFinder:   &mockEntitlementFinder{},

		Pages: NewPagePlaceholder(),
	}
}

// /healthz がDB疎通成功時に200を返すことを検証
func TestRouter_Healthz(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// /healthz がDB疎通失敗時に503を返すことを検証
func TestRouter_Healthz_Unhealthy(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	deps.HealthChecker = &mockHealthChecker{err: errors.New("connection refused")}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// /metrics がPrometheus形式のレスポンスを返すことを検証
func TestRouter_Metrics(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// Webhookエンドポイントがセッションなしで到達できることを検証
// （署名が認証の代わり）
func TestRouter_WebhookReachableWithoutSession(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusUnauthorized {
		t.Error("webhook must not require a session")
	}
}

// 認証リンクの確認エンドポイントがセッションなしで到達できることを検証
func TestRouter_ConfirmReachableWithoutSession(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/verification/confirm?token=tok-abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusUnauthorized {
		t.Error("confirm link must not require a session")
	}
}

// 認証必須APIがセッションなしで401を返すことを検証
func TestRouter_AuthenticatedAPIRequiresSession(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/verification/send"},
		{http.MethodGet, "/api/me"},
	} {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

// ページ面の保護パスが未認証で302リダイレクトされることを検証
func TestRouter_PageClassification(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard/login" {
		t.Errorf("Location = %q, want /dashboard/login", loc)
	}
}

// 有効なセッションとライター適格があればダッシュボードに到達できることを検証
func TestRouter_DashboardWithWriterSession(t *testing.T) {
	finder := &mockSessionFinder{
		session: &model.Session{
			ID:        "sess-1",
			AccountID: "acct-1",
			Email:     "tanaka@u-tokyo.ac.jp",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	deps := newTestRouterDeps(finder)
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// 公開ページがそのまま配信されることを検証
func TestRouter_PublicPageServed(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// セキュリティヘッダーが全レスポンスに付与されることを検証
func TestRouter_SecurityHeaders(t *testing.T) {
	deps := newTestRouterDeps(&mockSessionFinder{})
	defer deps.RateLimiter.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
