// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unipress/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewPrincipalMiddleware はHTTP Only CookieからPrincipalを解決してコンテキストに
// 注入するミドルウェアを返す。未認証でもリクエストは通す（判定は後段のルールが行う）。
// セッションストアのエラーは匿名扱いに降格する。エラーが権限を与えることはない。
func NewPrincipalMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := resolvePrincipal(r, sessionFinder)
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireSessionMiddleware は認証済みPrincipalを要求するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。APIルート用。
func NewRequireSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := resolvePrincipal(r, sessionFinder)
			if !principal.Authenticated {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolvePrincipal はCookieのセッションIDからPrincipalを導出する。
// Cookieなし、セッション期限切れ、ストアエラーのいずれも匿名Principalを返す。
func resolvePrincipal(r *http.Request, sessionFinder SessionFinder) model.Principal {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return model.Principal{}
	}

	session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return model.Principal{}
	}
	if session == nil {
		return model.Principal{}
	}

	return model.Principal{
		AccountID:     session.AccountID,
		Email:         session.Email,
		Authenticated: true,
	}
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// Principalミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok {
		return model.Principal{}, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// AccountIDFromContext はリクエストコンテキストから認証済みアカウントIDを取得する。
func AccountIDFromContext(ctx context.Context) (string, error) {
	principal, err := PrincipalFromContext(ctx)
	if err != nil {
		return "", err
	}
	if !principal.Authenticated || principal.AccountID == "" {
		return "", fmt.Errorf("account ID not found in context")
	}
	return principal.AccountID, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
