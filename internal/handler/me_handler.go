package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

// RoleResolverInterface はロール解決のインターフェース。
// access.Resolverの部分集合として定義する。
type RoleResolverInterface interface {
	RoleFor(ctx context.Context, principal model.Principal) model.Role
}

// EntitlementFinderInterface は購読状態参照のインターフェース。
// repository.EntitlementRepositoryの部分集合として定義する。
type EntitlementFinderInterface interface {
	FindByAccountID(ctx context.Context, accountID string) (*model.EntitlementRecord, error)
}

// MeHandler は現在のアカウント情報を返すHTTPハンドラー。
// UI側のプレミアムコンテンツ表示制御の入力になる。
type MeHandler struct {
	roles        RoleResolverInterface
	entitlements EntitlementFinderInterface
}

// NewMeHandler はMeHandlerを生成する。
func NewMeHandler(roles RoleResolverInterface, entitlements EntitlementFinderInterface) *MeHandler {
	return &MeHandler{roles: roles, entitlements: entitlements}
}

// Me は現在のアカウントのPrincipal、ロール、購読状態を返す。
// GET /api/me
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil || !principal.Authenticated {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	role := h.roles.RoleFor(r.Context(), principal)

	// 購読状態の参照エラーはinactive扱いに降格する。
	// エラーがプレミアムアクセスを与えることはない。
	status := model.EntitlementInactive
	rec, err := h.entitlements.FindByAccountID(r.Context(), principal.AccountID)
	if err != nil {
		slog.Error("failed to find entitlement",
			slog.String("account_id", principal.AccountID),
			slog.String("error", err.Error()),
		)
	} else if rec != nil {
		status = rec.Status
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accountId":         principal.AccountID,
		"email":             principal.Email,
		"role":              string(role),
		"entitlementStatus": string(status),
		"premium":           status.IsPremium(),
	})
}
