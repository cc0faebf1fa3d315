package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/unipress/internal/model"
)

type mockRoleResolver struct {
	roleForFn func(ctx context.Context, principal model.Principal) model.Role
}

func (m *mockRoleResolver) RoleFor(ctx context.Context, principal model.Principal) model.Role {
	if m.roleForFn != nil {
		return m.roleForFn(ctx, principal)
	}
	return model.RoleReader
}

type mockEntitlementFinder struct {
	findByAccountIDFn func(ctx context.Context, accountID string) (*model.EntitlementRecord, error)
}

func (m *mockEntitlementFinder) FindByAccountID(ctx context.Context, accountID string) (*model.EntitlementRecord, error) {
	if m.findByAccountIDFn != nil {
		return m.findByAccountIDFn(ctx, accountID)
	}
	return nil, nil
}

// 認証済みアカウントのロールと購読状態が返ることを検証
func TestMeHandler_Me(t *testing.T) {
	roles := &mockRoleResolver{
		roleForFn: func(ctx context.Context, principal model.Principal) model.Role {
			return model.RoleWriter
		},
	}
	entitlements := &mockEntitlementFinder{
		findByAccountIDFn: func(ctx context.Context, accountID string) (*model.EntitlementRecord, error) {
			return &model.EntitlementRecord{
				AccountID: accountID,
				Status:    model.EntitlementActive,
			}, nil
		},
	}
	h := NewMeHandler(roles, entitlements)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/me", nil), "acct-1")
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["accountId"] != "acct-1" {
		t.Errorf("accountId = %v, want acct-1", resp["accountId"])
	}
	if resp["role"] != "writer" {
		t.Errorf("role = %v, want writer", resp["role"])
	}
	if resp["entitlementStatus"] != "active" {
		t.Errorf("entitlementStatus = %v, want active", resp["entitlementStatus"])
	}
	if resp["premium"] != true {
		t.Errorf("premium = %v, want true", resp["premium"])
	}
}

// 購読行がないアカウントはinactive・非プレミアムになることを検証
func TestMeHandler_Me_NoEntitlement(t *testing.T) {
	h := NewMeHandler(&mockRoleResolver{}, &mockEntitlementFinder{})

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/me", nil), "acct-1")
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["entitlementStatus"] != "inactive" {
		t.Errorf("entitlementStatus = %v, want inactive", resp["entitlementStatus"])
	}
	if resp["premium"] != false {
		t.Errorf("premium = %v, want false", resp["premium"])
	}
}

// 購読ストアのエラーがinactiveに降格することを検証（エラーはプレミアムを与えない）
func TestMeHandler_Me_EntitlementErrorDegrades(t *testing.T) {
	entitlements := &mockEntitlementFinder{
		findByAccountIDFn: func(ctx context.Context, accountID string) (*model.EntitlementRecord, error) {
			return nil, errors.New("timeout")
		},
	}
	h := NewMeHandler(&mockRoleResolver{}, entitlements)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/me", nil), "acct-1")
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["premium"] != false {
		t.Error("store error must not grant premium")
	}
}

// 未認証リクエストに401が返ることを検証
func TestMeHandler_Me_Unauthorized(t *testing.T) {
	h := NewMeHandler(&mockRoleResolver{}, &mockEntitlementFinder{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
