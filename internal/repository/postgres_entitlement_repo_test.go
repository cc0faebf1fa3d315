package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresEntitlementRepoがEntitlementRepositoryインターフェースを満たすことを検証
func TestPostgresEntitlementRepo_ImplementsInterface(t *testing.T) {
	var _ EntitlementRepository = (*PostgresEntitlementRepo)(nil)
}

// NewPostgresEntitlementRepoが正しく初期化されることを検証
func TestNewPostgresEntitlementRepo_Initializes(t *testing.T) {
	repo := NewPostgresEntitlementRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// EntitlementRecordモデルのフィールドが正しく構築されることを検証
func TestPostgresEntitlementRepo_RecordModel_Fields(t *testing.T) {
	now := time.Now()
	rec := &model.EntitlementRecord{
		ID:                   "ent-id-1",
		AccountID:            "acct-1",
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_123",
		Status:               model.EntitlementActive,
		PeriodStart:          now,
		PeriodEnd:            now.Add(30 * 24 * time.Hour),
		LastEventAt:          now,
	}

	if rec.Status != model.EntitlementActive {
		t.Errorf("rec.Status = %q, want %q", rec.Status, model.EntitlementActive)
	}
	if !rec.Status.IsPremium() {
		t.Error("active status should be premium")
	}
	if rec.LastPaymentAt != (time.Time{}) {
		t.Error("LastPaymentAt should be zero by default")
	}
}

// LedgerEntryモデルが金額を最小通貨単位で保持することを検証
func TestPostgresEntitlementRepo_LedgerModel_Fields(t *testing.T) {
	entry := &model.LedgerEntry{
		ID:                   "ledger-id-1",
		AccountID:            "acct-1",
		StripeSubscriptionID: "sub_123",
		AmountTotal:          980,
		Currency:             "jpy",
		EventType:            "checkout.session.completed",
	}

	if entry.AmountTotal != 980 {
		t.Errorf("entry.AmountTotal = %d, want 980", entry.AmountTotal)
	}
	if entry.Currency != "jpy" {
		t.Errorf("entry.Currency = %q, want %q", entry.Currency, "jpy")
	}
}
