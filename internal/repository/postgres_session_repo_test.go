package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresSessionRepoがSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Sessionモデルのフィールドが正しく構築されることを検証
func TestPostgresSessionRepo_SessionModel_Fields(t *testing.T) {
	now := time.Now()
	sess := &model.Session{
		ID:        "sess-id-1",
		AccountID: "acct-1",
		Email:     "reader@example.com",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}

	if sess.ID != "sess-id-1" {
		t.Errorf("sess.ID = %q, want %q", sess.ID, "sess-id-1")
	}
	if sess.AccountID != "acct-1" {
		t.Errorf("sess.AccountID = %q, want %q", sess.AccountID, "acct-1")
	}
	if !sess.ExpiresAt.After(now) {
		t.Error("ExpiresAt should be in the future")
	}
}
