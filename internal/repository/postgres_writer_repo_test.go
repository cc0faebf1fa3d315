package repository

import (
	"testing"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresWriterProfileRepoがWriterProfileRepositoryインターフェースを満たすことを検証
func TestPostgresWriterProfileRepo_ImplementsInterface(t *testing.T) {
	var _ WriterProfileRepository = (*PostgresWriterProfileRepo)(nil)
}

// NewPostgresWriterProfileRepoが正しく初期化されることを検証
func TestNewPostgresWriterProfileRepo_Initializes(t *testing.T) {
	repo := NewPostgresWriterProfileRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// WriterProfileモデルのフィールドが正しく構築されることを検証
func TestPostgresWriterProfileRepo_ProfileModel_Fields(t *testing.T) {
	profile := &model.WriterProfile{
		ID:                 "writer-id-1",
		AccountID:          "acct-1",
		Email:              "writer@u-tokyo.ac.jp",
		DisplayName:        "テストライター",
		VerificationStatus: model.VerificationPending,
	}

	if profile.VerificationStatus != model.VerificationPending {
		t.Errorf("VerificationStatus = %q, want %q", profile.VerificationStatus, model.VerificationPending)
	}
	if profile.UniversityVerified {
		t.Error("UniversityVerified should be false by default")
	}
	if profile.VerifiedUniversity != "" {
		t.Error("VerifiedUniversity should be empty by default")
	}
}
