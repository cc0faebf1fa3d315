package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresWriterProfileRepo はPostgreSQLを使用したライタープロフィールリポジトリ。
type PostgresWriterProfileRepo struct {
	db *sql.DB
}

// NewPostgresWriterProfileRepo はPostgresWriterProfileRepoを生成する。
func NewPostgresWriterProfileRepo(db *sql.DB) *PostgresWriterProfileRepo {
	return &PostgresWriterProfileRepo{db: db}
}

const writerProfileColumns = `id, account_id, email, display_name, verification_status,
	university_verified, verified_university, created_at, updated_at`

// FindByAccountID は指定アカウントのライタープロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresWriterProfileRepo) FindByAccountID(ctx context.Context, accountID string) (*model.WriterProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+writerProfileColumns+` FROM writer_profiles WHERE account_id = $1`,
		accountID,
	)
	return scanWriterProfile(row)
}

// FindByID は指定IDのライタープロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresWriterProfileRepo) FindByID(ctx context.Context, id string) (*model.WriterProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+writerProfileColumns+` FROM writer_profiles WHERE id = $1`,
		id,
	)
	return scanWriterProfile(row)
}

// ExistsByAccountID は指定アカウントのライタープロフィールの有無を返す。
func (r *PostgresWriterProfileRepo) ExistsByAccountID(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM writer_profiles WHERE account_id = $1)`,
		accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check writer profile existence: %w", err)
	}
	return exists, nil
}

// scanWriterProfile は1行分のライタープロフィールをスキャンする。
func scanWriterProfile(row *sql.Row) (*model.WriterProfile, error) {
	profile := &model.WriterProfile{}
	err := row.Scan(
		&profile.ID, &profile.AccountID, &profile.Email, &profile.DisplayName,
		&profile.VerificationStatus, &profile.UniversityVerified, &profile.VerifiedUniversity,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find writer profile: %w", err)
	}
	return profile, nil
}

// compile-time interface check
var _ WriterProfileRepository = (*PostgresWriterProfileRepo)(nil)
