package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresVerificationTokenRepo はPostgreSQLを使用した認証トークンリポジトリ。
type PostgresVerificationTokenRepo struct {
	db *sql.DB
}

// NewPostgresVerificationTokenRepo はPostgresVerificationTokenRepoを生成する。
func NewPostgresVerificationTokenRepo(db *sql.DB) *PostgresVerificationTokenRepo {
	return &PostgresVerificationTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresVerificationTokenRepo) Create(ctx context.Context, token *model.VerificationToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (token, writer_id, university_email, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.Token, token.WriterID, token.UniversityEmail, token.IssuedAt, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}
	return nil
}

// FindUnredeemedByToken は未使用（verified_at IS NULL）のトークンを完全一致で検索する。
// 見つからない場合はnilを返す。使用済みトークンはこの検索にヒットしない。
func (r *PostgresVerificationTokenRepo) FindUnredeemedByToken(ctx context.Context, token string) (*model.VerificationToken, error) {
	t := &model.VerificationToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token, writer_id, university_email, issued_at, expires_at, verified_at
		 FROM verification_tokens
		 WHERE token = $1 AND verified_at IS NULL`,
		token,
	).Scan(&t.Token, &t.WriterID, &t.UniversityEmail, &t.IssuedAt, &t.ExpiresAt, &t.VerifiedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}

	return t, nil
}

// DeleteUnredeemedByWriterID は指定ライターの未使用トークンを全て削除する。
func (r *PostgresVerificationTokenRepo) DeleteUnredeemedByWriterID(ctx context.Context, writerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE writer_id = $1 AND verified_at IS NULL`,
		writerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete unredeemed tokens: %w", err)
	}
	return nil
}

// RedeemAndApprove はトークンのverified_at設定とライタープロフィールの
// 認証フラグ更新を同一トランザクションで行う。
// トークンだけが使用済みになりプロフィールが未更新のまま残る状態、
// およびその逆の状態を外部に見せない。
func (r *PostgresVerificationTokenRepo) RedeemAndApprove(ctx context.Context, token string, writerID string, institution string, verifiedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// トークンを使用済みにする。verified_at IS NULLの条件で二重使用を防ぐ。
	result, err := tx.ExecContext(ctx,
		`UPDATE verification_tokens
		 SET verified_at = $2
		 WHERE token = $1 AND verified_at IS NULL`,
		token, verifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to redeem token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("token already redeemed or not found: %s", token)
	}

	// ライタープロフィールの認証フラグを更新する。
	result, err = tx.ExecContext(ctx,
		`UPDATE writer_profiles
		 SET university_verified = TRUE,
		     verified_university = $2,
		     verification_status = $3,
		     updated_at = now()
		 WHERE id = $1`,
		writerID, institution, model.VerificationApproved,
	)
	if err != nil {
		return fmt.Errorf("failed to approve writer profile: %w", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("writer profile not found: %s", writerID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ VerificationTokenRepository = (*PostgresVerificationTokenRepo)(nil)
