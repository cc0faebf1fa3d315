package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresAdminGrantRepo はPostgreSQLを使用した管理者権限リポジトリ。
type PostgresAdminGrantRepo struct {
	db *sql.DB
}

// NewPostgresAdminGrantRepo はPostgresAdminGrantRepoを生成する。
func NewPostgresAdminGrantRepo(db *sql.DB) *PostgresAdminGrantRepo {
	return &PostgresAdminGrantRepo{db: db}
}

// FindActiveByAccountID は指定アカウントの有効な管理者権限を取得する。
// 複数の付与が存在する場合はsuper_adminを優先する。見つからない場合はnilを返す。
func (r *PostgresAdminGrantRepo) FindActiveByAccountID(ctx context.Context, accountID string) (*model.AdminGrant, error) {
	grant := &model.AdminGrant{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, role, is_active, created_at
		 FROM admin_grants
		 WHERE account_id = $1 AND is_active = TRUE
		 ORDER BY CASE WHEN role = 'super_admin' THEN 0 ELSE 1 END
		 LIMIT 1`,
		accountID,
	).Scan(&grant.ID, &grant.AccountID, &grant.Role, &grant.IsActive, &grant.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin grant: %w", err)
	}

	return grant, nil
}

// compile-time interface check
var _ AdminGrantRepository = (*PostgresAdminGrantRepo)(nil)
