package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresUniversityRegistryRepo はPostgreSQLを使用した大学レジストリリポジトリ。
// レジストリは静的な参照データであり、このコアからは読み取り専用。
type PostgresUniversityRegistryRepo struct {
	db *sql.DB
}

// NewPostgresUniversityRegistryRepo はPostgresUniversityRegistryRepoを生成する。
func NewPostgresUniversityRegistryRepo(db *sql.DB) *PostgresUniversityRegistryRepo {
	return &PostgresUniversityRegistryRepo{db: db}
}

// FindActiveByDomain は有効な大学レジストリエントリをドメイン完全一致で検索する。
// 見つからない、または無効化されている場合はnilを返す。
func (r *PostgresUniversityRegistryRepo) FindActiveByDomain(ctx context.Context, domain string) (*model.UniversityRegistryEntry, error) {
	entry := &model.UniversityRegistryEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT domain, institution_name, active
		 FROM university_registry
		 WHERE domain = $1 AND active = TRUE`,
		domain,
	).Scan(&entry.Domain, &entry.InstitutionName, &entry.Active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find university registry entry: %w", err)
	}

	return entry, nil
}

// compile-time interface check
var _ UniversityRegistryRepository = (*PostgresUniversityRegistryRepo)(nil)
