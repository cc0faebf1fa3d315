// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと、失効したまま使用されなかった認証トークンを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと失効トークンの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// 使用済みトークンは監査証跡（university_verifiedの根拠）になるため削除しない。
type CleanupJob struct {
	db              Executor
	logger          *slog.Logger
	TokenGraceHours int // 失効トークンを削除まで保持する時間（デフォルト: 72）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:              db,
		logger:          logger,
		TokenGraceHours: 72,
	}
}

// Run は期限切れセッションと失効した未使用トークンを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}

	grace := fmt.Sprintf("%d hours", j.TokenGraceHours)
	tokens, err := j.exec(ctx,
		`DELETE FROM verification_tokens
		 WHERE verified_at IS NULL AND expires_at < now() - $1::interval`,
		grace,
	)
	if err != nil {
		return fmt.Errorf("failed to clean up verification tokens: %w", err)
	}

	j.logger.Info("cleanup job finished",
		slog.Int64("sessions_deleted", sessions),
		slog.Int64("tokens_deleted", tokens),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// exec はクエリを実行し、削除件数を返す。
func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("cleanup query failed",
			slog.String("error", err.Error()),
		)
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
