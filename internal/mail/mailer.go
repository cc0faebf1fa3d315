// Package mail は認証リンクメール送信のコラボレーター境界を定義する。
// 実際の配送はトランザクショナルメール基盤の責務であり、
// このコアはリンクの内容（生トークンを含むURL）だけを規定する。
package mail

import (
	"context"
	"log/slog"
)

// Mailer は認証リンクの送信インターフェース。
type Mailer interface {
	// SendVerificationLink は認証リンクを指定アドレスに送信する。
	SendVerificationLink(ctx context.Context, email, link string) error
}

// LogMailer はリンクをログに出力するだけのMailer実装。
// ローカル開発およびテスト環境用。本番では配送基盤のアダプターに差し替える。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerificationLink はリンクをログに出力する。
func (m *LogMailer) SendVerificationLink(_ context.Context, email, link string) error {
	m.logger.Info("verification link issued",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}

// compile-time interface check
var _ Mailer = (*LogMailer)(nil)
