// Package verification は大学メールアドレスによるライター認証ワークフローを提供する。
// 状態遷移: unverified → pending（トークン発行）→ verified（トークン使用）。
// pendingのトークンは24時間で失効し、再発行が必要になる。
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/unipress/internal/mail"
	"github.com/hitoshi/unipress/internal/model"
	"github.com/hitoshi/unipress/internal/repository"
)

// ServiceConfig は認証ワークフローの設定。
type ServiceConfig struct {
	TokenTTL time.Duration // トークン有効期間（デフォルト24時間）
	BaseURL  string        // 認証リンクのベースURL
}

// Metrics は認証ワークフローのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Metrics interface {
	RecordVerificationIssued()
	RecordVerificationConfirmed()
	RecordVerificationFailed(reason string)
}

// Service はライター認証に関するビジネスロジックを提供する。
type Service struct {
	tokens   repository.VerificationTokenRepository
	registry repository.UniversityRegistryRepository
	writers  repository.WriterProfileRepository
	mailer   mail.Mailer
	metrics  Metrics // nil可
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	tokens repository.VerificationTokenRepository,
	registry repository.UniversityRegistryRepository,
	writers repository.WriterProfileRepository,
	mailer mail.Mailer,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	return &Service{
		tokens:   tokens,
		registry: registry,
		writers:  writers,
		mailer:   mailer,
		metrics:  metrics,
		config:   config,
	}
}

// Issue は認証トークンを発行し、認証リンクをメール送信する。
// 成功時は大学名を返す。
// 既存の未使用トークンは発行前に無効化する（ライターごとに未使用トークン高々1件）。
func (s *Service) Issue(ctx context.Context, accountID, universityEmail string) (string, error) {
	// 1. ライタープロフィールの解決
	profile, err := s.writers.FindByAccountID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to find writer profile: %w", err)
	}
	if profile == nil {
		return "", model.NewWriterNotFoundError()
	}

	// 2. メールドメインの検証
	domain, err := emailDomain(universityEmail)
	if err != nil {
		return "", model.NewInvalidEmailError()
	}
	entry, err := s.registry.FindActiveByDomain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("failed to look up university registry: %w", err)
	}
	if entry == nil {
		return "", model.NewDomainNotEligibleError(domain)
	}

	// 3. 既存の未使用トークンを無効化
	if err := s.tokens.DeleteUnredeemedByWriterID(ctx, profile.ID); err != nil {
		return "", fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	// 4. トークン生成と永続化
	tokenValue, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	token := &model.VerificationToken{
		Token:           tokenValue,
		WriterID:        profile.ID,
		UniversityEmail: universityEmail,
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.config.TokenTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	// 5. 認証リンクの送信（生トークンが唯一の秘密。第二チャネルはない）
	link := s.verificationLink(tokenValue)
	if err := s.mailer.SendVerificationLink(ctx, universityEmail, link); err != nil {
		return "", fmt.Errorf("failed to send verification link: %w", err)
	}

	slog.Info("verification token issued",
		slog.String("writer_id", profile.ID),
		slog.String("domain", domain),
	)
	if s.metrics != nil {
		s.metrics.RecordVerificationIssued()
	}

	return entry.InstitutionName, nil
}

// Confirm はトークンを使用してライターの大学認証を完了する。
// 成功時は大学名を返す。
// トークンは厳密に単回使用: 2回目の呼び出しはTOKEN_INVALIDで失敗する
// （検索がverified_at IS NULLで絞るため）。
func (s *Service) Confirm(ctx context.Context, tokenValue string) (string, error) {
	// 1. 未使用トークンの完全一致検索
	token, err := s.tokens.FindUnredeemedByToken(ctx, tokenValue)
	if err != nil {
		return "", fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil {
		s.recordFailure("invalid")
		return "", model.NewTokenInvalidError()
	}

	// 2. 期限チェック。期限切れトークンは未使用のまま死ぬ（復活させない）。
	now := time.Now()
	if token.Expired(now) {
		s.recordFailure("expired")
		return "", model.NewTokenExpiredError()
	}

	// 3. 保存済みメールのドメインから大学名を解決
	domain, err := emailDomain(token.UniversityEmail)
	if err != nil {
		return "", fmt.Errorf("stored email is malformed: %w", err)
	}
	entry, err := s.registry.FindActiveByDomain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("failed to look up university registry: %w", err)
	}
	if entry == nil {
		// 発行後にレジストリが無効化されたケース
		s.recordFailure("registry_inactive")
		return "", model.NewDomainNotEligibleError(domain)
	}

	// 4. トークン使用とプロフィール更新を原子的に実行
	if err := s.tokens.RedeemAndApprove(ctx, token.Token, token.WriterID, entry.InstitutionName, now); err != nil {
		return "", fmt.Errorf("failed to redeem token: %w", err)
	}

	slog.Info("writer verified",
		slog.String("writer_id", token.WriterID),
		slog.String("institution", entry.InstitutionName),
	)
	if s.metrics != nil {
		s.metrics.RecordVerificationConfirmed()
	}

	return entry.InstitutionName, nil
}

// recordFailure は失敗メトリクスを記録する。
func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordVerificationFailed(reason)
	}
}

// verificationLink は生トークンを含む認証リンクを組み立てる。
func (s *Service) verificationLink(token string) string {
	return fmt.Sprintf("%s/api/verification/confirm?token=%s",
		strings.TrimSuffix(s.config.BaseURL, "/"), url.QueryEscape(token))
}

// emailDomain はメールアドレスからドメイン部を小文字で取り出す。
func emailDomain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("malformed email address")
	}
	return strings.ToLower(email[at+1:]), nil
}

// generateToken は暗号的に安全な256ビットのトークン値を生成する。
// 推測・列挙が計算量的に不可能であること。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
