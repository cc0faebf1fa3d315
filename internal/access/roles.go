// Package access はリクエスト単位のロール解決とルートアクセス分類を提供する。
package access

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/unipress/internal/model"
	"github.com/hitoshi/unipress/internal/repository"
)

// Resolver はアカウントのロールとライター適格性を解決する。
// ページごとに散在しがちなロール判定をここに集約し、全コンポーネントが同じ答えを得る。
type Resolver struct {
	writers      repository.WriterProfileRepository
	admins       repository.AdminGrantRepository
	domainSuffix string
}

// NewResolver はResolverを生成する。
// domainSuffixは信頼する大学ドメインのサフィックス（例: "ac.jp"）。
func NewResolver(
	writers repository.WriterProfileRepository,
	admins repository.AdminGrantRepository,
	domainSuffix string,
) *Resolver {
	return &Resolver{
		writers:      writers,
		admins:       admins,
		domainSuffix: domainSuffix,
	}
}

// WriterEligible はアカウントがライター適格かを返す。
// 適格条件: メールドメインが信頼サフィックスに一致する、または
// WriterProfile行が存在する、のいずれか。
// プロフィール作成がIdPサインアップに遅れる場合があるため、
// プロフィール行がなくてもドメイン一致だけで適格とする。
// ストア参照エラーは「不適格」に降格する。エラーが昇格を与えることはない。
func (r *Resolver) WriterEligible(ctx context.Context, principal model.Principal) bool {
	if !principal.Authenticated {
		return false
	}

	if r.domainMatches(principal.Email) {
		return true
	}

	exists, err := r.writers.ExistsByAccountID(ctx, principal.AccountID)
	if err != nil {
		slog.Error("failed to check writer profile",
			slog.String("account_id", principal.AccountID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return exists
}

// RoleFor はアカウントの解決済みロールを返す。
// 優先順位: super_admin > moderator > writer > reader。
// ストア参照エラーは該当段階をスキップし、より低いロールに降格する。
func (r *Resolver) RoleFor(ctx context.Context, principal model.Principal) model.Role {
	if !principal.Authenticated {
		return model.RoleReader
	}

	grant, err := r.admins.FindActiveByAccountID(ctx, principal.AccountID)
	if err != nil {
		slog.Error("failed to find admin grant",
			slog.String("account_id", principal.AccountID),
			slog.String("error", err.Error()),
		)
	} else if grant != nil {
		switch grant.Role {
		case model.AdminRoleSuperAdmin:
			return model.RoleSuperAdmin
		case model.AdminRoleModerator:
			return model.RoleModerator
		}
	}

	if r.WriterEligible(ctx, principal) {
		return model.RoleWriter
	}

	return model.RoleReader
}

// domainMatches はメールアドレスのドメインが信頼サフィックスに一致するかを返す。
// サフィックス全体（"ac.jp"）またはサブドメイン（"xx.ac.jp"）を受け付ける。
func (r *Resolver) domainMatches(email string) bool {
	if r.domainSuffix == "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	suffix := strings.ToLower(r.domainSuffix)
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}
