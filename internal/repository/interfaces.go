// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/unipress/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行はIdPコラボレーターの責務であり、このコアは参照と破棄のみ行う。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れまたは未存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// WriterProfileRepository はライタープロフィールの永続化インターフェース。
type WriterProfileRepository interface {
	// FindByAccountID は指定アカウントのライタープロフィールを取得する。
	// 見つからない場合はnilを返す。
	FindByAccountID(ctx context.Context, accountID string) (*model.WriterProfile, error)

	// FindByID は指定IDのライタープロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WriterProfile, error)

	// ExistsByAccountID は指定アカウントのライタープロフィールの有無を返す。
	ExistsByAccountID(ctx context.Context, accountID string) (bool, error)
}

// AdminGrantRepository は管理者権限付与の参照インターフェース。
// 付与・剥奪は外部プロビジョニングが行うため、読み取り専用。
type AdminGrantRepository interface {
	// FindActiveByAccountID は指定アカウントの有効な管理者権限を取得する。
	// 複数存在する場合はsuper_adminを優先する。見つからない場合はnilを返す。
	FindActiveByAccountID(ctx context.Context, accountID string) (*model.AdminGrant, error)
}

// EntitlementRepository は購読・課金状態の永続化インターフェース。
// 更新メソッドはイベント種別ごとに所有するフィールドのみを触る。
type EntitlementRepository interface {
	// FindByAccountID は指定アカウントのEntitlementRecordを取得する。
	// 見つからない場合はnilを返す。
	FindByAccountID(ctx context.Context, accountID string) (*model.EntitlementRecord, error)

	// FindBySubscriptionID はStripeサブスクリプションIDでEntitlementRecordを検索する。
	// 見つからない場合はnilを返す。
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.EntitlementRecord, error)

	// UpsertCheckout はチェックアウト完了時の状態をアカウントIDキーでUPSERTする。
	// customer/subscription参照、status、period_start、last_event_atを設定する。
	UpsertCheckout(ctx context.Context, rec *model.EntitlementRecord) error

	// UpdateStatusAndPeriod はサブスクリプションIDキーでstatusと期間を更新する。
	// 行が存在しない場合はfalseを返す（エラーにしない）。
	UpdateStatusAndPeriod(ctx context.Context, subscriptionID string, status model.EntitlementStatus, periodStart, periodEnd, eventAt time.Time) (bool, error)

	// UpdateStatus はサブスクリプションIDキーでstatusのみを更新する。
	// 行が存在しない場合はfalseを返す。
	UpdateStatus(ctx context.Context, subscriptionID string, status model.EntitlementStatus, eventAt time.Time) (bool, error)

	// MarkCanceled はstatusをcanceledにし、period_endを指定時刻に設定する。
	// 行は削除しない（履歴保持のため）。行が存在しない場合はfalseを返す。
	MarkCanceled(ctx context.Context, subscriptionID string, endedAt, eventAt time.Time) (bool, error)

	// UpdateLastPayment はlast_payment_atのみを更新する。statusには触れない。
	// 行が存在しない場合はfalseを返す。
	UpdateLastPayment(ctx context.Context, subscriptionID string, paidAt, eventAt time.Time) (bool, error)

	// AppendLedger は不変の台帳行を追加する。
	AppendLedger(ctx context.Context, entry *model.LedgerEntry) error
}

// VerificationTokenRepository は認証トークンの永続化インターフェース。
type VerificationTokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.VerificationToken) error

	// FindUnredeemedByToken は未使用（verified_at IS NULL）のトークンを完全一致で検索する。
	// 見つからない場合はnilを返す。使用済みトークンはこの検索にヒットしない。
	FindUnredeemedByToken(ctx context.Context, token string) (*model.VerificationToken, error)

	// DeleteUnredeemedByWriterID は指定ライターの未使用トークンを全て削除する。
	// ライターごとに未使用トークン高々1件の不変条件を新規発行前に再確立する。
	DeleteUnredeemedByWriterID(ctx context.Context, writerID string) error

	// RedeemAndApprove はトークンのverified_at設定とライタープロフィールの
	// 認証フラグ更新を同一トランザクションで行う。
	// どちらか一方だけが成立した状態を外部に見せない。
	RedeemAndApprove(ctx context.Context, token string, writerID string, institution string, verifiedAt time.Time) error
}

// UniversityRegistryRepository は大学レジストリの参照インターフェース。
type UniversityRegistryRepository interface {
	// FindActiveByDomain は有効な大学レジストリエントリをドメイン完全一致で検索する。
	// 見つからない、または無効化されている場合はnilを返す。
	FindActiveByDomain(ctx context.Context, domain string) (*model.UniversityRegistryEntry, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
