package model

import "time"

// EntitlementStatus は購読の状態を表す。
type EntitlementStatus string

const (
	EntitlementInactive EntitlementStatus = "inactive"
	EntitlementActive   EntitlementStatus = "active"
	EntitlementPastDue  EntitlementStatus = "past_due"
	EntitlementCanceled EntitlementStatus = "canceled"
	EntitlementTrialing EntitlementStatus = "trialing"
)

// IsPremium はプレミアムコンテンツへのアクセスを許可すべき状態かを返す。
func (s EntitlementStatus) IsPremium() bool {
	return s == EntitlementActive || s == EntitlementTrialing
}

// EntitlementRecord はアカウントごとの購読・課金状態を表す。
// 更新は課金イベント同期処理のみが行う。削除はしない（履歴保持のため）。
type EntitlementRecord struct {
	ID                   string
	AccountID            string
	StripeCustomerID     string // 未チェックアウトの場合は空文字列
	StripeSubscriptionID string // 未チェックアウトの場合は空文字列
	Status               EntitlementStatus
	PeriodStart          time.Time
	PeriodEnd            time.Time
	LastPaymentAt        time.Time // ゼロ値は支払い実績なし
	LastEventAt          time.Time // 最後に適用した課金イベントの発生時刻
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// LedgerEntry は課金イベントの不変な台帳行を表す。
// 可変なEntitlementRecordとは独立に、外部から報告された金額と期間を監査用に保持する。
type LedgerEntry struct {
	ID                   string
	AccountID            string
	StripeSubscriptionID string
	AmountTotal          int64 // 最小通貨単位
	Currency             string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	EventType            string
	CreatedAt            time.Time
}
