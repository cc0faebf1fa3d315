package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/unipress/internal/model"
)

// PostgresEntitlementRepo はPostgreSQLを使用した購読状態リポジトリ。
// 行レベルのUPDATEの原子性に依存し、アプリケーションレベルのロックは行わない。
type PostgresEntitlementRepo struct {
	db *sql.DB
}

// NewPostgresEntitlementRepo はPostgresEntitlementRepoを生成する。
func NewPostgresEntitlementRepo(db *sql.DB) *PostgresEntitlementRepo {
	return &PostgresEntitlementRepo{db: db}
}

const entitlementColumns = `id, account_id, stripe_customer_id, stripe_subscription_id,
	status, period_start, period_end, last_payment_at, last_event_at, created_at, updated_at`

// FindByAccountID は指定アカウントのEntitlementRecordを取得する。見つからない場合はnilを返す。
func (r *PostgresEntitlementRepo) FindByAccountID(ctx context.Context, accountID string) (*model.EntitlementRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE account_id = $1`,
		accountID,
	)
	return scanEntitlement(row)
}

// FindBySubscriptionID はStripeサブスクリプションIDでEntitlementRecordを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresEntitlementRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.EntitlementRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE stripe_subscription_id = $1`,
		subscriptionID,
	)
	return scanEntitlement(row)
}

// UpsertCheckout はチェックアウト完了時の状態をアカウントIDキーでUPSERTする。
// アカウント登録時に先行作成されたinactive行があればそれを更新し、なければ新規作成する。
func (r *PostgresEntitlementRepo) UpsertCheckout(ctx context.Context, rec *model.EntitlementRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlements
		   (id, account_id, stripe_customer_id, stripe_subscription_id, status,
		    period_start, last_event_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 ON CONFLICT (account_id) DO UPDATE SET
		   stripe_customer_id     = EXCLUDED.stripe_customer_id,
		   stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		   status                 = EXCLUDED.status,
		   period_start           = EXCLUDED.period_start,
		   last_event_at          = EXCLUDED.last_event_at,
		   updated_at             = now()`,
		rec.ID, rec.AccountID, rec.StripeCustomerID, rec.StripeSubscriptionID,
		rec.Status, rec.PeriodStart, rec.LastEventAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return nil
}

// UpdateStatusAndPeriod はサブスクリプションIDキーでstatusと期間を更新する。
// 行が存在しない場合はfalseを返す（エラーにしない）。
func (r *PostgresEntitlementRepo) UpdateStatusAndPeriod(ctx context.Context, subscriptionID string, status model.EntitlementStatus, periodStart, periodEnd, eventAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entitlements
		 SET status = $2, period_start = $3, period_end = $4, last_event_at = $5, updated_at = now()
		 WHERE stripe_subscription_id = $1`,
		subscriptionID, status, periodStart, periodEnd, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update entitlement status and period: %w", err)
	}
	return rowsAffected(result)
}

// UpdateStatus はサブスクリプションIDキーでstatusのみを更新する。
// 行が存在しない場合はfalseを返す。
func (r *PostgresEntitlementRepo) UpdateStatus(ctx context.Context, subscriptionID string, status model.EntitlementStatus, eventAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entitlements
		 SET status = $2, last_event_at = $3, updated_at = now()
		 WHERE stripe_subscription_id = $1`,
		subscriptionID, status, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update entitlement status: %w", err)
	}
	return rowsAffected(result)
}

// MarkCanceled はstatusをcanceledにし、period_endを指定時刻に設定する。
// 行は削除しない（履歴保持のため）。行が存在しない場合はfalseを返す。
func (r *PostgresEntitlementRepo) MarkCanceled(ctx context.Context, subscriptionID string, endedAt, eventAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entitlements
		 SET status = $2, period_end = $3, last_event_at = $4, updated_at = now()
		 WHERE stripe_subscription_id = $1`,
		subscriptionID, model.EntitlementCanceled, endedAt, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark entitlement canceled: %w", err)
	}
	return rowsAffected(result)
}

// UpdateLastPayment はlast_payment_atのみを更新する。statusには触れない。
// 行が存在しない場合はfalseを返す。
func (r *PostgresEntitlementRepo) UpdateLastPayment(ctx context.Context, subscriptionID string, paidAt, eventAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entitlements
		 SET last_payment_at = $2, last_event_at = $3, updated_at = now()
		 WHERE stripe_subscription_id = $1`,
		subscriptionID, paidAt, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update entitlement last payment: %w", err)
	}
	return rowsAffected(result)
}

// AppendLedger は不変の台帳行を追加する。
func (r *PostgresEntitlementRepo) AppendLedger(ctx context.Context, entry *model.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entitlement_ledger
		   (id, account_id, stripe_subscription_id, amount_total, currency,
		    period_start, period_end, event_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		entry.ID, entry.AccountID, entry.StripeSubscriptionID, entry.AmountTotal,
		entry.Currency, entry.PeriodStart, entry.PeriodEnd, entry.EventType,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// scanEntitlement は1行分のEntitlementRecordをスキャンする。
// NULL許容のタイムスタンプ列はゼロ値にマップする。
func scanEntitlement(row *sql.Row) (*model.EntitlementRecord, error) {
	rec := &model.EntitlementRecord{}
	var periodStart, periodEnd, lastPaymentAt, lastEventAt sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.AccountID, &rec.StripeCustomerID, &rec.StripeSubscriptionID,
		&rec.Status, &periodStart, &periodEnd, &lastPaymentAt, &lastEventAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlement: %w", err)
	}
	rec.PeriodStart = periodStart.Time
	rec.PeriodEnd = periodEnd.Time
	rec.LastPaymentAt = lastPaymentAt.Time
	rec.LastEventAt = lastEventAt.Time
	return rec, nil
}

// rowsAffected は更新が行われたかをboolで返す。
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ EntitlementRepository = (*PostgresEntitlementRepo)(nil)
