// Package billing は課金プロセッサのイベントを購読状態に同期する。
// イベントはat-least-once・順不同で配送される前提で、全ての遷移を冪等に適用する。
// 外部シーケンス番号には依存せず、イベント種別ごとに所有フィールドのみを更新し、
// サブスクリプション参照単位の単調なイベント時刻ガードで古いイベントの巻き戻しを防ぐ。
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/hitoshi/unipress/internal/model"
	"github.com/hitoshi/unipress/internal/repository"
)

// Metrics は課金イベント処理のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Metrics interface {
	RecordBillingEvent(eventType, result string)
}

// Service は課金イベントの検証・適用を行う。
type Service struct {
	entitlements  repository.EntitlementRepository
	webhookSecret string
	metrics       Metrics // nil可
}

// NewService はServiceを生成する。
func NewService(entitlements repository.EntitlementRepository, webhookSecret string, metrics Metrics) *Service {
	return &Service{
		entitlements:  entitlements,
		webhookSecret: webhookSecret,
		metrics:       metrics,
	}
}

// HandleWebhook は署名検証済みの課金イベントを状態遷移に適用する。
// 署名検証失敗はAPIError（SIGNATURE_INVALID）を返し、一切の変更を行わない。
// 未対応のイベント種別と対象行が存在しない更新はno-opとして正常終了する
// （送信側の無限リトライを防ぐため、no-opでもACKを返す必要がある）。
// ストアエラーはそのまま返す。送信側のリトライで再適用されても冪等性により無害。
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	// 署名検証はパースより前。これはベストエフォートではなく絶対の境界。
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		slog.Warn("webhook signature verification failed",
			slog.String("error", err.Error()),
		)
		return model.NewSignatureInvalidError()
	}

	eventAt := time.Unix(event.Created, 0)

	var result string
	switch event.Type {
	case "checkout.session.completed":
		result, err = s.applyCheckoutCompleted(ctx, event.Data.Raw, eventAt)
	case "customer.subscription.updated":
		result, err = s.applySubscriptionUpdated(ctx, event.Data.Raw, eventAt)
	case "customer.subscription.deleted":
		result, err = s.applySubscriptionDeleted(ctx, event.Data.Raw, eventAt)
	case "invoice.payment_succeeded":
		result, err = s.applyInvoicePaymentSucceeded(ctx, event.Data.Raw, eventAt)
	case "invoice.payment_failed":
		result, err = s.applyInvoicePaymentFailed(ctx, event.Data.Raw, eventAt)
	default:
		slog.Info("unhandled billing event",
			slog.String("event_type", string(event.Type)),
		)
		result = "unhandled"
	}

	if s.metrics != nil {
		if err != nil {
			result = "error"
		}
		s.metrics.RecordBillingEvent(string(event.Type), result)
	}
	return err
}

// applyCheckoutCompleted はチェックアウト完了を適用する。
// EntitlementRecordをアカウントIDキーでUPSERTし、不変の台帳行を追加する。
func (s *Service) applyCheckoutCompleted(ctx context.Context, raw json.RawMessage, eventAt time.Time) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return "", fmt.Errorf("failed to parse checkout session: %w", err)
	}

	accountID := session.ClientReferenceID
	if accountID == "" {
		accountID = session.Metadata["account_id"]
	}
	if accountID == "" || session.Subscription == nil || session.Customer == nil {
		// 正規に署名されているが必須メタデータを欠くイベント。
		// エラーを返すと送信側が無限リトライするため、記録してACKする。
		slog.Error("checkout event missing required references",
			slog.String("session_id", session.ID),
		)
		return "malformed", nil
	}

	rec, err := s.entitlements.FindByAccountID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to find entitlement: %w", err)
	}
	if stale(rec, eventAt) {
		s.logStale("checkout.session.completed", session.Subscription.ID, rec.LastEventAt, eventAt)
		return "skipped_stale", nil
	}

	id := uuid.New().String()
	if rec != nil {
		id = rec.ID
	}
	upsert := &model.EntitlementRecord{
		ID:                   id,
		AccountID:            accountID,
		StripeCustomerID:     session.Customer.ID,
		StripeSubscriptionID: session.Subscription.ID,
		Status:               model.EntitlementActive,
		PeriodStart:          eventAt,
		LastEventAt:          eventAt,
	}
	if err := s.entitlements.UpsertCheckout(ctx, upsert); err != nil {
		return "", err
	}

	// 監査・照合用の台帳行。可変なEntitlementRecordとは独立に残る。
	entry := &model.LedgerEntry{
		ID:                   uuid.New().String(),
		AccountID:            accountID,
		StripeSubscriptionID: session.Subscription.ID,
		AmountTotal:          session.AmountTotal,
		Currency:             string(session.Currency),
		PeriodStart:          eventAt,
		EventType:            "checkout.session.completed",
	}
	if err := s.entitlements.AppendLedger(ctx, entry); err != nil {
		return "", err
	}

	slog.Info("entitlement activated",
		slog.String("account_id", accountID),
		slog.String("subscription_id", session.Subscription.ID),
	)
	return "applied", nil
}

// applySubscriptionUpdated はstatusと期間の更新を適用する。
// アカウントIDはイベントに含まれないため、サブスクリプション参照で行を特定する。
// 行が存在しない場合（ローカルの認知より前、または後のイベント）はno-op。
func (s *Service) applySubscriptionUpdated(ctx context.Context, raw json.RawMessage, eventAt time.Time) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", fmt.Errorf("failed to parse subscription: %w", err)
	}

	rec, err := s.entitlements.FindBySubscriptionID(ctx, sub.ID)
	if err != nil {
		return "", fmt.Errorf("failed to find entitlement: %w", err)
	}
	if rec == nil {
		slog.Info("subscription update for unknown subscription",
			slog.String("subscription_id", sub.ID),
		)
		return "noop_unknown", nil
	}
	if stale(rec, eventAt) {
		s.logStale("customer.subscription.updated", sub.ID, rec.LastEventAt, eventAt)
		return "skipped_stale", nil
	}

	status := mapSubscriptionStatus(sub.Status)
	periodStart := time.Unix(sub.CurrentPeriodStart, 0)
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
	if _, err := s.entitlements.UpdateStatusAndPeriod(ctx, sub.ID, status, periodStart, periodEnd, eventAt); err != nil {
		return "", err
	}

	slog.Info("entitlement status updated",
		slog.String("subscription_id", sub.ID),
		slog.String("status", string(status)),
	)
	return "applied", nil
}

// applySubscriptionDeleted は解約を適用する。
// statusをcanceledにし、period_endを現在時刻にする。行は削除しない（履歴保持）。
func (s *Service) applySubscriptionDeleted(ctx context.Context, raw json.RawMessage, eventAt time.Time) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", fmt.Errorf("failed to parse subscription: %w", err)
	}

	rec, err := s.entitlements.FindBySubscriptionID(ctx, sub.ID)
	if err != nil {
		return "", fmt.Errorf("failed to find entitlement: %w", err)
	}
	if rec == nil {
		return "noop_unknown", nil
	}
	if stale(rec, eventAt) {
		s.logStale("customer.subscription.deleted", sub.ID, rec.LastEventAt, eventAt)
		return "skipped_stale", nil
	}

	if _, err := s.entitlements.MarkCanceled(ctx, sub.ID, time.Now(), eventAt); err != nil {
		return "", err
	}

	slog.Info("entitlement canceled",
		slog.String("subscription_id", sub.ID),
	)
	return "applied", nil
}

// applyInvoicePaymentSucceeded は支払い成功を適用する。
// last_payment_atのみを更新する。支払い成功はそれ自体ではactiveを意味しない
// （statusは別途subscription.updatedが運ぶ）。
func (s *Service) applyInvoicePaymentSucceeded(ctx context.Context, raw json.RawMessage, eventAt time.Time) (string, error) {
	subID, err := invoiceSubscriptionID(raw)
	if err != nil {
		return "", err
	}
	if subID == "" {
		return "malformed", nil
	}

	rec, err := s.entitlements.FindBySubscriptionID(ctx, subID)
	if err != nil {
		return "", fmt.Errorf("failed to find entitlement: %w", err)
	}
	if rec == nil {
		return "noop_unknown", nil
	}
	if stale(rec, eventAt) {
		s.logStale("invoice.payment_succeeded", subID, rec.LastEventAt, eventAt)
		return "skipped_stale", nil
	}

	if _, err := s.entitlements.UpdateLastPayment(ctx, subID, time.Now(), eventAt); err != nil {
		return "", err
	}
	return "applied", nil
}

// applyInvoicePaymentFailed は支払い失敗を適用する。statusをpast_dueにする。
func (s *Service) applyInvoicePaymentFailed(ctx context.Context, raw json.RawMessage, eventAt time.Time) (string, error) {
	subID, err := invoiceSubscriptionID(raw)
	if err != nil {
		return "", err
	}
	if subID == "" {
		return "malformed", nil
	}

	rec, err := s.entitlements.FindBySubscriptionID(ctx, subID)
	if err != nil {
		return "", fmt.Errorf("failed to find entitlement: %w", err)
	}
	if rec == nil {
		return "noop_unknown", nil
	}
	if stale(rec, eventAt) {
		s.logStale("invoice.payment_failed", subID, rec.LastEventAt, eventAt)
		return "skipped_stale", nil
	}

	if _, err := s.entitlements.UpdateStatus(ctx, subID, model.EntitlementPastDue, eventAt); err != nil {
		return "", err
	}

	slog.Warn("entitlement past due",
		slog.String("subscription_id", subID),
	)
	return "applied", nil
}

// logStale はイベント時刻ガードによるスキップを記録する。
func (s *Service) logStale(eventType, subscriptionID string, lastEventAt, eventAt time.Time) {
	slog.Info("skipping stale billing event",
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
		slog.Time("last_event_at", lastEventAt),
		slog.Time("event_at", eventAt),
	)
}

// stale は適用済みイベントより古いイベントかを返す。
// 同時刻のイベントは適用する（再配送の再適用は冪等で無害）。
func stale(rec *model.EntitlementRecord, eventAt time.Time) bool {
	return rec != nil && !rec.LastEventAt.IsZero() && eventAt.Before(rec.LastEventAt)
}

// invoiceSubscriptionID はインボイスイベントからサブスクリプションIDを取り出す。
func invoiceSubscriptionID(raw json.RawMessage) (string, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return "", fmt.Errorf("failed to parse invoice: %w", err)
	}
	if invoice.Subscription == nil {
		return "", nil
	}
	return invoice.Subscription.ID, nil
}

// mapSubscriptionStatus はStripeのサブスクリプション状態をローカルの状態にマップする。
func mapSubscriptionStatus(status stripe.SubscriptionStatus) model.EntitlementStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.EntitlementActive
	case stripe.SubscriptionStatusTrialing:
		return model.EntitlementTrialing
	case stripe.SubscriptionStatusPastDue:
		return model.EntitlementPastDue
	case stripe.SubscriptionStatusCanceled:
		return model.EntitlementCanceled
	default:
		return model.EntitlementInactive
	}
}
