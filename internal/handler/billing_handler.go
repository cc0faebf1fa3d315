package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

// 課金プロセッサのWebhookボディの最大サイズ。
const webhookMaxBodyBytes = 65536

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

// BillingHandler は課金Webhook関連のHTTPハンドラー。
type BillingHandler struct {
	service BillingServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(service BillingServiceInterface) *BillingHandler {
	return &BillingHandler{service: service}
}

// Webhook は課金プロセッサからのイベント通知を受け付ける。
// POST /api/billing/webhook
//
// 署名検証失敗のみ4xxを返す。処理成功（no-op含む）は200でACKし、
// 一時的なストア障害は500を返して送信側のリトライに委ねる
// （課金イベントを黙って落とすことは重複配送より悪い）。
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookMaxBodyBytes))
	if err != nil {
		slog.Warn("failed to read webhook body", slog.String("error", err.Error()))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeSignatureInvalid {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		slog.Error("webhook processing failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
