package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

type mockBillingService struct {
	handleWebhookFn func(ctx context.Context, payload []byte, signatureHeader string) error
}

func (m *mockBillingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if m.handleWebhookFn != nil {
		return m.handleWebhookFn(ctx, payload, signatureHeader)
	}
	return nil
}

// 正常系: ペイロードと署名ヘッダーがサービスに渡り、ACKが返ることを検証
func TestBillingHandler_Webhook_Success(t *testing.T) {
	var gotPayload []byte
	var gotSignature string
	svc := &mockBillingService{
		handleWebhookFn: func(ctx context.Context, payload []byte, signatureHeader string) error {
			gotPayload = payload
			gotSignature = signatureHeader
			return nil
		},
	}
	h := NewBillingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if string(gotPayload) != `{"id":"evt_1"}` {
		t.Errorf("payload = %q", gotPayload)
	}
	if gotSignature != "t=1,v1=abc" {
		t.Errorf("signature = %q, want t=1,v1=abc", gotSignature)
	}

	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp["received"] {
		t.Error("response should ack with received=true")
	}
}

// 署名検証失敗で400が返ることを検証（送信側はリトライしない）
func TestBillingHandler_Webhook_InvalidSignature(t *testing.T) {
	svc := &mockBillingService{
		handleWebhookFn: func(ctx context.Context, payload []byte, signatureHeader string) error {
			return model.NewSignatureInvalidError()
		},
	}
	h := NewBillingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeSignatureInvalid {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeSignatureInvalid)
	}
}

// ストア障害で500が返ることを検証（送信側のリトライに委ねる）
func TestBillingHandler_Webhook_StoreErrorReturns500(t *testing.T) {
	svc := &mockBillingService{
		handleWebhookFn: func(ctx context.Context, payload []byte, signatureHeader string) error {
			return errors.New("pq: connection refused")
		},
	}
	h := NewBillingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Error("internal error details must not leak to the response")
	}
}

// ボディサイズ制限を超えるリクエストが拒否されることを検証
func TestBillingHandler_Webhook_OversizedBody(t *testing.T) {
	serviceCalled := false
	svc := &mockBillingService{
		handleWebhookFn: func(ctx context.Context, payload []byte, signatureHeader string) error {
			serviceCalled = true
			return nil
		},
	}
	h := NewBillingHandler(svc)

	big := strings.Repeat("x", webhookMaxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if serviceCalled {
		t.Error("oversized body must not reach the service")
	}
}
