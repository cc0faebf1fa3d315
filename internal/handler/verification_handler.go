// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unipress/internal/middleware"
	"github.com/hitoshi/unipress/internal/model"
)

// VerificationServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type VerificationServiceInterface interface {
	Issue(ctx context.Context, accountID, universityEmail string) (string, error)
	Confirm(ctx context.Context, token string) (string, error)
}

// VerificationHandler はライター認証関連のHTTPハンドラー。
type VerificationHandler struct {
	service VerificationServiceInterface
}

// NewVerificationHandler はVerificationHandlerを生成する。
func NewVerificationHandler(service VerificationServiceInterface) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// sendRequest は認証メール送信リクエストのボディ。
type sendRequest struct {
	UniversityEmail string `json:"universityEmail"`
}

// Send は認証トークンを発行し、認証リンクをメール送信する。
// POST /api/verification/send
func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UniversityEmail == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("universityEmail"))
		return
	}

	institution, err := h.service.Issue(r.Context(), accountID, req.UniversityEmail)
	if err != nil {
		writeVerificationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"institution": institution,
	})
}

// Confirm はメールのリンクから開かれ、トークンを使用して認証を完了する。
// GET /api/verification/confirm?token=xxx
// POST /api/verification/confirm {"token": "xxx"}
func (h *VerificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" && r.Method == http.MethodPost {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("token"))
		return
	}

	institution, err := h.service.Confirm(r.Context(), token)
	if err != nil {
		writeVerificationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":     "大学メールアドレスの認証が完了しました。",
		"institution": institution,
	})
}

// writeVerificationError はAPIErrorを対応するHTTPステータスで書き込む。
// 内部状態はレスポンスに含めない。
func writeVerificationError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}
	slog.Error("verification request failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// statusForAPIError はエラーコードからHTTPステータスを決定する。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTokenInvalid, model.ErrCodeWriterNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
