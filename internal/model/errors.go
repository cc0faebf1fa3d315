// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeDomainNotEligible = "DOMAIN_NOT_ELIGIBLE"
	ErrCodeInvalidEmail      = "INVALID_EMAIL"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeSignatureInvalid  = "SIGNATURE_INVALID"
	ErrCodeWriterNotFound    = "WRITER_NOT_FOUND"
)

// NewTokenInvalidError は無効トークンエラーを生成する。
// 存在しないトークンと使用済みトークンは区別せず、同一のエラーを返す。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "認証リンクが無効です。",
		Category: "auth",
		Action:   "認証メールを再送信して、最新のリンクを使用してください。",
	}
}

// NewTokenExpiredError は期限切れトークンエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "認証リンクの有効期限（24時間）が切れています。",
		Category: "auth",
		Action:   "認証メールを再送信してください。",
	}
}

// NewDomainNotEligibleError は大学レジストリに存在しないドメインのエラーを生成する。
func NewDomainNotEligibleError(domain string) *APIError {
	return &APIError{
		Code:     ErrCodeDomainNotEligible,
		Message:  fmt.Sprintf("対応していない大学ドメインです: %s", domain),
		Category: "validation",
		Action:   "在籍する大学の発行するメールアドレスを入力してください。",
	}
}

// NewInvalidEmailError は形式不正なメールアドレスのエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewMissingFieldError は必須フィールド欠落のエラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須フィールドがありません: %s", field),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewSignatureInvalidError はWebhook署名検証失敗のエラーを生成する。
func NewSignatureInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSignatureInvalid,
		Message:  "Webhookの署名検証に失敗しました。",
		Category: "auth",
		Action:   "Webhookエンドポイントの共有シークレット設定を確認してください。",
	}
}

// NewWriterNotFoundError はライタープロフィール未登録のエラーを生成する。
func NewWriterNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeWriterNotFound,
		Message:  "ライタープロフィールが見つかりません。",
		Category: "auth",
		Action:   "ライター登録を完了してから再度お試しください。",
	}
}
