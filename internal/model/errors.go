// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, backend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail      = "INVALID_EMAIL"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeBackendFailed     = "BACKEND_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnsupportedSource = "UNSUPPORTED_SOURCE"
	ErrCodePlatformNotFound  = "PLATFORM_NOT_SUPPORTED"
	ErrCodeRateLimited       = "RATE_LIMITED"
)

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("Invalid email address: %s", email),
		Category: "validation",
		Action:   "Enter a valid email address.",
	}
}

// NewMissingFieldError は必須項目の未入力エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("%s is required.", field),
		Category: "validation",
		Action:   "Fill in all required fields.",
	}
}

// NewBackendError はバックエンドAPIの失敗をユーザー向けエラーに変換する。
func NewBackendError(message string) *APIError {
	if message == "" {
		message = "The request to the DataPulse API failed."
	}
	return &APIError{
		Code:     ErrCodeBackendFailed,
		Message:  message,
		Category: "backend",
		Action:   "Refresh the page or try again later.",
	}
}

// NewUnsupportedSourceError は未対応の注文取り込み元が指定された場合のエラーを生成する。
func NewUnsupportedSourceError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedSource,
		Message:  fmt.Sprintf("Unsupported commerce back-end: %s", source),
		Category: "validation",
		Action:   "Choose Shopify, Salla or ZID.",
	}
}

// NewPlatformNotSupportedError は連携未対応のプラットフォームが選択された場合のエラーを生成する。
func NewPlatformNotSupportedError(name string) *APIError {
	return &APIError{
		Code:     ErrCodePlatformNotFound,
		Message:  fmt.Sprintf("Platform not supported: %s", name),
		Category: "validation",
		Action:   "Choose Google, Facebook, TikTok or Snapchat.",
	}
}
