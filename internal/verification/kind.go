package verification

import "github.com/hitoshi/datapulse-console/internal/identity"

// ErrorKind は検証失敗の種別。
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindInvalidLink はコードまたはメールアドレスがリンクにない場合。ログイン画面へ自動遷移する。
	KindInvalidLink
	// KindConfiguration はAPIキーが設定されていない場合。運用者の対応が必要。
	KindConfiguration
	KindExpiredOrUsedCode
	KindInvalidEmail
	KindDisabledAccount
	KindEmailNotFound
	KindInvalidToken
	// KindNoToken はプロバイダーが成功を返したがトークンがない場合。
	KindNoToken
	// KindSessionStorage はコードの交換後にセッションを保存できなかった場合。
	// コードは使用済みのため、同じリンクでは再試行できない。
	KindSessionStorage
	// KindUnknown は未知のプロバイダーコードやネットワークエラー。
	KindUnknown
)

var kindNames = map[ErrorKind]string{
	KindNone:              "none",
	KindInvalidLink:       "invalid_link",
	KindConfiguration:     "configuration",
	KindExpiredOrUsedCode: "expired_or_used_code",
	KindInvalidEmail:      "invalid_email",
	KindDisabledAccount:   "disabled_account",
	KindEmailNotFound:     "email_not_found",
	KindInvalidToken:      "invalid_token",
	KindNoToken:           "no_token",
	KindSessionStorage:    "session_storage",
	KindUnknown:           "unknown",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindFromProviderCode はプロバイダーのエラーコードをErrorKindに変換する。
// 未知のコードはKindUnknown。
func KindFromProviderCode(code string) ErrorKind {
	switch code {
	case identity.CodeInvalidOOBCode, identity.CodeExpiredOOBCode:
		return KindExpiredOrUsedCode
	case identity.CodeInvalidEmail:
		return KindInvalidEmail
	case identity.CodeUserDisabled:
		return KindDisabledAccount
	case identity.CodeEmailNotFound:
		return KindEmailNotFound
	case identity.CodeInvalidIDToken:
		return KindInvalidToken
	default:
		return KindUnknown
	}
}

// AutoRedirect はこの種別でログイン画面へ自動遷移するかを返す。
// 自動遷移するのはリンク不正の場合のみ。
func (k ErrorKind) AutoRedirect() bool {
	return k == KindInvalidLink
}

// Retryable は同じリンクで再試行を提示できるかを返す。
// 交換前のネットワークエラーなど、コードがまだ消費されていない可能性がある場合のみ。
func (k ErrorKind) Retryable() bool {
	return k == KindUnknown
}

const defaultFailureMessage = "Verification failed. Please try again."

// UserMessage は利用者向けのメッセージを返す。
// detailは失敗理由で、InvalidLinkとUnknownの場合のみ使う。
func (k ErrorKind) UserMessage(detail string) string {
	switch k {
	case KindInvalidLink:
		if detail == "" {
			return "Invalid verification link. Please try logging in again."
		}
		return "Invalid verification link: " + detail + "."
	case KindConfiguration:
		return "Sign-in is not configured (missing API key). Please contact the administrator."
	case KindExpiredOrUsedCode:
		return "This link has expired or has already been used. Please request a new magic link."
	case KindInvalidEmail:
		return "Invalid email address. Please try logging in again."
	case KindDisabledAccount:
		return "This account has been disabled. Please contact support."
	case KindEmailNotFound:
		return "Email not found. Please sign up first."
	case KindInvalidToken:
		return "Invalid token. Please try logging in again."
	case KindNoToken:
		return "No token was received from the identity provider. Please try again."
	case KindSessionStorage:
		return "Your email was verified, but the session could not be saved. Please request a new magic link."
	default:
		if detail != "" {
			return detail
		}
		return defaultFailureMessage
	}
}
