// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, setup, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidCredential = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeRoleMismatch      = "ROLE_MISMATCH"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodeSetupNotFound     = "SETUP_TOKEN_NOT_FOUND"
	ErrCodeSetupExpired      = "SETUP_TOKEN_EXPIRED"
	ErrCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不明・パスワード不一致・保存済みダイジェスト破損のいずれも
// 同一のメッセージを返し、アカウントの存在を推測させない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// トークン未提示・署名不正・期限切れを区別せず同一のレスポンスを返す。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "講師または管理者のアカウントでログインしてください。",
	}
}

// NewRoleMismatchError はログイン時に指定されたロールが保存済みロールと
// 一致しない場合のエラーを生成する。
func NewRoleMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeRoleMismatch,
		Message:  "指定されたロールではログインできません。",
		Category: "auth",
		Action:   "アカウントに割り当てられたロールを確認してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewSetupTokenNotFoundError はセットアップトークン未検出エラーを生成する。
func NewSetupTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSetupNotFound,
		Message:  "有効化リンクが見つかりません。",
		Category: "setup",
		Action:   "リンクが既に使用済みでないか確認し、管理者に再送を依頼してください。",
	}
}

// NewSetupTokenExpiredError はセットアップトークン期限切れエラーを生成する。
// リンクは利用者固有のワンタイムURLであり列挙攻撃の対象にならないため、
// 未検出とは区別したメッセージを返す。
func NewSetupTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSetupExpired,
		Message:  "有効化リンクの有効期限が切れています。",
		Category: "setup",
		Action:   "管理者に有効化リンクの再送を依頼してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたアカウントが見つかりません: %s", accountID),
		Category: "auth",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimit,
		Message:  "リクエスト数が制限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
