package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingCode     = "MISSING_CODE"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInvalidRole     = "INVALID_ROLE"
	ErrCodeInternal        = "INTERNAL_SERVER_ERROR"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
)

// InvalidSessionMessage はセッション検証失敗時のメッセージ。
// 改ざんと未ログインを区別しないため、常に同じ文言を使う。
const InvalidSessionMessage = "Invalid or missing session"

// NewMissingCodeError は認可コード欠落エラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "code is required",
		Category: "validation",
		Action:   "Start the sign-in flow again from the login page.",
	}
}

// NewForbiddenError は権限エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "Sign in again with an account that has access.",
	}
}

// NewInvalidSessionError はセッションが無効または存在しない場合のエラーを生成する。
func NewInvalidSessionError() *APIError {
	return NewForbiddenError(InvalidSessionMessage)
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Please login",
		Category: "auth",
		Action:   "Sign in and retry.",
	}
}

// NewBadRequestError は入力不正エラーを生成する。
func NewBadRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request input.",
	}
}

// NewNotFoundError は対象が存在しない場合のエラーを生成する。
func NewNotFoundError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("not found: %s", what),
		Category: "validation",
		Action:   "Check the requested path.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(openID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("user not found: %s", openID),
		Category: "auth",
		Action:   "Check the openId.",
	}
}

// NewInvalidRoleError は未定義のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("invalid role: %s", role),
		Category: "validation",
		Action:   "Role must be one of user, sme, admin.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal server error",
		Category: "system",
		Action:   "Please wait and retry.",
	}
}

// NewTooManyRequestsError はレート制限超過エラーを生成する。
func NewTooManyRequestsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyRequests,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}
