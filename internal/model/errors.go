package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, application, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrCodeStorage             = "STORAGE_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeCSRFInvalid         = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded   = "rate_limit_exceeded"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewApplicationNotFoundError は応募記録の未検出エラーを生成する。
// 存在しない場合と他ユーザーの記録である場合を区別しない。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("指定された応募記録が見つかりません: %s", applicationID),
		Category: "application",
		Action:   "応募記録のIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストボディの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "JSONオブジェクト形式でリクエストしてください。",
	}
}

// NewUnknownProviderError は未対応プロバイダーエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未対応のログインプロバイダーです: %s", provider),
		Category: "auth",
		Action:   "Google または Microsoft でログインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStorageAPIError はストア障害時のレスポンス用エラーを生成する。
func NewStorageAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// StorageError はレコードストアの障害（接続断、スロットリング等）を表す。
// NotFoundとは区別して扱い、5xxとして応答する。
type StorageError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError はStorageErrorを生成する。
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// ErrInvalidSession はセッショントークンまたはセッションが無効であることを示す。
var ErrInvalidSession = errors.New("invalid session")

// ErrNoUsableIdentifier はIdPプロフィールから安定IDを導出できなかったことを示す。
var ErrNoUsableIdentifier = errors.New("no usable identifier in profile")

// IdentityError はIdPプロフィールからユーザーを解決できなかったことを表す。
// 認証失敗としてクライアントに通知される。
type IdentityError struct {
	Provider Provider
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity resolution failed for %s: %v", e.Provider, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *IdentityError) Unwrap() error {
	return e.Err
}
