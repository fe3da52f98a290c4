// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, item, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	ErrCodeProfileFetchFailed  = "PROFILE_FETCH_FAILED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeNotOwner            = "NOT_OWNER"
	ErrCodeItemNotFound        = "ITEM_NOT_FOUND"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidImage        = "INVALID_IMAGE"
)

// NewUnknownProviderError は未設定プロバイダーへのログイン要求エラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("サポートされていない認証プロバイダーです: %s", provider),
		Category: "auth",
		Action:   "Google、Discord、Facebookのいずれかでログインしてください。",
	}
}

// NewInvalidStateError はOAuth stateの不一致・欠落エラーを生成する。
// CSRFまたはリプレイの疑いがあるコールバックに対して返す。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "認証リクエストの検証に失敗しました。",
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewTokenExchangeFailedError は認可コードのトークン交換失敗エラーを生成する。
func NewTokenExchangeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchangeFailed,
		Message:  "認証プロバイダーとの通信に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewProfileFetchFailedError はプロフィール取得失敗エラーを生成する。
func NewProfileFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileFetchFailed,
		Message:  "ユーザー情報の取得に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// セッションの欠落・期限切れ・改ざんはすべてこのエラーに正規化する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotOwnerError は所有者以外による変更操作の拒否エラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  "自分が登録したアイテムのみ編集・削除できます。",
		Category: "auth",
		Action:   "アイテムの所有者に連絡してください。",
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "item",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidImageError は許可されていない画像ファイルのエラーを生成する。
func NewInvalidImageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "アップロードできない画像形式です。",
		Category: "validation",
		Action:   "png、jpg、jpeg、gif、webpのいずれかの画像を指定してください。",
	}
}
