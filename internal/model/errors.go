// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, article, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeArticleNotFound    = "ARTICLE_NOT_FOUND"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodePublishFailed      = "PUBLISH_FAILED"
	ErrCodeInvalidDraft       = "INVALID_DRAFT"
	ErrCodeInvalidPage        = "INVALID_PAGE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeCSRFFailed         = "CSRF_VALIDATION_FAILED"
)

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "article",
		Action:   "記事が削除されていないか、URLが正しいか確認してください。",
	}
}

// NewStoreUnavailableError はストアから記事を読み込めなかった場合のエラーを生成する。
// 記事未検出とは区別する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "記事の読み込みに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPublishFailedError は記事の公開失敗エラーを生成する。
func NewPublishFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePublishFailed,
		Message:  fmt.Sprintf("記事の公開に失敗しました: %s", reason),
		Category: "article",
		Action:   "入力内容を確認し、しばらく待ってから再度公開してください。",
	}
}

// NewInvalidDraftError は下書きのバリデーションエラーを生成する。
func NewInvalidDraftError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDraft,
		Message:  fmt.Sprintf("記事の入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトル・カテゴリ・画像URLを確認してください。",
	}
}

// NewInvalidPageError はページ指定が不正な場合のエラーを生成する。
func NewInvalidPageError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効な%sです: %s", param, value),
		Category: "validation",
		Action:   "pageとlimitには1以上の整数を指定してください。",
	}
}

// NewInvalidCredentialsError は管理者認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "アクセスが拒否されました。",
		Category: "auth",
		Action:   "管理者パスワードを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "管理者としてログインしてください。",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細は含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
