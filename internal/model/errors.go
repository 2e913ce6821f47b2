package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, pipeline, publish, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDraftNotFound  = "DRAFT_NOT_FOUND"
	ErrCodeAlertNotFound  = "ALERT_NOT_FOUND"
	ErrCodeSlotLocked     = "SLOT_LOCKED"
	ErrCodeInvalidSlug    = "INVALID_SLUG"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnknownCluster = "UNKNOWN_CLUSTER"
	ErrCodePublishFailed  = "PUBLISH_FAILED"
	ErrCodeGenerateFailed = "GENERATE_FAILED"
)

// NewDraftNotFoundError はドラフト未検出エラーを生成する。
func NewDraftNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDraftNotFound,
		Message:  fmt.Sprintf("指定されたドラフトが見つかりません: %s", slug),
		Category: "validation",
		Action:   "ダッシュボードのドラフト一覧からスラグを確認してください。",
	}
}

// NewAlertNotFoundError はアラート未検出エラーを生成する。
func NewAlertNotFoundError(alertID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlertNotFound,
		Message:  fmt.Sprintf("指定されたアラートが見つかりません: %s", alertID),
		Category: "validation",
		Action:   "アラートはすでに生成済みか、期限切れの可能性があります。",
	}
}

// NewSlotLockedError はスラグ単位ロックの競合エラーを生成する。
func NewSlotLockedError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlotLocked,
		Message:  fmt.Sprintf("この記事のパイプラインはすでに実行中です: %s", slug),
		Category: "pipeline",
		Action:   "実行完了を待ってから再度トリガーしてください。",
	}
}

// NewInvalidSlugError は不正なスラグエラーを生成する。
func NewInvalidSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSlug,
		Message:  fmt.Sprintf("不正なスラグです: %s", slug),
		Category: "validation",
		Action:   "スラグには英小文字・数字・ハイフンのみ使用できます。",
	}
}

// NewUnknownClusterError は未定義クラスタエラーを生成する。
func NewUnknownClusterError(cluster string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCluster,
		Message:  fmt.Sprintf("カレンダーに定義されていないクラスタです: %s", cluster),
		Category: "validation",
		Action:   "カレンダー定義のclustersに含まれるキーを指定してください。",
	}
}

// NewPublishFailedError は公開失敗エラーを生成する。
// 記事は「承認済み・未公開」の状態に留まり、repushで再試行できる。
func NewPublishFailedError(slug string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodePublishFailed,
		Message:  fmt.Sprintf("リモートリポジトリへの公開に失敗しました: %s: %v", slug, cause),
		Category: "publish",
		Action:   "記事は承認済みのまま保持されています。/repushで再公開を試行してください。",
	}
}
