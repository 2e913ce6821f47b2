// Package repository はパイプライン実行状態とアラートの永続化を提供する。
//
// 生成物ファイル本体はstoreパッケージのファイルストアが持ち、
// こちらは状態遷移の記録とスラグ単位の排他ロックを担当する。
package repository

import (
	"context"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// PostStateRepository は記事の実行状態リポジトリのインターフェース。
type PostStateRepository interface {
	// TryAcquire はスラグの生成ロックをアトミックに取得する。
	// すでに実行中（generating）または承認済みの場合はfalseを返す。
	TryAcquire(ctx context.Context, slug, runID string) (bool, error)
	// Release は実行終了時に状態を確定しロックを解放する。
	Release(ctx context.Context, slug string, status model.PostStatus, errorMessage string) error
	// UpdateAudit は監査結果のサマリを状態レコードに反映する。
	UpdateAudit(ctx context.Context, slug string, provenance model.Provenance, audit *model.AuditReport) error
	// SetStatus は状態のみを更新する。レコードが存在しない場合は作成する。
	SetStatus(ctx context.Context, slug string, status model.PostStatus) error
	// Find は状態レコードを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, slug string) (*model.PostState, error)
	// Delete は状態レコードを削除し、スロットを再生成可能にする。
	Delete(ctx context.Context, slug string) error
}

// AlertRepository はニュースアラートリポジトリのインターフェース。
type AlertRepository interface {
	// CreateIfAbsent はアラートを登録する。同一IDが既存の場合は何もせずfalseを返す。
	CreateIfAbsent(ctx context.Context, alert *model.Alert) (bool, error)
	// Find はアラートを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, alertID string) (*model.Alert, error)
	// List は全アラートを新しい順に返す。
	List(ctx context.Context) ([]*model.Alert, error)
	// TryBeginGenerate は記事生成の開始をアトミックに記録する。
	// pendingまたはerrorのアラートのみ開始でき、それ以外はfalseを返す。
	TryBeginGenerate(ctx context.Context, alertID string) (bool, error)
	// UpdateStatus はアラートの状態を更新する。
	UpdateStatus(ctx context.Context, alertID string, status model.AlertStatus, errorMessage string) error
}
