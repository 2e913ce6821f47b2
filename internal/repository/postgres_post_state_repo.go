package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// PostgresPostStateRepo はPostgreSQLを使用した記事状態リポジトリ。
type PostgresPostStateRepo struct {
	db *sql.DB
}

// NewPostgresPostStateRepo はPostgresPostStateRepoを生成する。
func NewPostgresPostStateRepo(db *sql.DB) *PostgresPostStateRepo {
	return &PostgresPostStateRepo{db: db}
}

// TryAcquire はスラグの生成ロックをアトミックに取得する。
// 存在チェックとセットを1文で行い、二重トリガーによるドラフト重複を防ぐ。
// すでにgeneratingまたはapprovedのレコードがある場合はfalseを返す。
func (r *PostgresPostStateRepo) TryAcquire(ctx context.Context, slug, runID string) (bool, error) {
	var acquired string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO post_states (slug, status, run_id, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (slug) DO UPDATE
		    SET status = EXCLUDED.status,
		        run_id = EXCLUDED.run_id,
		        error_message = '',
		        updated_at = now()
		  WHERE post_states.status NOT IN ($2, $4)
		 RETURNING slug`,
		slug, model.PostStatusGenerating, runID, model.PostStatusApproved,
	).Scan(&acquired)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("生成ロックの取得に失敗しました: %w", err)
	}
	return true, nil
}

// Release は実行終了時に状態を確定しロックを解放する。
func (r *PostgresPostStateRepo) Release(ctx context.Context, slug string, status model.PostStatus, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE post_states SET status = $2, error_message = $3, updated_at = now() WHERE slug = $1`,
		slug, status, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("生成ロックの解放に失敗しました: %w", err)
	}
	return nil
}

// UpdateAudit は監査結果のサマリを状態レコードに反映する。
func (r *PostgresPostStateRepo) UpdateAudit(ctx context.Context, slug string, provenance model.Provenance, audit *model.AuditReport) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE post_states SET
		    provenance = $2, grade = $3, publish_ready = $4,
		    critical_count = $5, warning_count = $6, updated_at = now()
		 WHERE slug = $1`,
		slug, provenance, audit.OverallGrade, audit.PublishReady,
		len(audit.CriticalIssues), len(audit.Warnings),
	)
	if err != nil {
		return fmt.Errorf("監査サマリの更新に失敗しました: %w", err)
	}
	return nil
}

// SetStatus は状態のみを更新する。レコードが存在しない場合は作成する。
func (r *PostgresPostStateRepo) SetStatus(ctx context.Context, slug string, status model.PostStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_states (slug, status, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (slug) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`,
		slug, status,
	)
	if err != nil {
		return fmt.Errorf("記事状態の更新に失敗しました: %w", err)
	}
	return nil
}

// Find は状態レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresPostStateRepo) Find(ctx context.Context, slug string) (*model.PostState, error) {
	state := &model.PostState{}
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT slug, status, provenance, grade, publish_ready,
		        critical_count, warning_count, error_message, run_id,
		        created_at, updated_at
		 FROM post_states WHERE slug = $1`,
		slug,
	).Scan(
		&state.Slug, &state.Status, &state.Provenance, &state.Grade, &state.PublishReady,
		&state.CriticalCount, &state.WarningCount, &state.ErrorMessage, &state.RunID,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事状態の取得に失敗しました: %w", err)
	}

	state.CreatedAt = createdAt
	state.UpdatedAt = updatedAt
	return state, nil
}

// Delete は状態レコードを削除する。
func (r *PostgresPostStateRepo) Delete(ctx context.Context, slug string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM post_states WHERE slug = $1`,
		slug,
	)
	if err != nil {
		return fmt.Errorf("記事状態の削除に失敗しました: %w", err)
	}
	return nil
}
