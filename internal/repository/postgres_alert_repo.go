package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したニュースアラートリポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

// CreateIfAbsent はアラートを登録する。
// alert_idは見出しの内容ハッシュのため、同一見出しの再検出は登録済み扱いになる。
func (r *PostgresAlertRepo) CreateIfAbsent(ctx context.Context, alert *model.Alert) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_id, status, headline, source, relevance, urgency,
		                     suggested_title, suggested_slug, cluster, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (alert_id) DO NOTHING`,
		alert.AlertID, model.AlertStatusPending, alert.Headline, alert.Source,
		alert.Relevance, alert.Urgency, alert.SuggestedTitle, alert.SuggestedSlug, alert.Cluster,
	)
	if err != nil {
		return false, fmt.Errorf("アラートの登録に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("アラート登録結果の確認に失敗しました: %w", err)
	}
	return n > 0, nil
}

// Find はアラートを取得する。見つからない場合はnilを返す。
func (r *PostgresAlertRepo) Find(ctx context.Context, alertID string) (*model.Alert, error) {
	alert := &model.Alert{}
	err := r.db.QueryRowContext(ctx,
		`SELECT alert_id, status, headline, source, relevance, urgency,
		        suggested_title, suggested_slug, cluster, error_message,
		        created_at, updated_at
		 FROM alerts WHERE alert_id = $1`,
		alertID,
	).Scan(
		&alert.AlertID, &alert.Status, &alert.Headline, &alert.Source,
		&alert.Relevance, &alert.Urgency, &alert.SuggestedTitle, &alert.SuggestedSlug,
		&alert.Cluster, &alert.ErrorMessage, &alert.CreatedAt, &alert.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラートの取得に失敗しました: %w", err)
	}
	return alert, nil
}

// List は全アラートを新しい順に返す。
func (r *PostgresAlertRepo) List(ctx context.Context) ([]*model.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alert_id, status, headline, source, relevance, urgency,
		        suggested_title, suggested_slug, cluster, error_message,
		        created_at, updated_at
		 FROM alerts ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("アラート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		alert := &model.Alert{}
		if err := rows.Scan(
			&alert.AlertID, &alert.Status, &alert.Headline, &alert.Source,
			&alert.Relevance, &alert.Urgency, &alert.SuggestedTitle, &alert.SuggestedSlug,
			&alert.Cluster, &alert.ErrorMessage, &alert.CreatedAt, &alert.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("アラート行の読み取りに失敗しました: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラート一覧の走査に失敗しました: %w", err)
	}
	return alerts, nil
}

// TryBeginGenerate は記事生成の開始をアトミックに記録する。
// pendingまたはerrorのアラートのみ開始できる（errorは手動リトライ扱い）。
func (r *PostgresAlertRepo) TryBeginGenerate(ctx context.Context, alertID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET status = $2, error_message = '', updated_at = now()
		 WHERE alert_id = $1 AND status IN ($3, $4)`,
		alertID, model.AlertStatusGenerating, model.AlertStatusPending, model.AlertStatusError,
	)
	if err != nil {
		return false, fmt.Errorf("アラート生成開始の記録に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("アラート更新結果の確認に失敗しました: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus はアラートの状態を更新する。
func (r *PostgresAlertRepo) UpdateStatus(ctx context.Context, alertID string, status model.AlertStatus, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET status = $2, error_message = $3, updated_at = now() WHERE alert_id = $1`,
		alertID, status, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("アラート状態の更新に失敗しました: %w", err)
	}
	return nil
}
