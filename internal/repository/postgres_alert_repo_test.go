package repository

import (
	"testing"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// PostgresAlertRepoはAlertRepositoryインターフェースを満たすことを検証
func TestPostgresAlertRepo_ImplementsInterface(t *testing.T) {
	var _ AlertRepository = (*PostgresAlertRepo)(nil)
}

// NewPostgresAlertRepoが正しく初期化されることを検証
func TestNewPostgresAlertRepo_Initializes(t *testing.T) {
	repo := NewPostgresAlertRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Alertモデルのフィールドが正しく構築されることを検証
func TestPostgresAlertRepo_AlertModel_Fields(t *testing.T) {
	alert := &model.Alert{
		AlertID:        model.AlertIDFor("IRS issues new guidance"),
		Status:         model.AlertStatusPending,
		Headline:       "IRS issues new guidance",
		Source:         "IRS Newsroom",
		Urgency:        "HIGH",
		SuggestedTitle: "What the New Guidance Means",
		SuggestedSlug:  "blog-new-guidance",
		Cluster:        "3_compliance",
	}

	if alert.AlertID != model.AlertIDFor("IRS issues new guidance") {
		t.Error("alert.AlertIDは見出しの内容ハッシュから導出されるべき")
	}
	if alert.Status != model.AlertStatusPending {
		t.Errorf("alert.Status = %q, want %q", alert.Status, model.AlertStatusPending)
	}
}

// エラーメッセージフィールドがデフォルトで空であることを検証
func TestPostgresAlertRepo_AlertModel_EmptyError(t *testing.T) {
	alert := &model.Alert{
		AlertID: "abc123",
		Status:  model.AlertStatusPending,
	}

	if alert.ErrorMessage != "" {
		t.Error("error_message should be empty by default")
	}
}
