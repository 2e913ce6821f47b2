package handler

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/satoshiledger/ArticleAutomation/internal/middleware"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/review"
)

//go:embed templates/*.html
var templateFS embed.FS

// ReviewServiceInterface はダッシュボードハンドラーが必要とするレビュー操作のインターフェース。
type ReviewServiceInterface interface {
	// ListPending はレビュー待ちドラフトの一覧を返す。
	ListPending(ctx context.Context) ([]review.PendingDraft, error)
	// ListApproved は承認済み記事のスラグ一覧を返す。
	ListApproved() ([]string, error)
	// GetArtifact は1記事分の生成物一式を返す。
	GetArtifact(slug string) (*review.Artifact, error)
	// SaveEdits はドラフトの編集内容を保存する。
	SaveEdits(slug, html string) error
	// Approve はドラフトを承認し公開先へプッシュする。
	Approve(ctx context.Context, slug, editedHTML string) error
	// Reject はドラフトを破棄する。
	Reject(ctx context.Context, slug string) error
	// ResetSlot は記事スロットの全生成物と状態レコードを削除する。
	ResetSlot(ctx context.Context, slug string) ([]string, error)
	// ResetAll はレビュー待ちの全ドラフトをまとめてリセットする。
	ResetAll(ctx context.Context) ([]review.ResetAllResult, error)
	// Repush は承認済み記事を公開先へ再プッシュする。
	Repush(ctx context.Context) ([]review.RepushResult, error)
	// ListAlerts は検出済みニュースアラートの一覧を返す。
	ListAlerts(ctx context.Context) ([]*model.Alert, error)
	// GenerateFromAlert はアラートから記事生成を開始する。
	GenerateFromAlert(ctx context.Context, alertID string) (string, error)
}

// DashboardHandler はレビューダッシュボードのページ表示ハンドラー。
type DashboardHandler struct {
	service   ReviewServiceInterface
	calendar  *model.Calendar
	templates *template.Template
	logger    *slog.Logger
}

// NewDashboardHandler はDashboardHandlerを生成する。
// 埋め込みテンプレートの解析に失敗した場合はpanicする（ビルド不整合のため起動時に検出する）。
func NewDashboardHandler(service ReviewServiceInterface, calendar *model.Calendar, logger *slog.Logger) *DashboardHandler {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	return &DashboardHandler{
		service:   service,
		calendar:  calendar,
		templates: tmpl,
		logger:    logger,
	}
}

// clusterOption はカスタム記事フォームのクラスタ選択肢。
type clusterOption struct {
	Key   string
	Label string
}

// dashboardPage はダッシュボードテンプレートのデータ。
type dashboardPage struct {
	Drafts   []review.PendingDraft
	Approved []string
	Clusters []clusterOption
}

// Dashboard はレビュー待ちドラフト一覧ページを表示する。
// GET /
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("ドラフト一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	approved, err := h.service.ListApproved()
	if err != nil {
		h.logger.Error("承認済み一覧の取得に失敗しました", slog.String("error", err.Error()))
		approved = nil
	}

	h.render(w, "dashboard.html", dashboardPage{
		Drafts:   drafts,
		Approved: approved,
		Clusters: h.clusterOptions(),
	})
}

// reviewPage はレビューテンプレートのデータ。
type reviewPage struct {
	Slug  string
	Title string
	HTML  string
	Audit *model.AuditReport
}

// ReviewPage は記事レビューページを表示する。
// GET /review/{slug}
func (h *DashboardHandler) ReviewPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	artifact, err := h.service.GetArtifact(slug)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.render(w, "review.html", reviewPage{
		Slug:  artifact.Slug,
		Title: artifact.Title,
		HTML:  artifact.HTML,
		Audit: artifact.Audit,
	})
}

// Preview はドラフトHTMLをそのまま返す。レビューページのiframeで表示する。
// GET /preview/{slug}
func (h *DashboardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	artifact, err := h.service.GetArtifact(slug)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(artifact.HTML))
}

// socialPage はソーシャルコンテンツテンプレートのデータ。
type socialPage struct {
	Slug   string
	Title  string
	Social *model.SocialContent
}

// SocialPage はソーシャルコンテンツ確認ページを表示する。
// GET /social/{slug}
func (h *DashboardHandler) SocialPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	artifact, err := h.service.GetArtifact(slug)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.render(w, "social.html", socialPage{
		Slug:   artifact.Slug,
		Title:  artifact.Title,
		Social: artifact.Social,
	})
}

// alertsPage はアラート一覧テンプレートのデータ。
type alertsPage struct {
	Alerts []*model.Alert
}

// AlertsPage はニュースアラート一覧ページを表示する。
// GET /alerts
func (h *DashboardHandler) AlertsPage(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListAlerts(r.Context())
	if err != nil {
		h.logger.Error("アラート一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.render(w, "alerts.html", alertsPage{Alerts: alerts})
}

// render はテンプレートを実行しHTMLレスポンスを書き込む。
func (h *DashboardHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("テンプレートの描画に失敗しました",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}

// clusterOptions はカレンダー定義のクラスタをキー順に並べた選択肢を返す。
func (h *DashboardHandler) clusterOptions() []clusterOption {
	keys := make([]string, 0, len(h.calendar.Clusters))
	for key := range h.calendar.Clusters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	options := make([]clusterOption, 0, len(keys))
	for _, key := range keys {
		label := h.calendar.Clusters[key].CategoryLabelEN
		if label == "" {
			label = key
		}
		options = append(options, clusterOption{Key: key, Label: label})
	}
	return options
}
