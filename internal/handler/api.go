package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/satoshiledger/ArticleAutomation/internal/middleware"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// triggerTimeout は非同期で起動するパイプライン実行の上限時間。
// LLMの多段パス＋パス間クールダウンを含むため長めに取る。
const triggerTimeout = 30 * time.Minute

// scanTimeout はニュースモニター実行の上限時間。
const scanTimeout = 10 * time.Minute

// PipelineTrigger はパイプライン起動のインターフェース。
type PipelineTrigger interface {
	// RunNext はカレンダー上の次の未生成記事のパイプラインを実行する。
	RunNext(ctx context.Context) error
	// RunCustom はカレンダー外のカスタム記事のパイプラインを実行する。
	RunCustom(ctx context.Context, title, keywords, clusterName, slug string) (string, error)
}

// MonitorTrigger はニュースモニター起動のインターフェース。
type MonitorTrigger interface {
	// Scan はフィードを巡回しアラートを検出する。
	Scan(ctx context.Context) error
}

// ActionHandler はダッシュボードのフォーム操作を処理するハンドラー。
// 成功時はダッシュボードへリダイレクトし、長時間かかる生成処理は
// バックグラウンドで起動して即座に応答を返す。
type ActionHandler struct {
	service  ReviewServiceInterface
	pipeline PipelineTrigger
	monitor  MonitorTrigger
	logger   *slog.Logger
}

// NewActionHandler はActionHandlerを生成する。
func NewActionHandler(service ReviewServiceInterface, pipeline PipelineTrigger, monitor MonitorTrigger, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{
		service:  service,
		pipeline: pipeline,
		monitor:  monitor,
		logger:   logger,
	}
}

// Save はレビュー画面で編集されたドラフトHTMLを保存する。
// POST /save/{slug}
func (h *ActionHandler) Save(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidFormError())
		return
	}

	if err := h.service.SaveEdits(slug, r.PostFormValue("html")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	http.Redirect(w, r, "/review/"+slug, http.StatusSeeOther)
}

// Approve はドラフトを承認し公開先へプッシュする。
// 編集内容が送信されていれば承認前に保存する。
// POST /approve/{slug}
func (h *ActionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidFormError())
		return
	}

	if err := h.service.Approve(r.Context(), slug, r.PostFormValue("html")); err != nil {
		h.logger.Error("記事の承認に失敗しました",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
		middleware.WriteAPIError(w, err)
		return
	}

	h.logger.Info("記事を承認しました", slog.String("slug", slug))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reject はドラフトを破棄する。
// POST /reject/{slug}
func (h *ActionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if err := h.service.Reject(r.Context(), slug); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.logger.Info("記事を却下しました", slog.String("slug", slug))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reset は記事スロットの全生成物と状態レコードを削除し、再生成可能にする。
// POST /reset/{slug}
func (h *ActionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	cleared, err := h.service.ResetSlot(r.Context(), slug)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	h.logger.Info("記事スロットをリセットしました",
		slog.String("slug", slug),
		slog.Int("cleared_count", len(cleared)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ResetAll はレビュー待ちの全ドラフトをまとめてリセットする。
// POST /reset-all
func (h *ActionHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ResetAll(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			h.logger.Error("スロットのリセットに失敗しました",
				slog.String("slug", result.Slug),
				slog.String("error", result.Err.Error()))
		}
	}
	h.logger.Info("全スロットのリセットが完了しました",
		slog.Int("total", len(results)),
		slog.Int("failed", failed))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Repush は承認済み記事をすべて公開先へ再プッシュする。
// POST /repush
func (h *ActionHandler) Repush(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Repush(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			h.logger.Error("記事の再プッシュに失敗しました",
				slog.String("slug", result.Slug),
				slog.String("error", result.Err.Error()))
		}
	}
	h.logger.Info("再プッシュが完了しました",
		slog.Int("total", len(results)),
		slog.Int("failed", failed))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TriggerBlog はカレンダー上の次の未生成記事のパイプラインをバックグラウンドで起動する。
// POST /trigger/blog
func (h *ActionHandler) TriggerBlog(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		if err := h.pipeline.RunNext(ctx); err != nil {
			h.logger.Error("手動トリガーのパイプラインが失敗しました", slog.String("error", err.Error()))
		}
	}()

	h.logger.Info("ブログ生成パイプラインを起動しました")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TriggerCustom はフォーム入力からカスタム記事のパイプラインをバックグラウンドで起動する。
// POST /trigger/custom
func (h *ActionHandler) TriggerCustom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidFormError())
		return
	}

	title := r.PostFormValue("title")
	keywords := r.PostFormValue("keywords")
	cluster := r.PostFormValue("cluster")
	slug := r.PostFormValue("slug")

	if title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "タイトルが指定されていません。",
			Category: "validation",
			Action:   "記事タイトルを入力してください。",
		})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		resolved, err := h.pipeline.RunCustom(ctx, title, keywords, cluster, slug)
		if err != nil {
			h.logger.Error("カスタム記事のパイプラインが失敗しました",
				slog.String("title", title),
				slog.String("error", err.Error()))
			return
		}
		h.logger.Info("カスタム記事の生成が完了しました", slog.String("slug", resolved))
	}()

	h.logger.Info("カスタム記事パイプラインを起動しました", slog.String("title", title))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TriggerNews はニュースモニターのスキャンをバックグラウンドで起動する。
// POST /trigger/news
func (h *ActionHandler) TriggerNews(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		if err := h.monitor.Scan(ctx); err != nil {
			h.logger.Error("ニュースモニターのスキャンに失敗しました", slog.String("error", err.Error()))
		}
	}()

	h.logger.Info("ニュースモニターのスキャンを起動しました")
	http.Redirect(w, r, "/alerts", http.StatusSeeOther)
}

// GenerateAlert はアラートから記事生成パイプラインをバックグラウンドで起動する。
// POST /generate-alert/{alertID}
func (h *ActionHandler) GenerateAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		slug, err := h.service.GenerateFromAlert(ctx, alertID)
		if err != nil {
			h.logger.Error("アラートからの記事生成に失敗しました",
				slog.String("alert_id", alertID),
				slog.String("error", err.Error()))
			return
		}
		h.logger.Info("アラートからの記事生成が完了しました",
			slog.String("alert_id", alertID),
			slog.String("slug", slug))
	}()

	h.logger.Info("アラートからの記事生成を起動しました", slog.String("alert_id", alertID))
	http.Redirect(w, r, "/alerts", http.StatusSeeOther)
}

// invalidFormError はフォーム解析失敗の統一エラーを返す。
func invalidFormError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "フォームの解析に失敗しました。",
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}
