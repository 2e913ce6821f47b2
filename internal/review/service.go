// Package review は人間のレビュー操作（承認・却下・編集・再公開）を提供する。
//
// ダッシュボードはこのサービスの薄いビュー層であり、状態遷移の実体は
// すべてここに集約される。承認はコピーではなく移動であり、公開失敗時は
// 「承認済み・未公開」の状態に留まってrepushで再試行できる。
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/satoshiledger/ArticleAutomation/internal/calendar"
	"github.com/satoshiledger/ArticleAutomation/internal/metrics"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/notify"
	"github.com/satoshiledger/ArticleAutomation/internal/pipeline"
	"github.com/satoshiledger/ArticleAutomation/internal/publish"
	"github.com/satoshiledger/ArticleAutomation/internal/render"
	"github.com/satoshiledger/ArticleAutomation/internal/repository"
	"github.com/satoshiledger/ArticleAutomation/internal/store"
)

// PendingDraft はレビュー待ち一覧の1行分の情報。
type PendingDraft struct {
	Slug         string
	Title        string
	Cluster      string
	Grade        string
	PublishReady bool
	Critical     int
	Warnings     int
	Suggestions  int
	ErrorMessage string
	HasSocial    bool
}

// Artifact はレビュー画面で扱う1記事分の生成物一式。
type Artifact struct {
	Slug   string
	Title  string
	HTML   string
	Audit  *model.AuditReport
	Social *model.SocialContent
}

// Service はレビュー操作の実装。
type Service struct {
	store     *store.FileStore
	states    repository.PostStateRepository
	alerts    repository.AlertRepository
	publisher *publish.Publisher
	pipeline  *pipeline.Pipeline
	renderer  *render.Renderer
	notifier  notify.Notifier
	metrics   metrics.MetricsCollector
	calendar  *model.Calendar
	logger    *slog.Logger
}

// Deps はServiceの依存一式。
type Deps struct {
	Store     *store.FileStore
	States    repository.PostStateRepository
	Alerts    repository.AlertRepository
	Publisher *publish.Publisher
	Pipeline  *pipeline.Pipeline
	Renderer  *render.Renderer
	Notifier  notify.Notifier
	Metrics   metrics.MetricsCollector
	Calendar  *model.Calendar
	Logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(deps Deps) *Service {
	return &Service{
		store:     deps.Store,
		states:    deps.States,
		alerts:    deps.Alerts,
		publisher: deps.Publisher,
		pipeline:  deps.Pipeline,
		renderer:  deps.Renderer,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		calendar:  deps.Calendar,
		logger:    deps.Logger,
	}
}

// ListPending はレビュー待ちドラフトの一覧を返す。
func (s *Service) ListPending(ctx context.Context) ([]PendingDraft, error) {
	slugs, err := s.store.ListDrafts()
	if err != nil {
		return nil, err
	}

	drafts := make([]PendingDraft, 0, len(slugs))
	for _, slug := range slugs {
		d := PendingDraft{Slug: slug, Title: s.titleFor(slug)}

		if post := s.calendar.FindPost(slug); post != nil {
			d.Cluster = post.Cluster
		}
		if audit, err := s.store.LoadAudit(slug); err == nil && audit != nil {
			d.Grade = audit.OverallGrade
			d.PublishReady = audit.PublishReady
			d.Critical = len(audit.CriticalIssues)
			d.Warnings = len(audit.Warnings)
			d.Suggestions = len(audit.Suggestions)
		}
		if social, err := s.store.LoadSocial(slug); err == nil && social != nil {
			d.HasSocial = true
		}
		if state, err := s.states.Find(ctx, slug); err == nil && state != nil {
			d.ErrorMessage = state.ErrorMessage
		}

		drafts = append(drafts, d)
	}
	return drafts, nil
}

// GetArtifact はレビュー対象の生成物一式を返す。
func (s *Service) GetArtifact(slug string) (*Artifact, error) {
	if !calendar.ValidSlug(slug) {
		return nil, model.NewInvalidSlugError(slug)
	}

	html, ok, err := s.store.LoadDraft(slug)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewDraftNotFoundError(slug)
	}

	audit, err := s.store.LoadAudit(slug)
	if err != nil {
		return nil, err
	}
	social, err := s.store.LoadSocial(slug)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Slug:   slug,
		Title:  s.titleFor(slug),
		HTML:   html,
		Audit:  audit,
		Social: social,
	}, nil
}

// SaveEdits は人間の編集結果でドラフト本文を上書きする。
func (s *Service) SaveEdits(slug, html string) error {
	if !calendar.ValidSlug(slug) {
		return model.NewInvalidSlugError(slug)
	}
	if !s.store.DraftExists(slug) {
		return model.NewDraftNotFoundError(slug)
	}
	return s.store.SaveDraft(slug, html)
}

// Approve はドラフトを承認し、公開先へプッシュする。
//
// 承認は移動であり、本文は承認済みストアへ移り、付随生成物は削除される。
// 公開に失敗した場合は「承認済み・未公開」の状態に留まり、Repushで
// 生成・監査を再実行せずに再公開を試行できる。
func (s *Service) Approve(ctx context.Context, slug, editedHTML string) error {
	if !calendar.ValidSlug(slug) {
		return model.NewInvalidSlugError(slug)
	}

	if editedHTML != "" {
		if err := s.SaveEdits(slug, editedHTML); err != nil {
			return err
		}
	}

	content, ok, err := s.store.LoadDraft(slug)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewDraftNotFoundError(slug)
	}

	// 索引・サイトマップ断片は移動時に削除されるため先に退避する
	card, _, err := s.store.LoadCard(slug)
	if err != nil {
		return err
	}
	sitemapEntry, _, err := s.store.LoadSitemap(slug)
	if err != nil {
		return err
	}

	if err := s.store.Promote(slug); err != nil {
		return err
	}
	if err := s.states.SetStatus(ctx, slug, model.PostStatusApproved); err != nil {
		s.logger.Error("承認状態の記録に失敗しました",
			slog.String("slug", slug), slog.String("error", err.Error()))
	}

	if err := s.publisher.PublishPost(ctx, slug, content); err != nil {
		s.metrics.RecordPublishFailure()
		s.logger.Error("公開先へのプッシュに失敗しました。記事は承認済みのまま保持されます",
			slog.String("slug", slug), slog.String("error", err.Error()))
		return model.NewPublishFailedError(slug, err)
	}
	s.metrics.RecordPublishSuccess()

	// 索引・サイトマップのマージは公開後のベストエフォート
	if card != "" {
		if err := s.publisher.UpdateIndex(ctx, slug, card); err != nil {
			s.logger.Error("ブログ索引の更新に失敗しました",
				slog.String("slug", slug), slog.String("error", err.Error()))
		}
	}
	if sitemapEntry != "" {
		if err := s.publisher.UpdateSitemap(ctx, slug, sitemapEntry); err != nil {
			s.logger.Error("サイトマップの更新に失敗しました",
				slog.String("slug", slug), slog.String("error", err.Error()))
		}
	}

	email := s.renderer.PublishedNotification(slug, s.titleFor(slug))
	if err := s.notifier.Send(ctx, email); err != nil {
		s.logger.Error("公開完了通知の送信に失敗しました",
			slog.String("slug", slug), slog.String("error", err.Error()))
	}

	s.logger.Info("記事を承認・公開しました", slog.String("slug", slug))
	return nil
}

// Reject はドラフトを却下し、生成物を破棄する。
func (s *Service) Reject(ctx context.Context, slug string) error {
	if !calendar.ValidSlug(slug) {
		return model.NewInvalidSlugError(slug)
	}
	if !s.store.DraftExists(slug) {
		return model.NewDraftNotFoundError(slug)
	}

	s.store.Discard(slug)
	if err := s.states.SetStatus(ctx, slug, model.PostStatusRejected); err != nil {
		s.logger.Error("却下状態の記録に失敗しました",
			slog.String("slug", slug), slog.String("error", err.Error()))
	}

	s.logger.Info("ドラフトを却下しました", slog.String("slug", slug))
	return nil
}

// ResetSlot はスロットの生成物と状態をすべて消去し、再生成可能な状態に戻す。
// 削除したファイルパスの一覧を返す。
func (s *Service) ResetSlot(ctx context.Context, slug string) ([]string, error) {
	if !calendar.ValidSlug(slug) {
		return nil, model.NewInvalidSlugError(slug)
	}

	cleared := s.store.Reset(slug)
	if err := s.states.Delete(ctx, slug); err != nil {
		return cleared, err
	}

	s.logger.Info("スロットをリセットしました",
		slog.String("slug", slug), slog.Int("cleared", len(cleared)))
	return cleared, nil
}

// ResetAllResult は一括リセット1件分の結果。
type ResetAllResult struct {
	Slug    string
	Cleared []string
	Err     error
}

// ResetAll はレビュー待ちの全ドラフトをまとめてリセットする。
// カレンダーを作り直した後などに、溜まったドラフトを一掃する運用操作。
// 1件の失敗で残りを止めず、スラグごとの結果を返す。
func (s *Service) ResetAll(ctx context.Context) ([]ResetAllResult, error) {
	slugs, err := s.store.ListDrafts()
	if err != nil {
		return nil, err
	}

	results := make([]ResetAllResult, 0, len(slugs))
	for _, slug := range slugs {
		cleared, err := s.ResetSlot(ctx, slug)
		results = append(results, ResetAllResult{Slug: slug, Cleared: cleared, Err: err})
	}

	s.logger.Info("全スロットをリセットしました", slog.Int("slots", len(results)))
	return results, nil
}

// RepushResult は再公開1件分の結果。
type RepushResult struct {
	Slug string
	Err  error
}

// Repush は承認済みストアの全記事を公開先へ再プッシュする。
// 公開失敗で「承認済み・未公開」に留まった記事の回復手段。
func (s *Service) Repush(ctx context.Context) ([]RepushResult, error) {
	slugs, err := s.store.ListApproved()
	if err != nil {
		return nil, err
	}

	results := make([]RepushResult, 0, len(slugs))
	for _, slug := range slugs {
		content, ok, err := s.store.LoadApproved(slug)
		if err != nil || !ok {
			results = append(results, RepushResult{Slug: slug, Err: err})
			continue
		}
		if err := s.publisher.PublishPost(ctx, slug, content); err != nil {
			s.metrics.RecordPublishFailure()
			results = append(results, RepushResult{Slug: slug, Err: err})
			continue
		}
		s.metrics.RecordPublishSuccess()
		results = append(results, RepushResult{Slug: slug})
	}
	return results, nil
}

// ListApproved は承認済み記事のスラグ一覧を返す。
func (s *Service) ListApproved() ([]string, error) {
	return s.store.ListApproved()
}

// ListAlerts は検出済みアラートの一覧を返す。
func (s *Service) ListAlerts(ctx context.Context) ([]*model.Alert, error) {
	return s.alerts.List(ctx)
}

// GenerateFromAlert は承認されたアラートを起点にカスタム記事を生成する。
//
// 開始の記録はアトミックで、pendingまたはerrorのアラートのみ開始できる。
// 生成結果に応じてアラートはdraftedまたはerrorへ遷移する。
func (s *Service) GenerateFromAlert(ctx context.Context, alertID string) (string, error) {
	alert, err := s.alerts.Find(ctx, alertID)
	if err != nil {
		return "", err
	}
	if alert == nil {
		return "", model.NewAlertNotFoundError(alertID)
	}

	started, err := s.alerts.TryBeginGenerate(ctx, alertID)
	if err != nil {
		return "", err
	}
	if !started {
		return "", model.NewSlotLockedError(alertID)
	}

	cluster := alert.Cluster
	if _, ok := s.calendar.Clusters[cluster]; !ok {
		// 提案クラスタが不明な場合は先頭のクラスタで代用する
		cluster = firstClusterKey(s.calendar)
	}

	slug := alert.SuggestedSlug
	if !calendar.ValidSlug(slug) {
		slug = ""
	}

	title := alert.SuggestedTitle
	if title == "" {
		title = alert.Headline
	}

	slug, runErr := s.pipeline.RunCustom(ctx, title, alert.Relevance, cluster, slug)
	if runErr != nil {
		if err := s.alerts.UpdateStatus(ctx, alertID, model.AlertStatusError, runErr.Error()); err != nil {
			s.logger.Error("アラート状態の更新に失敗しました",
				slog.String("alert_id", alertID), slog.String("error", err.Error()))
		}
		return "", fmt.Errorf("アラート起点の生成に失敗しました: %w", runErr)
	}

	if err := s.alerts.UpdateStatus(ctx, alertID, model.AlertStatusDrafted, ""); err != nil {
		s.logger.Error("アラート状態の更新に失敗しました",
			slog.String("alert_id", alertID), slog.String("error", err.Error()))
	}

	s.logger.Info("アラート起点の記事をドラフト化しました",
		slog.String("alert_id", alertID), slog.String("slug", slug))
	return slug, nil
}

// titleFor はスラグの表示用タイトルを返す。
// カレンダー外の記事はスラグから導出する。
func (s *Service) titleFor(slug string) string {
	if post := s.calendar.FindPost(slug); post != nil {
		return post.TitleEN
	}
	name := strings.TrimPrefix(slug, "blog-")
	words := strings.Split(name, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// firstClusterKey はクラスタキーを辞書順で1つ選ぶ。
func firstClusterKey(cal *model.Calendar) string {
	keys := make([]string, 0, len(cal.Clusters))
	for key := range cal.Clusters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
