package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/llm"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/pipeline"
	"github.com/satoshiledger/ArticleAutomation/internal/publish"
	"github.com/satoshiledger/ArticleAutomation/internal/render"
	"github.com/satoshiledger/ArticleAutomation/internal/store"
)

// memSink はインメモリの公開先。failに真を入れると全プッシュが失敗する。
type memSink struct {
	files map[string]string
	fail  bool
}

func newMemSink() *memSink {
	return &memSink{files: map[string]string{}}
}

func (s *memSink) Publish(_ context.Context, path string, content []byte, _ string) error {
	if s.fail {
		return errors.New("公開先への接続に失敗しました")
	}
	s.files[path] = string(content)
	return nil
}

func (s *memSink) Fetch(_ context.Context, path string) (string, bool, error) {
	content, ok := s.files[path]
	return content, ok, nil
}

// queueLLM は応答を順番に返す生成サービスのモック。
type queueLLM struct {
	queue []string
	err   error
}

func (q *queueLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if len(q.queue) == 0 {
		return "", errors.New("台本にない呼び出し")
	}
	resp := q.queue[0]
	q.queue = q.queue[1:]
	return resp, nil
}

// fakeStates は状態リポジトリのモック。
type fakeStates struct {
	statuses map[string]model.PostStatus
	deleted  []string
}

func newFakeStates() *fakeStates {
	return &fakeStates{statuses: map[string]model.PostStatus{}}
}

func (f *fakeStates) TryAcquire(_ context.Context, slug, _ string) (bool, error) {
	f.statuses[slug] = model.PostStatusGenerating
	return true, nil
}

func (f *fakeStates) Release(_ context.Context, slug string, status model.PostStatus, _ string) error {
	f.statuses[slug] = status
	return nil
}

func (f *fakeStates) UpdateAudit(_ context.Context, _ string, _ model.Provenance, _ *model.AuditReport) error {
	return nil
}

func (f *fakeStates) SetStatus(_ context.Context, slug string, status model.PostStatus) error {
	f.statuses[slug] = status
	return nil
}

func (f *fakeStates) Find(_ context.Context, _ string) (*model.PostState, error) { return nil, nil }

func (f *fakeStates) Delete(_ context.Context, slug string) error {
	f.deleted = append(f.deleted, slug)
	delete(f.statuses, slug)
	return nil
}

// fakeAlerts はアラートリポジトリのモック。
type fakeAlerts struct {
	alerts   map[string]*model.Alert
	statuses map[string]model.AlertStatus
	errMsgs  map[string]string
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{
		alerts:   map[string]*model.Alert{},
		statuses: map[string]model.AlertStatus{},
		errMsgs:  map[string]string{},
	}
}

func (f *fakeAlerts) CreateIfAbsent(_ context.Context, alert *model.Alert) (bool, error) {
	if _, ok := f.alerts[alert.AlertID]; ok {
		return false, nil
	}
	f.alerts[alert.AlertID] = alert
	return true, nil
}

func (f *fakeAlerts) Find(_ context.Context, alertID string) (*model.Alert, error) {
	return f.alerts[alertID], nil
}

func (f *fakeAlerts) List(_ context.Context) ([]*model.Alert, error) {
	var out []*model.Alert
	for _, a := range f.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAlerts) TryBeginGenerate(_ context.Context, alertID string) (bool, error) {
	alert, ok := f.alerts[alertID]
	if !ok {
		return false, nil
	}
	if alert.Status != model.AlertStatusPending && alert.Status != model.AlertStatusError {
		return false, nil
	}
	f.statuses[alertID] = model.AlertStatusGenerating
	return true, nil
}

func (f *fakeAlerts) UpdateStatus(_ context.Context, alertID string, status model.AlertStatus, errorMessage string) error {
	f.statuses[alertID] = status
	f.errMsgs[alertID] = errorMessage
	return nil
}

// fakeNotifier は通知送信のモック。
type fakeNotifier struct {
	sent []*render.Email
}

func (f *fakeNotifier) Send(_ context.Context, email *render.Email) error {
	f.sent = append(f.sent, email)
	return nil
}

// fakeMetrics はメトリクス記録のモック。
type fakeMetrics struct {
	publishOK   int
	publishFail int
}

func (f *fakeMetrics) RecordPassSuccess(string) {}

func (f *fakeMetrics) RecordPassFailure(string) {}

func (f *fakeMetrics) RecordPassLatency(string, time.Duration) {}

func (f *fakeMetrics) RecordLLMRetry() {}

func (f *fakeMetrics) RecordParseFallback(string) {}

func (f *fakeMetrics) RecordPublishSuccess() { f.publishOK++ }

func (f *fakeMetrics) RecordPublishFailure() { f.publishFail++ }

func (f *fakeMetrics) RecordNotifySuccess(string) {}

func (f *fakeMetrics) RecordNotifyFailure() {}

func (f *fakeMetrics) RecordAlertDetected() {}

func reviewCalendar() *model.Calendar {
	return &model.Calendar{
		Clusters: map[string]model.Cluster{
			"1_llc_formation": {
				CategoryTag:     "LLC",
				CategoryLabelEN: "LLC Formation",
				CategoryLabelES: "Formación de LLC",
				CTAService:      "llc-formation",
			},
		},
		Posts: []model.PlannedPost{
			{Slug: "blog-llc-guide", Day: "monday", Cluster: "1_llc_formation", TitleEN: "LLC Formation Guide"},
		},
	}
}

type reviewEnv struct {
	service  *Service
	store    *store.FileStore
	sink     *memSink
	states   *fakeStates
	alerts   *fakeAlerts
	notifier *fakeNotifier
	metrics  *fakeMetrics
	llm      *queueLLM
}

func newReviewEnv(t *testing.T) *reviewEnv {
	t.Helper()

	dir := t.TempDir()
	fs, err := store.New(filepath.Join(dir, "drafts"), filepath.Join(dir, "approved"), filepath.Join(dir, "pregenerated"))
	if err != nil {
		t.Fatalf("ストアの作成に失敗: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	sink := newMemSink()
	states := newFakeStates()
	alerts := newFakeAlerts()
	notifier := &fakeNotifier{}
	collector := &fakeMetrics{}
	llmMock := &queueLLM{}
	renderer := render.New("https://example.com", "http://localhost:8080")
	cal := reviewCalendar()

	pool := []model.HeroImage{
		{ID: "img-1", URL: "https://images.example.com/img-1.jpg", Alt: "office", Themes: []string{"LLC"}},
	}

	p := pipeline.New(pipeline.Deps{
		LLM:       llmMock,
		Store:     fs,
		States:    states,
		Renderer:  renderer,
		Notifier:  notifier,
		Metrics:   collector,
		Calendar:  cal,
		ImagePool: pool,
		Logger:    logger,
		SiteURL:   "https://example.com",
	})

	service := NewService(Deps{
		Store:     fs,
		States:    states,
		Alerts:    alerts,
		Publisher: publish.NewPublisher(sink, logger),
		Pipeline:  p,
		Renderer:  renderer,
		Notifier:  notifier,
		Metrics:   collector,
		Calendar:  cal,
		Logger:    logger,
	})

	return &reviewEnv{
		service: service, store: fs, sink: sink, states: states,
		alerts: alerts, notifier: notifier, metrics: collector, llm: llmMock,
	}
}

// seedDraft はレビュー可能なドラフト一式をストアに用意する。
func seedDraft(t *testing.T, env *reviewEnv, slug string) {
	t.Helper()
	if err := env.store.SaveDraft(slug, "<html><body>draft body</body></html>"); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SaveAudit(slug, &model.AuditReport{OverallGrade: "A", PublishReady: true}); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SaveCard(slug, "<!-- "+slug+" -->\n<article class=\"blog-card\">card</article>"); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SaveSitemap(slug, "  <url><loc>https://example.com/"+slug+".html</loc></url>"); err != nil {
		t.Fatal(err)
	}
}

const reviewIndexPage = `<html><body>
<!-- BLOG-CARDS -->
</body></html>`

const reviewSitemapPage = `<?xml version="1.0"?>
<urlset></urlset>`

func TestApprove_MovesAndPublishes(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	env.sink.files["blog.html"] = reviewIndexPage
	env.sink.files["sitemap.xml"] = reviewSitemapPage

	if err := env.service.Approve(context.Background(), "blog-llc-guide", ""); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	// 承認は移動。ドラフトは消え、承認済みストアに本文が残る
	if env.store.DraftExists("blog-llc-guide") {
		t.Error("承認後にドラフトが残っています")
	}
	if !env.store.ApprovedExists("blog-llc-guide") {
		t.Error("承認済みストアに本文がありません")
	}

	if _, ok := env.sink.files["blog-llc-guide.html"]; !ok {
		t.Error("記事本体が公開先にプッシュされていません")
	}
	if !strings.Contains(env.sink.files["blog.html"], "blog-llc-guide") {
		t.Error("ブログ索引にカードがマージされていません")
	}
	if !strings.Contains(env.sink.files["sitemap.xml"], "blog-llc-guide.html") {
		t.Error("サイトマップにエントリがマージされていません")
	}

	if env.states.statuses["blog-llc-guide"] != model.PostStatusApproved {
		t.Errorf("状態 = %q, want approved", env.states.statuses["blog-llc-guide"])
	}
	if env.metrics.publishOK != 1 {
		t.Errorf("publishOK = %d, want 1", env.metrics.publishOK)
	}
	if len(env.notifier.sent) != 1 {
		t.Errorf("公開完了通知の送信回数 = %d, want 1", len(env.notifier.sent))
	}
}

func TestApprove_WithEditedHTML(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	env.sink.files["blog.html"] = reviewIndexPage
	env.sink.files["sitemap.xml"] = reviewSitemapPage

	edited := "<html><body>edited by human</body></html>"
	if err := env.service.Approve(context.Background(), "blog-llc-guide", edited); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if env.sink.files["blog-llc-guide.html"] != edited {
		t.Error("編集済み本文が公開されるべき")
	}
	approved, _, _ := env.store.LoadApproved("blog-llc-guide")
	if approved != edited {
		t.Error("編集済み本文が承認済みストアに保存されるべき")
	}
}

func TestApprove_PublishFailureKeepsApproved(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	env.sink.fail = true

	err := env.service.Approve(context.Background(), "blog-llc-guide", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePublishFailed {
		t.Fatalf("err = %v, want PUBLISH_FAILED", err)
	}

	// 承認済み・未公開の状態に留まり、Repushで回復できる
	if !env.store.ApprovedExists("blog-llc-guide") {
		t.Error("公開失敗後も承認済みストアに本文が残るべき")
	}
	if env.store.DraftExists("blog-llc-guide") {
		t.Error("承認の移動自体は完了しているべき")
	}
	if env.metrics.publishFail != 1 {
		t.Errorf("publishFail = %d, want 1", env.metrics.publishFail)
	}
}

func TestApprove_DraftNotFound(t *testing.T) {
	env := newReviewEnv(t)

	err := env.service.Approve(context.Background(), "blog-missing", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDraftNotFound {
		t.Fatalf("err = %v, want DRAFT_NOT_FOUND", err)
	}
}

func TestApprove_InvalidSlug(t *testing.T) {
	env := newReviewEnv(t)

	err := env.service.Approve(context.Background(), "../etc/passwd", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidSlug {
		t.Fatalf("err = %v, want INVALID_SLUG", err)
	}
}

func TestReject_DiscardsArtifacts(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")

	if err := env.service.Reject(context.Background(), "blog-llc-guide"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	if env.store.DraftExists("blog-llc-guide") {
		t.Error("却下後にドラフトが残っています")
	}
	if audit, _ := env.store.LoadAudit("blog-llc-guide"); audit != nil {
		t.Error("却下後に監査レポートが残っています")
	}
	if env.states.statuses["blog-llc-guide"] != model.PostStatusRejected {
		t.Errorf("状態 = %q, want rejected", env.states.statuses["blog-llc-guide"])
	}
}

func TestResetSlot_ClearsEverything(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")

	cleared, err := env.service.ResetSlot(context.Background(), "blog-llc-guide")
	if err != nil {
		t.Fatalf("ResetSlot() error = %v", err)
	}

	if len(cleared) == 0 {
		t.Error("削除されたファイルパスが返されるべき")
	}
	if env.store.DraftExists("blog-llc-guide") {
		t.Error("リセット後にドラフトが残っています")
	}
	if len(env.states.deleted) != 1 || env.states.deleted[0] != "blog-llc-guide" {
		t.Errorf("deleted = %v, 状態レコードが削除されるべき", env.states.deleted)
	}
}

func TestResetAll_ClearsAllDrafts(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	seedDraft(t, env, "blog-act-60-basics")

	results, err := env.service.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d件, want 2", len(results))
	}
	for _, result := range results {
		if result.Err != nil {
			t.Errorf("results[%s].Err = %v, want nil", result.Slug, result.Err)
		}
		if env.store.DraftExists(result.Slug) {
			t.Errorf("一括リセット後にドラフト%sが残っています", result.Slug)
		}
	}
	if len(env.states.deleted) != 2 {
		t.Errorf("deleted = %v, 全スラグの状態レコードが削除されるべき", env.states.deleted)
	}
}

func TestResetAll_EmptyStoreIsNoop(t *testing.T) {
	env := newReviewEnv(t)

	results, err := env.service.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d件, want 0", len(results))
	}
}

func TestRepush_RecoversUnpublished(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	env.sink.fail = true

	// 公開失敗で承認済み・未公開に留める
	if err := env.service.Approve(context.Background(), "blog-llc-guide", ""); err == nil {
		t.Fatal("公開失敗のセットアップに失敗")
	}

	env.sink.fail = false
	results, err := env.service.Repush(context.Background())
	if err != nil {
		t.Fatalf("Repush() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d件, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v, want nil", results[0].Err)
	}
	if _, ok := env.sink.files["blog-llc-guide.html"]; !ok {
		t.Error("再プッシュで記事が公開されるべき")
	}
}

func TestRepush_ReportsPerSlugFailures(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")
	env.sink.fail = true
	_ = env.service.Approve(context.Background(), "blog-llc-guide", "")

	results, err := env.service.Repush(context.Background())
	if err != nil {
		t.Fatalf("Repush() error = %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("results = %+v, 失敗がスラグ単位で報告されるべき", results)
	}
}

func TestListPending_SummarizesDrafts(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")

	drafts, err := env.service.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d件, want 1", len(drafts))
	}

	d := drafts[0]
	if d.Title != "LLC Formation Guide" {
		t.Errorf("Title = %q, カレンダーのタイトルが使われるべき", d.Title)
	}
	if d.Grade != "A" || !d.PublishReady {
		t.Errorf("Grade = %q PublishReady = %v", d.Grade, d.PublishReady)
	}
	if d.Cluster != "1_llc_formation" {
		t.Errorf("Cluster = %q", d.Cluster)
	}
}

func TestListPending_DerivesTitleForCustomSlug(t *testing.T) {
	env := newReviewEnv(t)
	if err := env.store.SaveDraft("blog-custom-topic", "<html></html>"); err != nil {
		t.Fatal(err)
	}

	drafts, err := env.service.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(drafts) != 1 || drafts[0].Title != "Custom Topic" {
		t.Errorf("drafts = %+v, カレンダー外はスラグからタイトルを導出すべき", drafts)
	}
}

func TestGetArtifact_NotFound(t *testing.T) {
	env := newReviewEnv(t)

	_, err := env.service.GetArtifact("blog-missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDraftNotFound {
		t.Fatalf("err = %v, want DRAFT_NOT_FOUND", err)
	}
}

func TestSaveEdits_OverwritesDraft(t *testing.T) {
	env := newReviewEnv(t)
	seedDraft(t, env, "blog-llc-guide")

	if err := env.service.SaveEdits("blog-llc-guide", "<html>v2</html>"); err != nil {
		t.Fatalf("SaveEdits() error = %v", err)
	}
	draft, _, _ := env.store.LoadDraft("blog-llc-guide")
	if draft != "<html>v2</html>" {
		t.Errorf("draft = %q", draft)
	}
}

const cleanAuditJSON = `{"overall_grade":"A","publish_ready":true,"critical_issues":[],"warnings":[]}`

func pendingAlert() *model.Alert {
	return &model.Alert{
		AlertID:        "abc123",
		Status:         model.AlertStatusPending,
		Headline:       "IRS issues new guidance",
		Relevance:      "affects Act 60 holders",
		SuggestedTitle: "New IRS Guidance Explained",
		SuggestedSlug:  "blog-irs-guidance",
		Cluster:        "1_llc_formation",
	}
}

func TestGenerateFromAlert_Success(t *testing.T) {
	env := newReviewEnv(t)
	env.alerts.alerts["abc123"] = pendingAlert()
	env.llm.queue = []string{"<html><body>alert article</body></html>", cleanAuditJSON}

	slug, err := env.service.GenerateFromAlert(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GenerateFromAlert() error = %v", err)
	}
	if slug != "blog-irs-guidance" {
		t.Errorf("slug = %q, want blog-irs-guidance", slug)
	}
	if !env.store.DraftExists(slug) {
		t.Error("アラート起点のドラフトが保存されるべき")
	}
	if env.alerts.statuses["abc123"] != model.AlertStatusDrafted {
		t.Errorf("アラート状態 = %q, want drafted", env.alerts.statuses["abc123"])
	}
}

func TestGenerateFromAlert_NotFound(t *testing.T) {
	env := newReviewEnv(t)

	_, err := env.service.GenerateFromAlert(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAlertNotFound {
		t.Fatalf("err = %v, want ALERT_NOT_FOUND", err)
	}
}

func TestGenerateFromAlert_AlreadyGenerating(t *testing.T) {
	env := newReviewEnv(t)
	alert := pendingAlert()
	alert.Status = model.AlertStatusGenerating
	env.alerts.alerts["abc123"] = alert

	_, err := env.service.GenerateFromAlert(context.Background(), "abc123")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSlotLocked {
		t.Fatalf("err = %v, want SLOT_LOCKED", err)
	}
}

func TestGenerateFromAlert_PipelineFailureMarksError(t *testing.T) {
	env := newReviewEnv(t)
	env.alerts.alerts["abc123"] = pendingAlert()
	env.llm.err = errors.New("接続エラー")

	_, err := env.service.GenerateFromAlert(context.Background(), "abc123")
	if err == nil {
		t.Fatal("GenerateFromAlert() error = nil, 生成失敗はエラーになるべき")
	}

	if env.alerts.statuses["abc123"] != model.AlertStatusError {
		t.Errorf("アラート状態 = %q, want error", env.alerts.statuses["abc123"])
	}
	if env.alerts.errMsgs["abc123"] == "" {
		t.Error("失敗理由がアラートに記録されるべき")
	}
}

func TestGenerateFromAlert_InvalidSuggestedSlugDerived(t *testing.T) {
	env := newReviewEnv(t)
	alert := pendingAlert()
	alert.SuggestedSlug = "not a valid slug!"
	env.alerts.alerts["abc123"] = alert
	env.llm.queue = []string{"<html><body>alert article</body></html>", cleanAuditJSON}

	slug, err := env.service.GenerateFromAlert(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GenerateFromAlert() error = %v", err)
	}
	// 不正な提案スラグは破棄され、タイトルから導出される
	if slug != "blog-new-irs-guidance-explained" {
		t.Errorf("slug = %q, want blog-new-irs-guidance-explained", slug)
	}
}
