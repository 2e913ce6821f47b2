// Package pipeline は多段コンテンツ生成の状態機械を提供する。
//
// パス順序は 生成 → 監査 → （重大指摘がある場合のみ）修正 → 再監査 →
// SNS派生 → 断片生成 → 通知 で固定。承認は人間の操作であり、
// パイプラインは通知を送った時点で停止する。
//
// エラー伝播の方針: 前半のパス（生成・監査）の失敗は当該スラグの実行を
// 中断する。後半のパス（SNS派生・断片・通知）の失敗は非致命であり、
// 残っている生成物で人間がレビューできるため実行は完了扱いになる。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/satoshiledger/ArticleAutomation/internal/calendar"
	"github.com/satoshiledger/ArticleAutomation/internal/extract"
	"github.com/satoshiledger/ArticleAutomation/internal/images"
	"github.com/satoshiledger/ArticleAutomation/internal/llm"
	"github.com/satoshiledger/ArticleAutomation/internal/metrics"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/notify"
	"github.com/satoshiledger/ArticleAutomation/internal/render"
	"github.com/satoshiledger/ArticleAutomation/internal/repository"
)

// Store はパイプラインが必要とする生成物ストアの操作。
type Store interface {
	ArtifactChecker
	SaveDraft(slug, html string) error
	LoadPregenerated(slug string) (string, bool, error)
	SaveAudit(slug string, audit *model.AuditReport) error
	SaveSocial(slug string, social *model.SocialContent) error
	SaveCard(slug, html string) error
	SaveSitemap(slug, xml string) error
	Documents() ([]string, error)
}

// Deps はPipelineの依存一式。
type Deps struct {
	LLM           llm.Service
	Store         Store
	States        repository.PostStateRepository
	Renderer      *render.Renderer
	Notifier      notify.Notifier
	Metrics       metrics.MetricsCollector
	Calendar      *model.Calendar
	ImagePool     []model.HeroImage
	Logger        *slog.Logger
	SiteURL       string
	Cooldown      time.Duration
	SocialEnabled bool
}

// Pipeline は多段生成パイプラインの実装。
type Pipeline struct {
	llm           llm.Service
	store         Store
	states        repository.PostStateRepository
	renderer      *render.Renderer
	notifier      notify.Notifier
	metrics       metrics.MetricsCollector
	calendar      *model.Calendar
	pool          []model.HeroImage
	logger        *slog.Logger
	siteURL       string
	cooldown      time.Duration
	socialEnabled bool
}

// New はPipelineを生成する。
func New(deps Deps) *Pipeline {
	return &Pipeline{
		llm:           deps.LLM,
		store:         deps.Store,
		states:        deps.States,
		renderer:      deps.Renderer,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		calendar:      deps.Calendar,
		pool:          deps.ImagePool,
		logger:        deps.Logger,
		siteURL:       deps.SiteURL,
		cooldown:      deps.Cooldown,
		socialEnabled: deps.SocialEnabled,
	}
}

// RunScheduled は本日のスロットを1つ解決してパイプラインを実行する。
// 本日分のスロットがない場合は何もせず正常終了する。
func (p *Pipeline) RunScheduled(ctx context.Context, now time.Time, generateDays []string) error {
	resolver := NewResolver(p.calendar, p.store)
	post := resolver.NextUngenerated(now, generateDays)
	if post == nil {
		p.logger.Info("本日の生成対象スロットはありません")
		return nil
	}
	return p.RunPost(ctx, post)
}

// RunNext は曜日の割り当てを無視して次の未生成スロットを実行する。
// ダッシュボードからの手動トリガー用。
func (p *Pipeline) RunNext(ctx context.Context) error {
	resolver := NewResolver(p.calendar, p.store)
	post := resolver.FirstUngenerated()
	if post == nil {
		p.logger.Info("未生成のスロットがありません。カレンダーはすべて生成済みです")
		return nil
	}
	return p.RunPost(ctx, post)
}

// RunCustom はカレンダー外の単発記事のパイプラインを実行する。
// slugが空の場合はタイトルから導出する。採用したスラグを返す。
func (p *Pipeline) RunCustom(ctx context.Context, title, keywords, clusterName, slug string) (string, error) {
	if _, ok := p.calendar.Clusters[clusterName]; !ok {
		return "", model.NewUnknownClusterError(clusterName)
	}
	if slug == "" {
		slug = calendar.Slugify(title)
	}
	if !calendar.ValidSlug(slug) {
		return "", model.NewInvalidSlugError(slug)
	}

	post := &model.PlannedPost{
		Slug:       slug,
		Cluster:    clusterName,
		TitleEN:    title,
		TitleES:    title,
		Keywords:   keywords,
		CTAService: p.calendar.Clusters[clusterName].CTAService,
	}
	return slug, p.RunPost(ctx, post)
}

// RunPost は1記事分のパイプラインを実行する。
//
// スラグ単位の排他ロックを取得してから実行し、終了時に状態を確定する。
// ロックが取得できない場合（実行中または承認済み）はSLOT_LOCKEDを返す。
func (p *Pipeline) RunPost(ctx context.Context, post *model.PlannedPost) error {
	cluster, ok := p.calendar.ClusterFor(post)
	if !ok {
		return model.NewUnknownClusterError(post.Cluster)
	}

	runID := uuid.NewString()
	logger := p.logger.With(slog.String("slug", post.Slug), slog.String("run_id", runID))

	acquired, err := p.states.TryAcquire(ctx, post.Slug, runID)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Warn("スラグのロックが取得できませんでした。実行をスキップします")
		return model.NewSlotLockedError(post.Slug)
	}

	logger.Info("パイプラインを開始します", slog.String("title", post.TitleEN))

	doc, provenance, err := p.generatePass(ctx, post, cluster, logger)
	if err != nil {
		// 生成前の失敗。スロットを再生成可能な状態に戻す
		if delErr := p.states.Delete(ctx, post.Slug); delErr != nil {
			logger.Error("状態レコードの削除に失敗しました", slog.String("error", delErr.Error()))
		}
		return fmt.Errorf("生成パスに失敗しました: %w", err)
	}

	if err := p.wait(ctx); err != nil {
		return p.abort(ctx, post.Slug, logger, err)
	}

	audit, err := p.auditPass(ctx, doc, post, logger)
	if err != nil {
		return p.abort(ctx, post.Slug, logger, fmt.Errorf("監査パスに失敗しました: %w", err))
	}
	if err := p.states.UpdateAudit(ctx, post.Slug, provenance, audit); err != nil {
		logger.Error("監査サマリの記録に失敗しました", slog.String("error", err.Error()))
	}

	// 修正パスの発動条件はcritical_issuesが空でないことのみ。
	// グレードやpublish_readyフラグは参照しない。
	// 事前執筆のドラフトは自動修正の対象外（人間の原稿を機械が書き換えない）。
	if audit.HasCritical() && provenance == model.ProvenanceGenerated {
		if err := p.wait(ctx); err != nil {
			return p.abort(ctx, post.Slug, logger, err)
		}

		fixed, fixErr := p.fixPass(ctx, post.Slug, doc, audit, logger)
		if fixErr != nil {
			// 修正失敗は非致命。監査済みドラフトのまま人間レビューへ回す
			logger.Error("修正パスに失敗しました。監査済みドラフトのまま続行します",
				slog.String("error", fixErr.Error()))
		} else {
			doc = fixed

			if err := p.wait(ctx); err != nil {
				return p.abort(ctx, post.Slug, logger, err)
			}

			// 修正後の再監査。レポートは上書きし、修正前のものは保持しない
			reaudit, auditErr := p.auditPass(ctx, doc, post, logger)
			if auditErr != nil {
				logger.Error("再監査に失敗しました。修正前の監査レポートを保持します",
					slog.String("error", auditErr.Error()))
			} else {
				audit = reaudit
				if err := p.states.UpdateAudit(ctx, post.Slug, provenance, audit); err != nil {
					logger.Error("監査サマリの記録に失敗しました", slog.String("error", err.Error()))
				}
			}
		}
	} else if audit.HasCritical() {
		logger.Info("重大指摘がありますが事前執筆ドラフトのため自動修正をスキップします",
			slog.Int("critical", len(audit.CriticalIssues)))
	}

	// ここから先は非致命パス。失敗しても人間レビューは可能
	if p.socialEnabled {
		if err := p.wait(ctx); err != nil {
			return p.abort(ctx, post.Slug, logger, err)
		}
		p.socialPass(ctx, doc, post, logger)
	}

	p.fragmentPass(post, cluster, logger)
	p.notifyPass(ctx, post, audit, logger)

	if err := p.states.Release(ctx, post.Slug, model.PostStatusDrafted, ""); err != nil {
		logger.Error("状態の確定に失敗しました", slog.String("error", err.Error()))
	}

	logger.Info("パイプラインが完了しました。承認待ちです",
		slog.String("grade", audit.OverallGrade),
		slog.Int("critical", len(audit.CriticalIssues)),
		slog.Int("warnings", len(audit.Warnings)),
	)
	return nil
}

// abort はドラフト保存後の中断を処理する。
// 生成物は保持したままdrafted+エラーメッセージで状態を確定し、
// 人間が残っている生成物でレビューできるようにする。
func (p *Pipeline) abort(ctx context.Context, slug string, logger *slog.Logger, cause error) error {
	if err := p.states.Release(ctx, slug, model.PostStatusDrafted, cause.Error()); err != nil {
		logger.Error("中断時の状態確定に失敗しました", slog.String("error", err.Error()))
	}
	return cause
}

// generatePass は本文ドキュメントを用意する。
//
// 事前執筆ストアに本文が存在する場合は生成サービスを呼ばずにそれを採用し、
// 出自をpreauthoredとして記録する。それ以外はヒーロー画像を決定してから
// 生成サービスを呼び、レスポンスを正規化してドラフトとして保存する。
func (p *Pipeline) generatePass(ctx context.Context, post *model.PlannedPost, cluster model.Cluster, logger *slog.Logger) (string, model.Provenance, error) {
	start := time.Now()

	pre, ok, err := p.store.LoadPregenerated(post.Slug)
	if err != nil {
		return "", "", err
	}
	if ok {
		logger.Info("事前執筆ドラフトを採用します。生成サービスはスキップします")
		if err := p.store.SaveDraft(post.Slug, pre); err != nil {
			return "", "", err
		}
		p.metrics.RecordPassSuccess("generate")
		return pre, model.ProvenancePreauthored, nil
	}

	hero, err := p.selectHeroImage(post, cluster, logger)
	if err != nil {
		return "", "", err
	}

	raw, err := p.llm.Complete(ctx, llm.Request{
		System:   generateSystemPrompt,
		User:     generateBrief(post, cluster, hero, p.siteURL, time.Now().UTC()),
		Research: true,
	})
	p.metrics.RecordPassLatency("generate", time.Since(start))
	if err != nil {
		p.metrics.RecordPassFailure("generate")
		return "", "", err
	}

	doc := extract.Document(raw)
	if err := p.store.SaveDraft(post.Slug, doc); err != nil {
		p.metrics.RecordPassFailure("generate")
		return "", "", err
	}

	p.metrics.RecordPassSuccess("generate")
	logger.Info("ドラフトを保存しました",
		slog.Int("bytes", len(doc)),
		slog.String("hero_image", hero.ID),
	)
	return doc, model.ProvenanceGenerated, nil
}

// selectHeroImage は記事に割り当てるヒーロー画像を決定する。
// 使用済み判定は現存する全ドラフト・承認済み本文を毎回走査して行う。
func (p *Pipeline) selectHeroImage(post *model.PlannedPost, cluster model.Cluster, logger *slog.Logger) (model.HeroImage, error) {
	docs, err := p.store.Documents()
	if err != nil {
		return model.HeroImage{}, err
	}
	used := images.UsedImageIDs(docs, p.pool)

	hero, err := images.Select(p.pool, cluster.CategoryTag, post.Slug, used)
	if err != nil {
		return model.HeroImage{}, err
	}
	logger.Info("ヒーロー画像を割り当てました",
		slog.String("image_id", hero.ID),
		slog.Int("used_count", len(used)),
	)
	return hero, nil
}

// auditPass は本文ドキュメントの敵対的監査を実行する。
// パース不能なレスポンスはフォールバックレポートに縮退し、エラーにしない。
func (p *Pipeline) auditPass(ctx context.Context, doc string, post *model.PlannedPost, logger *slog.Logger) (*model.AuditReport, error) {
	start := time.Now()

	raw, err := p.llm.Complete(ctx, llm.Request{
		System:   auditSystemPrompt,
		User:     auditBrief(doc, post),
		Research: true,
	})
	p.metrics.RecordPassLatency("audit", time.Since(start))
	if err != nil {
		p.metrics.RecordPassFailure("audit")
		return nil, err
	}

	var audit model.AuditReport
	if err := extract.JSON(raw, &audit); err != nil {
		var parseErr *extract.ParseFailure
		if !errors.As(err, &parseErr) {
			p.metrics.RecordPassFailure("audit")
			return nil, err
		}
		logger.Warn("監査レスポンスがパースできません。フォールバックレポートに縮退します")
		p.metrics.RecordParseFallback("audit")
		audit = *model.FallbackAuditReport(parseErr.RawPrefix)
	}

	if err := p.store.SaveAudit(post.Slug, &audit); err != nil {
		p.metrics.RecordPassFailure("audit")
		return nil, err
	}

	p.metrics.RecordPassSuccess("audit")
	logger.Info("監査レポートを保存しました",
		slog.String("grade", audit.OverallGrade),
		slog.Bool("publish_ready", audit.PublishReady),
		slog.Int("critical", len(audit.CriticalIssues)),
	)
	return &audit, nil
}

// fixPass は重大指摘の自動修正を実行し、修正済み本文をドラフトとして保存する。
func (p *Pipeline) fixPass(ctx context.Context, slug, doc string, audit *model.AuditReport, logger *slog.Logger) (string, error) {
	start := time.Now()
	logger.Info("重大指摘の自動修正を実行します", slog.Int("critical", len(audit.CriticalIssues)))

	raw, err := p.llm.Complete(ctx, llm.Request{
		System:   fixSystemPrompt,
		User:     fixBrief(doc, audit.CriticalIssues),
		Research: true,
	})
	p.metrics.RecordPassLatency("fix", time.Since(start))
	if err != nil {
		p.metrics.RecordPassFailure("fix")
		return "", err
	}

	fixed := extract.Document(raw)
	if err := p.store.SaveDraft(slug, fixed); err != nil {
		p.metrics.RecordPassFailure("fix")
		return "", err
	}

	p.metrics.RecordPassSuccess("fix")
	return fixed, nil
}

// socialPass はSNS派生コンテンツを生成する。あらゆる失敗は非致命。
func (p *Pipeline) socialPass(ctx context.Context, doc string, post *model.PlannedPost, logger *slog.Logger) {
	start := time.Now()

	raw, err := p.llm.Complete(ctx, llm.Request{
		System: socialSystemPrompt,
		User:   socialBrief(doc, post, p.siteURL),
	})
	p.metrics.RecordPassLatency("social", time.Since(start))
	if err != nil {
		p.metrics.RecordPassFailure("social")
		logger.Error("SNS派生パスに失敗しました。スキップして続行します", slog.String("error", err.Error()))
		return
	}

	var social model.SocialContent
	if err := extract.JSON(raw, &social); err != nil {
		p.metrics.RecordParseFallback("social")
		logger.Warn("SNS派生レスポンスがパースできません。プレースホルダに縮退します")
		social = model.SocialContent{
			Error: "SNS派生コンテンツのパースに失敗しました",
			Raw:   extract.RawPrefix(raw),
		}
	}

	if err := p.store.SaveSocial(post.Slug, &social); err != nil {
		p.metrics.RecordPassFailure("social")
		logger.Error("SNS派生コンテンツの保存に失敗しました", slog.String("error", err.Error()))
		return
	}
	p.metrics.RecordPassSuccess("social")
	logger.Info("SNS派生コンテンツを保存しました")
}

// fragmentPass は公開時に使うカード断片とサイトマップエントリを保存する。
func (p *Pipeline) fragmentPass(post *model.PlannedPost, cluster model.Cluster, logger *slog.Logger) {
	card, err := p.renderer.BlogCard(post, cluster)
	if err != nil {
		logger.Error("カード断片の生成に失敗しました", slog.String("error", err.Error()))
	} else if err := p.store.SaveCard(post.Slug, card); err != nil {
		logger.Error("カード断片の保存に失敗しました", slog.String("error", err.Error()))
	}

	if err := p.store.SaveSitemap(post.Slug, p.renderer.SitemapEntry(post.Slug)); err != nil {
		logger.Error("サイトマップエントリの保存に失敗しました", slog.String("error", err.Error()))
	}
}

// notifyPass はレビュー依頼の通知を送る。失敗してもパイプラインは完了する。
func (p *Pipeline) notifyPass(ctx context.Context, post *model.PlannedPost, audit *model.AuditReport, logger *slog.Logger) {
	email, err := p.renderer.DraftNotification(post, audit)
	if err != nil {
		logger.Error("通知メールの生成に失敗しました", slog.String("error", err.Error()))
		return
	}
	if err := p.notifier.Send(ctx, email); err != nil {
		logger.Error("通知の送信に失敗しました。ダッシュボードから直接レビューしてください",
			slog.String("error", err.Error()))
	}
}

// wait はパス間の冷却時間を挟む。冷却時間0ではノーオペ。
// コンテキストのキャンセルはパス境界のここで検出される。
func (p *Pipeline) wait(ctx context.Context) error {
	if p.cooldown <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.cooldown):
		return nil
	}
}
