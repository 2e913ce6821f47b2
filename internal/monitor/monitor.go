// Package monitor は政府系フィードの定期スキャンとアラート検出を提供する。
//
// 設定されたRSS/Atomフィードから直近の見出しを収集し、生成サービスに
// 関連性の triage を依頼する。検出されたアラートは見出しの内容ハッシュで
// 重複排除のうえ永続化し、新規分のみ通知する。
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/satoshiledger/ArticleAutomation/internal/extract"
	"github.com/satoshiledger/ArticleAutomation/internal/llm"
	"github.com/satoshiledger/ArticleAutomation/internal/metrics"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/notify"
	"github.com/satoshiledger/ArticleAutomation/internal/render"
	"github.com/satoshiledger/ArticleAutomation/internal/repository"
	"github.com/satoshiledger/ArticleAutomation/internal/security"
)

const newsMonitorPrompt = `You are a regulatory news monitor for PuertoRicoLLC.com, a Puerto Rico
tax compliance firm specializing in Act 60 and Bitcoin tax accounting.

Your job: Scan the provided headlines and determine if any contain NEW regulatory
developments that would be relevant to the firm's audience (Act 60 decree holders, PR business
owners, Bitcoin investors in PR).

Relevant triggers include:
- New IRS guidance, notices, or revenue rulings affecting US territories or digital assets
- New Hacienda circulars or administrative determinations
- Changes to DDEC decree application requirements
- New legislation passed or signed affecting PR tax incentives
- FinCEN updates on FBAR or BSA reporting for Bitcoin
- SEC actions affecting Bitcoin ETFs or digital asset classification
- Federal court decisions affecting Act 60 or territorial tax treatment

Do NOT report routine news, opinion pieces, or old information.
Only official government actions.

For each relevant development found, output JSON:
{
  "alerts": [
    {
      "headline": "short description",
      "source": "official source name and URL",
      "relevance": "why this matters to Act 60 holders / Bitcoin investors in PR",
      "urgency": "HIGH/MEDIUM/LOW",
      "suggested_title": "blog post title that would cover this",
      "suggested_slug": "blog-url-slug",
      "cluster": "which content cluster this fits"
    }
  ],
  "no_alerts": true/false
}

If nothing relevant was found, return: {"alerts": [], "no_alerts": true}`

// Headline は収集した1件の見出し。
type Headline struct {
	Title     string
	Link      string
	FeedTitle string
	Published time.Time
}

// Monitor はニュースモニタの実装。
type Monitor struct {
	feeds    []string
	llm      llm.Service
	alerts   repository.AlertRepository
	notifier notify.Notifier
	renderer *render.Renderer
	guard    security.SSRFGuardService
	parser   *gofeed.Parser
	metrics  metrics.MetricsCollector
	calendar *model.Calendar
	logger   *slog.Logger
	maxItems int
	lookback time.Duration
}

// Deps はMonitorの依存一式。
type Deps struct {
	Feeds    []string
	LLM      llm.Service
	Alerts   repository.AlertRepository
	Notifier notify.Notifier
	Renderer *render.Renderer
	Guard    security.SSRFGuardService
	Metrics  metrics.MetricsCollector
	Calendar *model.Calendar
	Logger   *slog.Logger
	MaxItems int
	Lookback time.Duration
}

// New はMonitorを生成する。
func New(deps Deps) *Monitor {
	return &Monitor{
		feeds:    deps.Feeds,
		llm:      deps.LLM,
		alerts:   deps.Alerts,
		notifier: deps.Notifier,
		renderer: deps.Renderer,
		guard:    deps.Guard,
		parser:   gofeed.NewParser(),
		metrics:  deps.Metrics,
		calendar: deps.Calendar,
		logger:   deps.Logger,
		maxItems: deps.MaxItems,
		lookback: deps.Lookback,
	}
}

// Scan はフィードを走査し、新規アラートを検出・通知する。
// フィード単位の失敗はスキップして続行する。
func (m *Monitor) Scan(ctx context.Context) error {
	if len(m.feeds) == 0 {
		m.logger.Info("監視対象フィードが設定されていません。スキャンをスキップします")
		return nil
	}

	headlines := m.collect(ctx)
	if len(headlines) == 0 {
		m.logger.Info("直近の見出しが収集できませんでした")
		return nil
	}

	report, err := m.triage(ctx, headlines)
	if err != nil {
		return fmt.Errorf("見出しのtriageに失敗しました: %w", err)
	}

	if len(report.Alerts) == 0 {
		m.logger.Info("新しい規制関連の動きは検出されませんでした",
			slog.Int("headlines", len(headlines)))
		return nil
	}

	for i := range report.Alerts {
		m.handleAlert(ctx, &report.Alerts[i])
	}
	return nil
}

// collect は全フィードから監視期間内の見出しを集める。
func (m *Monitor) collect(ctx context.Context) []Headline {
	cutoff := time.Now().Add(-m.lookback)
	var headlines []Headline

	for _, feedURL := range m.feeds {
		if err := m.guard.ValidateURL(feedURL); err != nil {
			m.logger.Error("フィードURLのSSRF検証に失敗しました",
				slog.String("feed_url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		feed, err := m.fetchFeed(ctx, feedURL)
		if err != nil {
			m.logger.Error("フィードの取得に失敗しました。スキップします",
				slog.String("feed_url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, item := range feed.Items {
			if len(headlines) >= m.maxItems {
				return headlines
			}
			published := publishedAt(item)
			if !published.IsZero() && published.Before(cutoff) {
				continue
			}
			headlines = append(headlines, Headline{
				Title:     strings.TrimSpace(item.Title),
				Link:      item.Link,
				FeedTitle: feed.Title,
				Published: published,
			})
		}
	}
	return headlines
}

func (m *Monitor) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	client := m.guard.NewSafeClient(30*time.Second, 5*1024*1024)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "BlogEngine/1.0 News Monitor")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	feed, err := m.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}
	return feed, nil
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// triageReport は生成サービスのtriage結果。
type triageReport struct {
	Alerts   []alertPayload `json:"alerts"`
	NoAlerts bool           `json:"no_alerts"`
}

type alertPayload struct {
	Headline       string `json:"headline"`
	Source         string `json:"source"`
	Relevance      string `json:"relevance"`
	Urgency        string `json:"urgency"`
	SuggestedTitle string `json:"suggested_title"`
	SuggestedSlug  string `json:"suggested_slug"`
	Cluster        string `json:"cluster"`
}

// triage は見出しダイジェストを生成サービスに渡し、アラート候補を抽出する。
// レスポンスがパース不能な場合はアラートなしとして扱う（非致命）。
func (m *Monitor) triage(ctx context.Context, headlines []Headline) (*triageReport, error) {
	var b strings.Builder
	b.WriteString("Evaluate the following recent headlines from official government feeds:\n\n")
	for _, h := range headlines {
		fmt.Fprintf(&b, "- [%s] %s", h.FeedTitle, h.Title)
		if !h.Published.IsZero() {
			fmt.Fprintf(&b, " (%s)", h.Published.Format("2006-01-02"))
		}
		if h.Link != "" {
			fmt.Fprintf(&b, "\n  %s", h.Link)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReport ONLY genuinely NEW developments. Output ONLY the JSON report.\n")

	raw, err := m.llm.Complete(ctx, llm.Request{
		System: newsMonitorPrompt,
		User:   b.String(),
	})
	if err != nil {
		return nil, err
	}

	var report triageReport
	if err := extract.JSON(raw, &report); err != nil {
		m.logger.Warn("triageレスポンスがパースできません。アラートなしとして扱います")
		m.metrics.RecordParseFallback("monitor")
		return &triageReport{NoAlerts: true}, nil
	}
	return &report, nil
}

// handleAlert は検出されたアラート1件を永続化し、新規の場合のみ通知する。
func (m *Monitor) handleAlert(ctx context.Context, payload *alertPayload) {
	if payload.Headline == "" {
		return
	}

	// 提案クラスタがカレンダー未定義の場合は空にして人間に委ねる
	cluster := payload.Cluster
	if _, ok := m.calendar.Clusters[cluster]; !ok {
		cluster = ""
	}

	alert := &model.Alert{
		AlertID:        model.AlertIDFor(payload.Headline),
		Status:         model.AlertStatusPending,
		Headline:       payload.Headline,
		Source:         payload.Source,
		Relevance:      payload.Relevance,
		Urgency:        payload.Urgency,
		SuggestedTitle: payload.SuggestedTitle,
		SuggestedSlug:  payload.SuggestedSlug,
		Cluster:        cluster,
	}

	created, err := m.alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		m.logger.Error("アラートの登録に失敗しました",
			slog.String("headline", payload.Headline),
			slog.String("error", err.Error()),
		)
		return
	}
	if !created {
		m.logger.Info("既知のアラートのため通知をスキップします",
			slog.String("alert_id", alert.AlertID))
		return
	}

	m.metrics.RecordAlertDetected()
	m.logger.Info("新しいアラートを検出しました",
		slog.String("alert_id", alert.AlertID),
		slog.String("headline", alert.Headline),
		slog.String("urgency", alert.Urgency),
	)

	email, err := m.renderer.AlertNotification(alert)
	if err != nil {
		m.logger.Error("アラート通知メールの生成に失敗しました", slog.String("error", err.Error()))
		return
	}
	if err := m.notifier.Send(ctx, email); err != nil {
		m.logger.Error("アラート通知の送信に失敗しました", slog.String("error", err.Error()))
	}
}
