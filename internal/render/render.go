// Package render はカード断片・サイトマップエントリ・通知メール本文の組み立てを提供する。
//
// 生成サービス由来のテキストはメールやカードに埋め込む前に
// サニタイズし、タグの混入を防ぐ。
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// Renderer は断片・通知本文のレンダラ。
type Renderer struct {
	siteURL      string
	dashboardURL string
	sanitizer    *bluemonday.Policy
	markdown     goldmark.Markdown
	// now は注入可能な現在時刻。テストで固定する。
	now func() time.Time
}

// New はRendererを生成する。
func New(siteURL, dashboardURL string) *Renderer {
	return &Renderer{
		siteURL:      strings.TrimRight(siteURL, "/"),
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		sanitizer:    bluemonday.StrictPolicy(),
		markdown:     goldmark.New(),
		now:          time.Now,
	}
}

// WithClock は現在時刻の供給元を差し替えたRendererを返す。
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	clone := *r
	clone.now = now
	return &clone
}

// Sanitize は生成サービス由来のテキストからHTMLタグを除去する。
func (r *Renderer) Sanitize(s string) string {
	return strings.TrimSpace(r.sanitizer.Sanitize(s))
}

// スペイン語の月名。カードの日付表記に使う。
var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var cardTemplate = template.Must(template.New("card").Parse(`
                <!-- {{.Slug}} -->
                <article class="blog-card bg-white rounded-2xl shadow-lg overflow-hidden border border-slate-100"
                         data-category="{{.CategoryTag}}">
                    <div class="p-8">
                        <div class="flex items-center gap-3 mb-4">
                            <span class="bg-{{.Color}}-100 text-{{.Color}}-800 px-3 py-1 rounded-full text-xs font-bold">
                                <span data-lang="en">{{.LabelEN}}</span>
                                <span data-lang="es">{{.LabelES}}</span>
                            </span>
                            <span class="text-slate-400 text-xs">
                                <span data-lang="en">{{.DateEN}}</span>
                                <span data-lang="es">{{.DateES}}</span>
                            </span>
                        </div>
                        <h3 class="text-xl font-black text-slate-900 mb-3 hover:text-blue-600 transition">
                            <a href="{{.Slug}}.html">
                                <span data-lang="en">{{.TitleEN}}</span>
                                <span data-lang="es">{{.TitleES}}</span>
                            </a>
                        </h3>
                        <a href="{{.Slug}}.html" class="inline-flex items-center gap-2 text-blue-600 font-bold text-sm hover:text-blue-700 transition">
                            <span data-lang="en">Read Full Article</span>
                            <span data-lang="es">Leer Artículo Completo</span>
                            <i class="fas fa-arrow-right text-xs"></i>
                        </a>
                    </div>
                </article>`))

// BlogCard はブログ索引ページに差し込むカード断片を生成する。
func (r *Renderer) BlogCard(post *model.PlannedPost, cluster model.Cluster) (string, error) {
	now := r.now().UTC()
	data := struct {
		Slug, CategoryTag, Color, LabelEN, LabelES string
		DateEN, DateES                             string
		TitleEN, TitleES                           string
	}{
		Slug:        post.Slug,
		CategoryTag: cluster.CategoryTag,
		Color:       cluster.Color,
		LabelEN:     cluster.CategoryLabelEN,
		LabelES:     cluster.CategoryLabelES,
		DateEN:      now.Format("January 2, 2006"),
		DateES:      fmt.Sprintf("%d %s %d", now.Day(), spanishMonths[now.Month()-1], now.Year()),
		TitleEN:     r.Sanitize(post.TitleEN),
		TitleES:     r.Sanitize(post.TitleES),
	}

	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("カード断片の生成に失敗しました: %w", err)
	}
	return buf.String(), nil
}

// SitemapEntry は記事のサイトマップエントリ断片を生成する。
func (r *Renderer) SitemapEntry(slug string) string {
	return fmt.Sprintf(`  <url>
    <loc>%s/%s.html</loc>
    <lastmod>%s</lastmod>
    <changefreq>monthly</changefreq>
    <priority>0.8</priority>
  </url>`, r.siteURL, slug, r.now().UTC().Format("2006-01-02"))
}

// Email は通知メールの1通分を表す。
type Email struct {
	Subject string
	Text    string
	HTML    string
}

var draftEmailTemplate = template.Must(template.New("draft").Parse(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <div style="background: #0F172A; padding: 20px 24px; border-radius: 12px 12px 0 0;">
        <span style="color: #CC0000; font-weight: 900; font-size: 18px;">PuertoRico</span><span style="color: #3A99D8; font-weight: 900; font-size: 18px;">LLC</span>
        <span style="color: #64748B; font-size: 14px; margin-left: 8px;">Blog Engine</span>
      </div>
      <div style="background: #ffffff; border: 1px solid #E2E8F0; padding: 24px; border-radius: 0 0 12px 12px;">
        <div style="background: {{.PanelBG}}; border-left: 4px solid {{.PanelEdge}}; padding: 12px 16px; border-radius: 0 8px 8px 0; margin-bottom: 20px;">
          <strong style="font-size: 16px;">{{.Status}}</strong>
          <span style="color: #64748B; font-size: 14px; margin-left: 8px;">Audit Grade: {{.Grade}}</span>
        </div>

        <h2 style="color: #0F172A; font-size: 20px; margin: 0 0 8px 0;">{{.Title}}</h2>
        <p style="color: #64748B; font-size: 14px; margin: 0 0 20px 0;">Cluster: {{.Cluster}} &nbsp;|&nbsp; 🔴 {{.Critical}} critical &nbsp;|&nbsp; 🟡 {{.Warnings}} warnings &nbsp;|&nbsp; 🟢 {{.Suggestions}} suggestions</p>
{{range .WarningLines}}
        <p style="color: #92400E; background: #FFFBEB; padding: 8px 12px; border-radius: 6px; font-size: 13px; margin: 4px 0;">⚠️ {{.}}</p>
{{end}}
        <div style="margin-top: 24px; text-align: center;">
          <a href="{{.ReviewURL}}" style="display: inline-block; background: #1E3A8A; color: white; padding: 14px 32px; border-radius: 8px; text-decoration: none; font-weight: bold; font-size: 16px; margin-right: 8px;">✏️ Review &amp; Edit</a>
          <a href="{{.SocialURL}}" style="display: inline-block; background: #475569; color: white; padding: 14px 24px; border-radius: 8px; text-decoration: none; font-weight: bold; font-size: 14px;">📱 Social Content</a>
        </div>

        <p style="color: #94A3B8; font-size: 12px; text-align: center; margin-top: 24px;">Satoshi Ledger LLC | PuertoRicoLLC.com</p>
      </div>
    </div>
`))

// DraftNotification はドラフト完成通知メールを組み立てる。
func (r *Renderer) DraftNotification(post *model.PlannedPost, audit *model.AuditReport) (*Email, error) {
	grade := audit.OverallGrade
	if grade == "" {
		grade = "?"
	}

	status := "⚠️ NEEDS REVIEW"
	icon := "⚠️"
	panelBG, panelEdge := "#FFFBEB", "#EAB308"
	if audit.PublishReady {
		status = "✅ PASSED"
		icon = "✅"
		panelBG, panelEdge = "#F0FDF4", "#16A34A"
	}

	title := r.Sanitize(post.TitleEN)
	reviewURL := fmt.Sprintf("%s/review/%s", r.dashboardURL, post.Slug)
	socialURL := fmt.Sprintf("%s/social/%s", r.dashboardURL, post.Slug)

	subject := fmt.Sprintf("%s Blog Draft: %s", icon, truncate(title, 60))

	var text strings.Builder
	fmt.Fprintf(&text, "%s — Blog Draft Ready for Review\n\n", status)
	fmt.Fprintf(&text, "Title: %s\n", title)
	fmt.Fprintf(&text, "Cluster: %s\n", post.Cluster)
	fmt.Fprintf(&text, "Audit Grade: %s\n", grade)
	fmt.Fprintf(&text, "Critical: %d | Warnings: %d | Suggestions: %d\n\n",
		len(audit.CriticalIssues), len(audit.Warnings), len(audit.Suggestions))
	fmt.Fprintf(&text, "Review & Edit: %s\n", reviewURL)
	fmt.Fprintf(&text, "Social Content: %s\n", socialURL)

	var warningLines []string
	for i := range audit.Warnings {
		if i >= 5 {
			break
		}
		line := truncate(r.Sanitize(audit.Warnings[i].Text()), 150)
		warningLines = append(warningLines, line)
		fmt.Fprintf(&text, "\n⚠️ %s", truncate(line, 120))
	}

	data := struct {
		Status, Grade, Title, Cluster            string
		PanelBG, PanelEdge, ReviewURL, SocialURL string
		Critical, Warnings, Suggestions          int
		WarningLines                             []string
	}{
		Status: status, Grade: grade, Title: title, Cluster: post.Cluster,
		PanelBG: panelBG, PanelEdge: panelEdge, ReviewURL: reviewURL, SocialURL: socialURL,
		Critical: len(audit.CriticalIssues), Warnings: len(audit.Warnings), Suggestions: len(audit.Suggestions),
		WarningLines: warningLines,
	}

	var buf bytes.Buffer
	if err := draftEmailTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("ドラフト通知メールの生成に失敗しました: %w", err)
	}
	return &Email{Subject: subject, Text: text.String(), HTML: buf.String()}, nil
}

var alertEmailTemplate = template.Must(template.New("alert").Parse(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <div style="background: #0F172A; padding: 20px 24px; border-radius: 12px 12px 0 0;">
        <span style="color: #CC0000; font-weight: 900; font-size: 18px;">PuertoRico</span><span style="color: #3A99D8; font-weight: 900; font-size: 18px;">LLC</span>
        <span style="color: #EF4444; font-size: 14px; margin-left: 8px;">⚡ ALERT</span>
      </div>
      <div style="background: #ffffff; border: 1px solid #E2E8F0; padding: 24px; border-radius: 0 0 12px 12px;">
        <div style="background: #FEF2F2; border-left: 4px solid #EF4444; padding: 12px 16px; border-radius: 0 8px 8px 0; margin-bottom: 20px;">
          <strong style="font-size: 14px; color: #991B1B;">🔴 Urgency: {{.Urgency}}</strong>
        </div>
        <h2 style="color: #0F172A; font-size: 20px; margin: 0 0 12px 0;">{{.Headline}}</h2>
        <p style="color: #475569; font-size: 14px;"><strong>Source:</strong> {{.Source}}</p>
        <p style="color: #475569; font-size: 14px;"><strong>Why it matters:</strong> {{.Relevance}}</p>
        <div style="background: #F8FAFC; padding: 16px; border-radius: 8px; margin: 16px 0;">
          <p style="color: #64748B; font-size: 13px; margin: 0 0 4px 0;">Suggested blog post:</p>
          <p style="color: #0F172A; font-weight: bold; margin: 0;">&quot;{{.SuggestedTitle}}&quot;</p>
        </div>
        <div style="margin-top: 24px; text-align: center;">
          <a href="{{.AlertsURL}}" style="display: inline-block; background: #991B1B; color: white; padding: 14px 32px; border-radius: 8px; text-decoration: none; font-weight: bold; font-size: 16px;">⚡ Review Alert</a>
        </div>
        <p style="color: #94A3B8; font-size: 12px; text-align: center; margin-top: 24px;">Satoshi Ledger LLC | PuertoRicoLLC.com</p>
      </div>
    </div>
`))

// AlertNotification はニュースアラート通知メールを組み立てる。
func (r *Renderer) AlertNotification(alert *model.Alert) (*Email, error) {
	headline := r.Sanitize(alert.Headline)
	if headline == "" {
		headline = "Regulatory Update"
	}

	subject := fmt.Sprintf("🔴 New Content Opportunity: %s", truncate(headline, 50))
	alertsURL := r.dashboardURL + "/alerts"

	var text strings.Builder
	text.WriteString("BREAKING: Content Opportunity Detected\n\n")
	fmt.Fprintf(&text, "Headline: %s\n", headline)
	fmt.Fprintf(&text, "Source: %s\n", r.Sanitize(alert.Source))
	fmt.Fprintf(&text, "Relevance: %s\n", r.Sanitize(alert.Relevance))
	fmt.Fprintf(&text, "Urgency: %s\n\n", r.Sanitize(alert.Urgency))
	fmt.Fprintf(&text, "Suggested post: %q\n", r.Sanitize(alert.SuggestedTitle))
	fmt.Fprintf(&text, "Cluster: %s\n\n", alert.Cluster)
	fmt.Fprintf(&text, "Review: %s\n", alertsURL)

	data := struct {
		Headline, Source, Relevance, Urgency, SuggestedTitle, AlertsURL string
	}{
		Headline:       headline,
		Source:         r.Sanitize(alert.Source),
		Relevance:      r.Sanitize(alert.Relevance),
		Urgency:        r.Sanitize(alert.Urgency),
		SuggestedTitle: r.Sanitize(alert.SuggestedTitle),
		AlertsURL:      alertsURL,
	}

	var buf bytes.Buffer
	if err := alertEmailTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("アラート通知メールの生成に失敗しました: %w", err)
	}
	return &Email{Subject: subject, Text: text.String(), HTML: buf.String()}, nil
}

// PublishedNotification は公開完了の確認メールを組み立てる。
func (r *Renderer) PublishedNotification(slug, title string) *Email {
	title = r.Sanitize(title)
	if title == "" {
		title = slug
	}
	postURL := fmt.Sprintf("%s/%s.html", r.siteURL, slug)

	text := fmt.Sprintf("Published: %s\n\nLive at: %s\n", title, postURL)
	html := fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #0F172A;">✅ Published: %s</h2>
      <p><a href="%s">%s</a></p>
    </div>
`, template.HTMLEscapeString(title), postURL, postURL)

	return &Email{
		Subject: fmt.Sprintf("✅ Published: %s", truncate(title, 60)),
		Text:    text,
		HTML:    html,
	}
}

// NewsletterHTML はSNS派生コンテンツのニュースレター本文（マークダウン）を
// メール用HTMLへ変換する。変換失敗時は整形前テキストにフォールバックする。
func (r *Renderer) NewsletterHTML(email *model.SocialEmail) string {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(email.Body), &buf); err != nil {
		return "<pre>" + template.HTMLEscapeString(email.Body) + "</pre>"
	}
	return buf.String()
}

// truncate は文字列を最大nバイトに切り詰める（UTF-8境界を尊重する）。
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// マルチバイト文字を途中で割らないよう末尾を調整する
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
