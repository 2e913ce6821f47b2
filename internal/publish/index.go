package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ブログ索引ページ内のカード挿入位置マーカー。
const cardInsertMarker = "<!-- BLOG-CARDS -->"

// 公開先リポジトリ上の固定パス。
const (
	indexPath   = "blog.html"
	sitemapPath = "sitemap.xml"
)

// Publisher は承認時の公開処理一式をまとめる。
// 記事本体のプッシュは必須、索引・サイトマップのマージはベストエフォート。
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

// NewPublisher はPublisherを生成する。
func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, logger: logger}
}

// PublishPost は記事本体を公開先へプッシュする。
func (p *Publisher) PublishPost(ctx context.Context, slug, content string) error {
	if p.sink == nil {
		return fmt.Errorf("公開先が設定されていません")
	}
	return p.sink.Publish(ctx, slug+".html", []byte(content), "Publish: "+slug)
}

// UpdateIndex はブログ索引ページにカード断片をマージしてプッシュする。
// 同じスラグのカードが既に存在する場合は何もしない（再実行に対して冪等）。
func (p *Publisher) UpdateIndex(ctx context.Context, slug, card string) error {
	if p.sink == nil {
		return fmt.Errorf("公開先が設定されていません")
	}
	index, ok, err := p.sink.Fetch(ctx, indexPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("公開先にブログ索引ページがありません: %s", indexPath)
	}

	merged, changed := MergeCard(index, slug, card)
	if !changed {
		p.logger.Info("ブログ索引は更新済みです", slog.String("slug", slug))
		return nil
	}
	return p.sink.Publish(ctx, indexPath, []byte(merged), "Add blog card: "+slug)
}

// UpdateSitemap はサイトマップにエントリ断片をマージしてプッシュする。
func (p *Publisher) UpdateSitemap(ctx context.Context, slug, entry string) error {
	if p.sink == nil {
		return fmt.Errorf("公開先が設定されていません")
	}
	sitemap, ok, err := p.sink.Fetch(ctx, sitemapPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("公開先にサイトマップがありません: %s", sitemapPath)
	}

	merged, changed := MergeSitemap(sitemap, slug, entry)
	if !changed {
		p.logger.Info("サイトマップは更新済みです", slog.String("slug", slug))
		return nil
	}
	return p.sink.Publish(ctx, sitemapPath, []byte(merged), "Add sitemap entry: "+slug)
}

// MergeCard は索引ページHTMLへカード断片を挿入する。
//
// 挿入位置は優先順に: 挿入マーカーコメントの直後、最初の既存カードの直前。
// どちらも見つからない場合、または同じスラグのカードが既に存在する場合は
// 変更せずfalseを返す。
func MergeCard(index, slug, card string) (string, bool) {
	if strings.Contains(index, "<!-- "+slug+" -->") {
		return index, false
	}

	if pos := strings.Index(index, cardInsertMarker); pos >= 0 {
		at := pos + len(cardInsertMarker)
		return index[:at] + "\n" + card + index[at:], true
	}

	if pos := strings.Index(index, `<article class="blog-card`); pos >= 0 {
		return index[:pos] + strings.TrimLeft(card, "\n") + "\n                " + index[pos:], true
	}

	return index, false
}

// MergeSitemap はサイトマップXMLへエントリ断片を挿入する。
// 同じlocのエントリが既に存在する場合、または終端タグが見つからない場合は
// 変更せずfalseを返す。
func MergeSitemap(sitemap, slug, entry string) (string, bool) {
	if strings.Contains(sitemap, "/"+slug+".html</loc>") {
		return sitemap, false
	}

	pos := strings.LastIndex(sitemap, "</urlset>")
	if pos < 0 {
		return sitemap, false
	}
	return sitemap[:pos] + entry + "\n" + sitemap[pos:], true
}
