package images

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// UsedImageIDs はドキュメント群に埋め込まれたプール画像のID集合を返す。
//
// ドラフト・承認済みの全本文を走査し、imgタグおよびOGメタタグの
// URLをプールと突き合わせる。保存済みインデックスではなく
// 呼び出しごとの再発見であり、前回のプール参照以降に作られた
// 生成物も反映される。
func UsedImageIDs(docs []string, pool []model.HeroImage) map[string]bool {
	used := make(map[string]bool)
	if len(pool) == 0 {
		return used
	}

	for _, doc := range docs {
		root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
		if err != nil {
			// パース不能なドキュメントは走査対象から外すだけでよい
			continue
		}

		var urls []string
		root.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
			if src, ok := sel.Attr("src"); ok {
				urls = append(urls, src)
			}
		})
		root.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
			if content, ok := sel.Attr("content"); ok {
				urls = append(urls, content)
			}
		})

		for _, img := range pool {
			if used[img.ID] {
				continue
			}
			for _, u := range urls {
				base := trimQuery(u)
				if base == "" {
					continue
				}
				// クエリパラメータ（サイズ指定など）の差異を許容する
				if strings.HasPrefix(u, img.URL) || strings.HasPrefix(img.URL, base) {
					used[img.ID] = true
					break
				}
			}
		}
	}
	return used
}

func trimQuery(u string) string {
	if i := strings.Index(u, "?"); i >= 0 {
		return u[:i]
	}
	return u
}
