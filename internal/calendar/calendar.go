// Package calendar はコンテンツカレンダー定義の読み込みと検証を提供する。
// カレンダーはYAMLの静的ドキュメントであり、実行中は読み取り専用。
package calendar

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// slugPattern はURLセーフなスラグの形式。
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Load はカレンダー定義ファイルを読み込み、検証して返す。
func Load(path string) (*model.Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("カレンダー定義の読み込みに失敗しました: %w", err)
	}
	return Parse(data)
}

// Parse はYAMLバイト列からカレンダーを構築し、検証する。
func Parse(data []byte) (*model.Calendar, error) {
	var cal model.Calendar
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("カレンダー定義のパースに失敗しました: %w", err)
	}
	if err := validate(&cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

// validate はカレンダーの不変条件を確認する。
// スラグはカレンダー全体で一意でなければならない（生成物との結合キーのため）。
func validate(cal *model.Calendar) error {
	if len(cal.Clusters) == 0 {
		return fmt.Errorf("カレンダーにclustersが定義されていません")
	}

	seen := make(map[string]bool, len(cal.Posts))
	for i := range cal.Posts {
		post := &cal.Posts[i]

		if !ValidSlug(post.Slug) {
			return fmt.Errorf("不正なスラグです: %q", post.Slug)
		}
		if seen[post.Slug] {
			return fmt.Errorf("スラグが重複しています: %q", post.Slug)
		}
		seen[post.Slug] = true

		cluster, ok := cal.Clusters[post.Cluster]
		if !ok {
			return fmt.Errorf("記事 %q のクラスタ %q が未定義です", post.Slug, post.Cluster)
		}

		// 記事側のCTA未指定はクラスタのデフォルトを採用する
		if post.CTAService == "" {
			post.CTAService = cluster.CTAService
		}
	}

	return nil
}

// ValidSlug はスラグがURLセーフな形式かを返す。
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Slugify はタイトルからURLセーフなスラグを導出する。
// カスタム記事（カレンダー外の単発生成）で使用する。
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	if slug == "" {
		return ""
	}
	return "blog-" + slug
}
