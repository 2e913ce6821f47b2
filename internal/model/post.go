// Package model はドメインモデルを定義する。
package model

import "time"

// PlannedPost はコンテンツカレンダー上の1記事の計画を表す。
// Slugはカレンダー全体で一意であり、生成物・公開ファイルの結合キーとなる。
type PlannedPost struct {
	Slug            string   `yaml:"slug"`
	Day             string   `yaml:"day"`
	Cluster         string   `yaml:"cluster"`
	TitleEN         string   `yaml:"title_en"`
	TitleES         string   `yaml:"title_es"`
	Keywords        string   `yaml:"keywords"`
	RequiredSources []string `yaml:"sources_required"`
	CTAService      string   `yaml:"cta"`
}

// Cluster はコンテンツカテゴリの定義を表す。読み取り専用の参照データ。
type Cluster struct {
	CategoryTag     string `yaml:"category_tag"`
	CategoryLabelEN string `yaml:"category_label_en"`
	CategoryLabelES string `yaml:"category_label_es"`
	Color           string `yaml:"color"`
	CTAService      string `yaml:"cta_service"`
}

// Calendar はクラスタ定義と計画記事の一覧を表す。起動時に1回読み込み、実行中は不変。
type Calendar struct {
	Clusters map[string]Cluster `yaml:"clusters"`
	Posts    []PlannedPost      `yaml:"posts"`
}

// ClusterFor は記事のクラスタ定義を返す。
// 記事側のCTA指定が空の場合はクラスタのデフォルトCTAを採用する。
func (c *Calendar) ClusterFor(post *PlannedPost) (Cluster, bool) {
	cluster, ok := c.Clusters[post.Cluster]
	return cluster, ok
}

// FindPost はスラグで計画記事を検索する。見つからない場合はnilを返す。
func (c *Calendar) FindPost(slug string) *PlannedPost {
	for i := range c.Posts {
		if c.Posts[i].Slug == slug {
			return &c.Posts[i]
		}
	}
	return nil
}

// PostStatus は記事のパイプライン上の状態を表す。
// ファイルの有無から推測するのではなく、明示的に永続化する。
type PostStatus string

const (
	// PostStatusGenerating はパイプライン実行中の状態。スラグ単位の排他ロックを兼ねる。
	PostStatusGenerating PostStatus = "generating"
	// PostStatusDrafted はドラフト生成済みで人間のレビュー待ちの状態。
	PostStatusDrafted PostStatus = "drafted"
	// PostStatusApproved は承認・公開済みの状態。
	PostStatusApproved PostStatus = "approved"
	// PostStatusRejected は却下された状態。
	PostStatusRejected PostStatus = "rejected"
)

// Provenance はドラフトの出自を表す。
// 事前執筆（preauthored）のドラフトは自動修正パスの対象外となる。
type Provenance string

const (
	// ProvenanceGenerated は生成サービスが作成したドラフト。
	ProvenanceGenerated Provenance = "generated"
	// ProvenancePreauthored は人間が事前執筆したドラフト。
	ProvenancePreauthored Provenance = "preauthored"
)

// PostState は記事のパイプライン実行状態の永続化レコード。
// 生成物ファイル本体のソースオブトゥルースはストアであり、
// このレコードは状態遷移の記録とスラグ単位ロックに使う。
type PostState struct {
	Slug          string
	Status        PostStatus
	Provenance    Provenance
	Grade         string
	PublishReady  bool
	CriticalCount int
	WarningCount  int
	ErrorMessage  string
	RunID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HeroImage はヒーロー画像プールの1エントリを表す。
type HeroImage struct {
	ID     string   `yaml:"id"`
	URL    string   `yaml:"url"`
	Alt    string   `yaml:"alt"`
	Themes []string `yaml:"themes"`
}

// HasTheme は画像が指定テーマのタグを持つかを返す。
func (h *HeroImage) HasTheme(theme string) bool {
	for _, t := range h.Themes {
		if t == theme {
			return true
		}
	}
	return false
}
