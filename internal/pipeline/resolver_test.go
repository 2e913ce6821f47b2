package pipeline

import (
	"testing"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// fakeChecker は生成済み判定のモック。
type fakeChecker struct {
	drafts   map[string]bool
	approved map[string]bool
}

func (f *fakeChecker) DraftExists(slug string) bool    { return f.drafts[slug] }
func (f *fakeChecker) ApprovedExists(slug string) bool { return f.approved[slug] }

func resolverCalendar() *model.Calendar {
	return &model.Calendar{
		Clusters: map[string]model.Cluster{
			"1_llc_formation": {CategoryTag: "LLC"},
		},
		Posts: []model.PlannedPost{
			{Slug: "blog-first", Day: "monday", Cluster: "1_llc_formation"},
			{Slug: "blog-second", Day: "monday", Cluster: "1_llc_formation"},
			{Slug: "blog-third", Day: "thursday", Cluster: "1_llc_formation"},
		},
	}
}

// 2026-03-16 はUTCで月曜日。
var monday = time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)

func TestNextUngenerated_PicksFirstSlotForToday(t *testing.T) {
	r := NewResolver(resolverCalendar(), &fakeChecker{drafts: map[string]bool{}, approved: map[string]bool{}})

	post := r.NextUngenerated(monday, []string{"monday", "thursday"})
	if post == nil || post.Slug != "blog-first" {
		t.Fatalf("post = %v, want blog-first", post)
	}
}

func TestNextUngenerated_SkipsGeneratedSlots(t *testing.T) {
	checker := &fakeChecker{
		drafts:   map[string]bool{"blog-first": true},
		approved: map[string]bool{},
	}
	r := NewResolver(resolverCalendar(), checker)

	post := r.NextUngenerated(monday, []string{"monday"})
	if post == nil || post.Slug != "blog-second" {
		t.Fatalf("post = %v, want blog-second (ドラフト済みはスキップ)", post)
	}
}

func TestNextUngenerated_ApprovedCountsAsGenerated(t *testing.T) {
	checker := &fakeChecker{
		drafts:   map[string]bool{"blog-first": true},
		approved: map[string]bool{"blog-second": true},
	}
	r := NewResolver(resolverCalendar(), checker)

	if post := r.NextUngenerated(monday, []string{"monday"}); post != nil {
		t.Fatalf("post = %v, want nil (本日分はすべて生成済み)", post)
	}
}

func TestNextUngenerated_NotAGenerateDay(t *testing.T) {
	r := NewResolver(resolverCalendar(), &fakeChecker{drafts: map[string]bool{}, approved: map[string]bool{}})

	// 月曜日だが生成対象曜日はthursdayのみ
	if post := r.NextUngenerated(monday, []string{"thursday"}); post != nil {
		t.Fatalf("post = %v, want nil (対象曜日ではない)", post)
	}
}

func TestNextUngenerated_DayMatchIsCaseInsensitive(t *testing.T) {
	r := NewResolver(resolverCalendar(), &fakeChecker{drafts: map[string]bool{}, approved: map[string]bool{}})

	post := r.NextUngenerated(monday, []string{"Monday"})
	if post == nil || post.Slug != "blog-first" {
		t.Fatalf("post = %v, 曜日の大文字小文字は無視されるべき", post)
	}
}

func TestFirstUngenerated_IgnoresDayAssignment(t *testing.T) {
	checker := &fakeChecker{
		drafts:   map[string]bool{"blog-first": true, "blog-second": true},
		approved: map[string]bool{},
	}
	r := NewResolver(resolverCalendar(), checker)

	// monday割り当ての2件は生成済み。曜日に関係なくthursday分が選ばれる
	post := r.FirstUngenerated()
	if post == nil || post.Slug != "blog-third" {
		t.Fatalf("post = %v, want blog-third", post)
	}
}

func TestFirstUngenerated_AllGenerated(t *testing.T) {
	checker := &fakeChecker{
		drafts:   map[string]bool{"blog-first": true, "blog-second": true, "blog-third": true},
		approved: map[string]bool{},
	}
	r := NewResolver(resolverCalendar(), checker)

	if post := r.FirstUngenerated(); post != nil {
		t.Fatalf("post = %v, want nil (全件生成済み)", post)
	}
}
