package pipeline

import (
	"strings"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// ArtifactChecker はスロットの生成済み判定に必要なストア操作。
type ArtifactChecker interface {
	DraftExists(slug string) bool
	ApprovedExists(slug string) bool
}

// Resolver はカレンダーから次に生成すべきスロットを決定する。
type Resolver struct {
	calendar *model.Calendar
	store    ArtifactChecker
}

// NewResolver はResolverを生成する。
func NewResolver(calendar *model.Calendar, store ArtifactChecker) *Resolver {
	return &Resolver{calendar: calendar, store: store}
}

// NextUngenerated は本日の曜日に割り当てられた未生成の記事を返す。
//
// 本日が生成対象曜日でない場合、または対象曜日の全記事が生成済み
// （ドラフトまたは承認済みが存在する）の場合はnilを返す。
// カレンダー順で最初の未生成記事を選ぶ。
func (r *Resolver) NextUngenerated(now time.Time, generateDays []string) *model.PlannedPost {
	day := strings.ToLower(now.UTC().Weekday().String())
	if !containsDay(generateDays, day) {
		return nil
	}

	for i := range r.calendar.Posts {
		post := &r.calendar.Posts[i]
		if post.Day != day {
			continue
		}
		if r.store.DraftExists(post.Slug) || r.store.ApprovedExists(post.Slug) {
			continue
		}
		return post
	}
	return nil
}

// FirstUngenerated はカレンダー順で最初の未生成記事を返す。
// 曜日の割り当ては無視する。手動トリガー用。
func (r *Resolver) FirstUngenerated() *model.PlannedPost {
	for i := range r.calendar.Posts {
		post := &r.calendar.Posts[i]
		if r.store.DraftExists(post.Slug) || r.store.ApprovedExists(post.Slug) {
			continue
		}
		return post
	}
	return nil
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if strings.EqualFold(d, day) {
			return true
		}
	}
	return false
}
