package images

import (
	"fmt"
	"hash/fnv"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// Select は記事にヒーロー画像を決定的に割り当てる。
//
// 候補集合は優先順に:
//  1. 記事カテゴリのテーマタグを持つ未使用画像
//  2. 任意の未使用画像
//  3. 記事カテゴリのテーマタグを持つ画像（再利用を許容）
//  4. プール全体（再利用を許容）
//
// 選ばれた候補集合の中では、スラグの安定ハッシュを集合サイズで
// 剰余したインデックスを採用する。同じスラグの再実行は常に同じ画像になる。
func Select(pool []model.HeroImage, theme, slug string, used map[string]bool) (model.HeroImage, error) {
	if len(pool) == 0 {
		return model.HeroImage{}, fmt.Errorf("画像プールが空です")
	}

	candidates := themed(pool, theme, used)
	if len(candidates) == 0 {
		candidates = unused(pool, used)
	}
	if len(candidates) == 0 {
		candidates = themedAll(pool, theme)
	}
	if len(candidates) == 0 {
		candidates = pool
	}

	idx := slugHash(slug) % uint64(len(candidates))
	return candidates[idx], nil
}

// slugHash はスラグの安定ハッシュ（FNV-1a）を返す。
func slugHash(slug string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(slug))
	return h.Sum64()
}

func themed(pool []model.HeroImage, theme string, used map[string]bool) []model.HeroImage {
	var out []model.HeroImage
	for _, img := range pool {
		if img.HasTheme(theme) && !used[img.ID] {
			out = append(out, img)
		}
	}
	return out
}

func unused(pool []model.HeroImage, used map[string]bool) []model.HeroImage {
	var out []model.HeroImage
	for _, img := range pool {
		if !used[img.ID] {
			out = append(out, img)
		}
	}
	return out
}

func themedAll(pool []model.HeroImage, theme string) []model.HeroImage {
	var out []model.HeroImage
	for _, img := range pool {
		if img.HasTheme(theme) {
			out = append(out, img)
		}
	}
	return out
}
