// Package extract は生成サービスの自由形式レスポンスからの抽出処理を提供する。
//
// 本文ドキュメントの正規化と、構造化JSONペイロードの取り出しの2系統。
// どちらも不正な入力に対してpanicや例外的失敗をせず、
// 型付きのフォールバック結果に縮退する。
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// rawPrefixLimit はパース失敗時に保持する元レスポンスの最大長。
// 人間の診断に十分な範囲に制限する。
const rawPrefixLimit = 2000

var (
	// 行頭のコードフェンス開始（言語ラベルつきを含む）と終了。
	fenceOpenPattern  = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*\r?\n?")
	fenceClosePattern = regexp.MustCompile("(?m)^```[ \t]*$")
	// ラベルつきフェンスブロックの内側を取り出す。
	labeledFencePattern = regexp.MustCompile("(?s)```(?:json|JSON)[ \t]*\r?\n(.*?)```")

	docStartPattern = regexp.MustCompile(`(?i)<!doctype\s+html[^>]*>`)
	docEndPattern   = regexp.MustCompile(`(?i)</html>`)
)

// ParseFailure は構造化レスポンスの抽出失敗を表す型付きエラー。
// 元レスポンスの先頭部分を診断用に保持する。
type ParseFailure struct {
	RawPrefix string
}

// Error はerrorインターフェースを実装する。
func (e *ParseFailure) Error() string {
	return fmt.Sprintf("構造化レスポンスの抽出に失敗しました (raw %d bytes保持)", len(e.RawPrefix))
}

// RawPrefix は診断用に保持する元テキストの先頭部分を返す。
func RawPrefix(raw string) string {
	if len(raw) > rawPrefixLimit {
		return raw[:rawPrefixLimit]
	}
	return raw
}

// StripFences はテキスト中のマークダウンコードフェンス行を除去する。
func StripFences(raw string) string {
	s := fenceOpenPattern.ReplaceAllString(raw, "")
	s = fenceClosePattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Document は生成レスポンスから完結したHTMLドキュメントを正規化して取り出す。
//
// フェンスを除去したうえで、最初のドキュメント開始マーカーから
// 最後の終了マーカーまで（大文字小文字は区別しない）を抽出する。
// マーカーが見つからない場合はフェンス除去後の全文にフォールバックする。
func Document(raw string) string {
	s := StripFences(raw)

	start := docStartPattern.FindStringIndex(s)
	if start == nil {
		return s
	}
	ends := docEndPattern.FindAllStringIndex(s, -1)
	if len(ends) == 0 {
		return s
	}
	last := ends[len(ends)-1]
	if last[1] <= start[0] {
		return s
	}
	return s[start[0]:last[1]]
}

// JSON は自由形式テキストからJSONオブジェクトを取り出し、vへデコードする。
//
// 戦略を順に試し、最初に成功したものを採用する:
//  1. jsonラベルつきフェンスブロックの内側をパースする
//  2. 最初の「{」から最後の「}」までの部分文字列をパースする（前後の散文を許容）
//  3. フェンスマーカーをすべて除去した残り全体をパースする
//
// すべて失敗した場合は*ParseFailureを返す。この境界を越えてpanicしない。
func JSON(raw string, v any) error {
	for _, candidate := range candidates(raw) {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}
	return &ParseFailure{RawPrefix: RawPrefix(raw)}
}

// candidates は3戦略それぞれの候補文字列を順に返す。
func candidates(raw string) []string {
	var out []string

	if m := labeledFencePattern.FindStringSubmatch(raw); len(m) == 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}

	if open := strings.Index(raw, "{"); open >= 0 {
		if close := strings.LastIndex(raw, "}"); close > open {
			out = append(out, raw[open:close+1])
		}
	}

	out = append(out, StripFences(raw))
	return out
}
