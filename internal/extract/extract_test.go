package extract

import (
	"errors"
	"strings"
	"testing"
)

// TestDocument_StripsFences はフェンスで包まれたHTMLの正規化をテストする。
func TestDocument_StripsFences(t *testing.T) {
	raw := "```html\n<!DOCTYPE html>\n<html><body>hi</body></html>\n```"
	got := Document(raw)

	if strings.Contains(got, "```") {
		t.Errorf("フェンスが残っている: %q", got)
	}
	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("ドキュメントは<!DOCTYPE html>から始まるべき: %q", got)
	}
	if !strings.HasSuffix(got, "</html>") {
		t.Errorf("ドキュメント末尾 = %q, want </html>で終わる", got)
	}
}

// TestDocument_TrimsSurroundingProse はマーカー前後の散文が除去されることをテストする。
func TestDocument_TrimsSurroundingProse(t *testing.T) {
	raw := "Here is your article:\n\n<!doctype html>\n<html><body>doc</body></html>\n\nLet me know if you need changes."
	got := Document(raw)

	if strings.Contains(got, "Here is your article") {
		t.Errorf("前置きの散文が残っている: %q", got)
	}
	if strings.Contains(got, "Let me know") {
		t.Errorf("後置きの散文が残っている: %q", got)
	}
	if !strings.Contains(got, "<body>doc</body>") {
		t.Errorf("本文が失われた: %q", got)
	}
}

// TestDocument_NoMarkers_Fallback はマーカーなしの入力が全文フォールバックに
// なることをテストする。
func TestDocument_NoMarkers_Fallback(t *testing.T) {
	raw := "<div>fragment without document markers</div>"
	got := Document(raw)
	if got != raw {
		t.Errorf("Document() = %q, want 入力のまま", got)
	}
}

// TestDocument_UsesLastEndMarker は</html>が複数現れる場合に最後のものを
// 採用することをテストする（本文中のコード例を途中で切らない）。
func TestDocument_UsesLastEndMarker(t *testing.T) {
	raw := "<!DOCTYPE html>\n<html><body><pre></html></pre>\nmore content</html>"
	got := Document(raw)
	if !strings.HasSuffix(got, "more content</html>") {
		t.Errorf("最後の終了マーカーまで含むべき: %q", got)
	}
}

// TestJSON_LabeledFence はjsonラベルつきフェンスブロックの抽出をテストする。
func TestJSON_LabeledFence(t *testing.T) {
	raw := "Here is the report:\n```json\n{\"overall_grade\": \"A\"}\n```\nDone."
	var v struct {
		OverallGrade string `json:"overall_grade"`
	}
	if err := JSON(raw, &v); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if v.OverallGrade != "A" {
		t.Errorf("OverallGrade = %q, want %q", v.OverallGrade, "A")
	}
}

// TestJSON_BareObject は散文に埋め込まれた裸のJSONオブジェクトの抽出をテストする。
func TestJSON_BareObject(t *testing.T) {
	raw := `The triage result is {"no_alerts": true, "alerts": []} as requested.`
	var v struct {
		NoAlerts bool `json:"no_alerts"`
	}
	if err := JSON(raw, &v); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !v.NoAlerts {
		t.Error("NoAlerts = false, want true")
	}
}

// TestJSON_UnlabeledFence はラベルなしフェンス内のJSONの抽出をテストする。
func TestJSON_UnlabeledFence(t *testing.T) {
	raw := "```\n{\"linkedin\": \"post text\"}\n```"
	var v struct {
		LinkedIn string `json:"linkedin"`
	}
	if err := JSON(raw, &v); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if v.LinkedIn != "post text" {
		t.Errorf("LinkedIn = %q, want %q", v.LinkedIn, "post text")
	}
}

// TestJSON_ParseFailure は抽出不能な入力が*ParseFailureを返し、
// 空文字列を含むどの入力でもpanicしないことをテストする。
func TestJSON_ParseFailure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "I could not produce the report, sorry."},
		{"empty", ""},
		{"whitespace only", "  \n\t  "},
		{"unbalanced braces", "result: {"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]any
			err := JSON(tt.raw, &v)
			if err == nil {
				t.Fatal("JSON() error = nil, want *ParseFailure")
			}

			var pf *ParseFailure
			if !errors.As(err, &pf) {
				t.Fatalf("error型 = %T, want *ParseFailure", err)
			}
		})
	}
}

// TestJSON_ParseFailureKeepsRawPrefix は失敗時に元テキストの先頭が保持されることをテストする。
func TestJSON_ParseFailureKeepsRawPrefix(t *testing.T) {
	var v map[string]any
	err := JSON("I could not produce the report, sorry.", &v)

	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("error型 = %T, want *ParseFailure", err)
	}
	if !strings.Contains(pf.RawPrefix, "could not produce") {
		t.Errorf("RawPrefixに元テキストが保持されるべき: %q", pf.RawPrefix)
	}
}

// TestRawPrefix_Truncates は長い入力の先頭のみ保持されることをテストする。
func TestRawPrefix_Truncates(t *testing.T) {
	long := strings.Repeat("x", 5000)
	got := RawPrefix(long)
	if len(got) != 2000 {
		t.Errorf("len(RawPrefix) = %d, want 2000", len(got))
	}
}

// TestStripFences_PreservesInlineBackticks は行頭以外のバッククォートが
// 保持されることをテストする。
func TestStripFences_PreservesInlineBackticks(t *testing.T) {
	raw := "use `code` inline"
	if got := StripFences(raw); got != raw {
		t.Errorf("StripFences(%q) = %q, want 入力のまま", raw, got)
	}
}
