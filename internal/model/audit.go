package model

// 監査グレード。UNKNOWNは構造化レスポンスのパースに失敗した場合のフォールバック。
const (
	GradeA       = "A"
	GradeB       = "B"
	GradeC       = "C"
	GradeF       = "F"
	GradeUnknown = "UNKNOWN"
)

// AuditIssue は監査レポート内の個別の指摘事項を表す。
type AuditIssue struct {
	Severity       string `json:"severity"`
	Location       string `json:"location,omitempty"`
	Issue          string `json:"issue,omitempty"`
	Fix            string `json:"fix,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Suggestion     string `json:"suggestion,omitempty"`
	SourceToVerify string `json:"source_to_verify,omitempty"`
}

// Text は指摘の本文を返す。issue/recommendation/suggestionのうち最初に埋まっているもの。
func (i *AuditIssue) Text() string {
	if i.Issue != "" {
		return i.Issue
	}
	if i.Recommendation != "" {
		return i.Recommendation
	}
	return i.Suggestion
}

// SourceCheck は監査時に検証された出典の記録。
type SourceCheck struct {
	Claim  string `json:"claim"`
	Source string `json:"source"`
	Status string `json:"status"`
}

// AuditReport は敵対的レビューの構造化結果を表す。
//
// 修正パスの発動条件はCriticalIssuesが空でないことであり、
// OverallGradeやPublishReadyフラグではない（リストの内容が唯一の判定根拠）。
type AuditReport struct {
	OverallGrade   string        `json:"overall_grade"`
	PublishReady   bool          `json:"publish_ready"`
	CriticalIssues []AuditIssue  `json:"critical_issues"`
	Warnings       []AuditIssue  `json:"warnings"`
	Suggestions    []AuditIssue  `json:"suggestions"`
	SourcesChecked []SourceCheck `json:"sources_verified,omitempty"`
	// RawResponse はパース失敗時のみ、元レスポンスの先頭部分を保持する。
	RawResponse string `json:"raw_response,omitempty"`
}

// HasCritical は修正パスを発動すべきかを返す。
func (a *AuditReport) HasCritical() bool {
	return len(a.CriticalIssues) > 0
}

// FallbackAuditReport はパース不能な監査レスポンスに対する定型レポートを生成する。
// パイプラインは不正なレスポンスで停止してはならないため、
// UNKNOWNグレード・publish_ready=false・合成された指摘1件に縮退させる。
func FallbackAuditReport(raw string) *AuditReport {
	return &AuditReport{
		OverallGrade: GradeUnknown,
		PublishReady: false,
		CriticalIssues: []AuditIssue{
			{
				Severity: "CRITICAL",
				Issue:    "監査レスポンスが有効なJSONではありません。手動レビューが必要です。",
			},
		},
		Warnings:    []AuditIssue{},
		Suggestions: []AuditIssue{},
		RawResponse: raw,
	}
}

// SocialEmail はニュースレター用の派生コンテンツ。
type SocialEmail struct {
	Subject string `json:"subject"`
	Preview string `json:"preview"`
	Body    string `json:"body"`
}

// SocialContent はブログ記事から生成するSNS派生コンテンツ一式を表す。
// 生成は本パイプラインのベストエフォートな追加パスであり、
// パース失敗時はErrorとRawのみが埋まったプレースホルダに縮退する。
type SocialContent struct {
	LinkedIn        string      `json:"linkedin,omitempty"`
	TwitterThread   []string    `json:"twitter_thread,omitempty"`
	Email           SocialEmail `json:"email,omitempty"`
	InstagramSlides []string    `json:"instagram_slides,omitempty"`
	Error           string      `json:"error,omitempty"`
	Raw             string      `json:"raw,omitempty"`
}
