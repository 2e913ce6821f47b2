package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AlertStatus はニュースアラートのライフサイクル状態を表す。
// 遷移は pending → generating → drafted の一方向で、errorのみ手動リトライで
// pendingに戻すことができる。
type AlertStatus string

const (
	// AlertStatusPending は人間の判断待ちの状態。
	AlertStatusPending AlertStatus = "pending"
	// AlertStatusGenerating はアラート起点の記事生成が実行中の状態。
	AlertStatusGenerating AlertStatus = "generating"
	// AlertStatusDrafted はアラート起点の記事がドラフト化された状態。
	AlertStatusDrafted AlertStatus = "drafted"
	// AlertStatusError は生成に失敗した状態。手動リトライまで終端。
	AlertStatusError AlertStatus = "error"
)

// Alert は検出された規制・ニュースイベントを表す。
// 人間が承認するとカスタム記事生成パイプラインの入力になる。
type Alert struct {
	AlertID        string
	Status         AlertStatus
	Headline       string
	Source         string
	Relevance      string
	Urgency        string
	SuggestedTitle string
	SuggestedSlug  string
	Cluster        string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AlertIDFor は見出しの内容ハッシュからアラートIDを導出する。
// 同じ見出しの再検出は同じIDになり、重複登録を防ぐ。
func AlertIDFor(headline string) string {
	sum := sha256.Sum256([]byte(headline))
	return hex.EncodeToString(sum[:8])
}
