// Package llm は外部生成サービスへの呼び出しとリトライ戦略を提供する。
//
// 生成サービスは不透明なテキスト補完サービスとして扱う。
// プロンプトの内容品質はビジネスポリシーであり、本パッケージの関心外。
package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/openai/openai-go"
)

// Request は生成サービスへの1リクエストを表す。
type Request struct {
	// System はロール/システム指示。
	System string
	// User はユーザーブリーフ本文。
	User string
	// Research はライブリサーチ（Web検索つきモデル）を要求するフラグ。
	// リサーチ用モデルが未設定の構成ではノーオペになる。
	Research bool
}

// Service は生成サービスのインターフェース。
// ブロッキング呼び出しのためcontextを受け取る。
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CallResult は生成サービス呼び出し結果の分類。
type CallResult int

const (
	// CallResultOK は呼び出し成功。
	CallResultOK CallResult = iota
	// CallResultRateLimited はレート制限系エラー。バックオフつきリトライの対象。
	CallResultRateLimited
	// CallResultPermanent はその他のAPIエラー。当該パスを中断する。
	CallResultPermanent
)

// ErrRetryExhausted はリトライ上限に達したことを示す。
// 呼び出し元は当該スラグの実行を中断する。完了済みパスの生成物は保持される。
var ErrRetryExhausted = errors.New("生成サービスのリトライ上限に達しました")

// Classify はエラーを呼び出し結果に分類する。
// HTTP 429および5xx系をレート制限系（リトライ対象）として扱う。
func Classify(err error) CallResult {
	if err == nil {
		return CallResultOK
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return CallResultRateLimited
		}
		return CallResultPermanent
	}
	return CallResultPermanent
}

// CalculateBackoff は試行回数に応じた線形バックオフ遅延を計算する。
// base=60秒のとき 60秒、120秒、180秒と増加する。
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt+1)
}
