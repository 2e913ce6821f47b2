package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/openai/openai-go"
)

// TestClassify_NilError は成功がCallResultOKになることをテストする。
func TestClassify_NilError(t *testing.T) {
	if got := Classify(nil); got != CallResultOK {
		t.Errorf("Classify(nil) = %v, want CallResultOK", got)
	}
}

// TestClassify_RateLimited は429と5xxがリトライ対象に分類されることをテストする。
func TestClassify_RateLimited(t *testing.T) {
	for _, status := range []int{429, 500, 503, 529} {
		err := &openai.Error{StatusCode: status}
		if got := Classify(err); got != CallResultRateLimited {
			t.Errorf("Classify(status %d) = %v, want CallResultRateLimited", status, got)
		}
	}
}

// TestClassify_Permanent は4xx系（429以外）が恒久エラーに分類されることをテストする。
func TestClassify_Permanent(t *testing.T) {
	for _, status := range []int{400, 401, 404, 422} {
		err := &openai.Error{StatusCode: status}
		if got := Classify(err); got != CallResultPermanent {
			t.Errorf("Classify(status %d) = %v, want CallResultPermanent", status, got)
		}
	}
}

// TestClassify_WrappedAPIError はラップされたAPIエラーも分類されることをテストする。
func TestClassify_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("呼び出しに失敗しました: %w", &openai.Error{StatusCode: 429})
	if got := Classify(err); got != CallResultRateLimited {
		t.Errorf("Classify(wrapped 429) = %v, want CallResultRateLimited", got)
	}
}

// TestClassify_NonAPIError はAPIエラー以外が恒久エラーに分類されることをテストする。
func TestClassify_NonAPIError(t *testing.T) {
	if got := Classify(errors.New("network down")); got != CallResultPermanent {
		t.Errorf("Classify(plain error) = %v, want CallResultPermanent", got)
	}
}

// TestCalculateBackoff_Linear は線形バックオフの増加をテストする。
func TestCalculateBackoff_Linear(t *testing.T) {
	base := 60 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 60 * time.Second},
		{1, 120 * time.Second},
		{2, 180 * time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(base, tt.attempt); got != tt.want {
			t.Errorf("CalculateBackoff(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}
}

// TestNewClient_RequiresAPIKey はAPIキー未設定がエラーになることをテストする。
func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{Model: "gpt-4o"}, nil)
	if err == nil {
		t.Fatal("APIキー未設定でエラーになるべき")
	}
}

// TestNewClient_RequiresModel はモデル未設定がエラーになることをテストする。
func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(ClientConfig{APIKey: "sk-test"}, nil)
	if err == nil {
		t.Fatal("モデル未設定でエラーになるべき")
	}
}
