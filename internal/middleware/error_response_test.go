package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

func TestWriteAPIError_MapsCodesToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "ドラフトなしは404", err: model.NewDraftNotFoundError("blog-x"), wantStatus: http.StatusNotFound, wantCode: model.ErrCodeDraftNotFound},
		{name: "アラートなしは404", err: model.NewAlertNotFoundError("abc"), wantStatus: http.StatusNotFound, wantCode: model.ErrCodeAlertNotFound},
		{name: "ロック競合は409", err: model.NewSlotLockedError("blog-x"), wantStatus: http.StatusConflict, wantCode: model.ErrCodeSlotLocked},
		{name: "不正スラグは400", err: model.NewInvalidSlugError(".."), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidSlug},
		{name: "未定義クラスタは400", err: model.NewUnknownClusterError("x"), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeUnknownCluster},
		{name: "公開失敗は502", err: model.NewPublishFailedError("blog-x", errors.New("boom")), wantStatus: http.StatusBadGateway, wantCode: model.ErrCodePublishFailed},
		{name: "一般エラーは500", err: errors.New("何かが壊れた"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.err)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Message == "" || body.Action == "" {
				t.Error("MessageとActionは空であってはならない")
			}
		})
	}
}

func TestWriteAPIError_WrappedAPIError(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), model.NewSlotLockedError("blog-x"))
	w := httptest.NewRecorder()
	WriteAPIError(w, wrapped)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, ラップされたAPIErrorも振り分けられるべき", w.Result().StatusCode)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want INTERNAL_ERROR", body.Code)
	}
	if body.Category != "system" {
		t.Errorf("Category = %q, want system", body.Category)
	}
}
