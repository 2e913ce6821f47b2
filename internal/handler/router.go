package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/satoshiledger/ArticleAutomation/internal/middleware"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// レビュー操作
	ReviewService ReviewServiceInterface

	// パイプライン起動
	Pipeline PipelineTrigger

	// ニュースモニター起動
	Monitor MonitorTrigger

	// トリガールートのレート制限
	RateLimiter *middleware.RateLimiter

	// カレンダー定義（カスタム記事フォームのクラスタ選択肢）
	Calendar *model.Calendar

	// Prometheusメトリクスエンドポイント（nilの場合は公開しない）
	Metrics http.Handler

	Logger *slog.Logger
}

// NewRouter はダッシュボードの全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → SecurityHeadersMiddleware
//
// パイプラインを起動するトリガールートにはさらにレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	pages := NewDashboardHandler(deps.ReviewService, deps.Calendar, deps.Logger)
	actions := NewActionHandler(deps.ReviewService, deps.Pipeline, deps.Monitor, deps.Logger)

	// --- ページ表示 ---

	r.Get("/", pages.Dashboard)
	r.Get("/review/{slug}", pages.ReviewPage)
	r.Get("/preview/{slug}", pages.Preview)
	r.Get("/social/{slug}", pages.SocialPage)
	r.Get("/alerts", pages.AlertsPage)

	// --- レビュー操作 ---

	r.Post("/save/{slug}", actions.Save)
	r.Post("/approve/{slug}", actions.Approve)
	r.Post("/reject/{slug}", actions.Reject)
	r.Post("/reset/{slug}", actions.Reset)
	r.Post("/reset-all", actions.ResetAll)
	r.Post("/repush", actions.Repush)

	// --- 生成トリガー（レート制限付き） ---

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.TriggerMiddleware())
		}
		r.Post("/trigger/blog", actions.TriggerBlog)
		r.Post("/trigger/custom", actions.TriggerCustom)
		r.Post("/trigger/news", actions.TriggerNews)
		r.Post("/generate-alert/{alertID}", actions.GenerateAlert)
	})

	// ヘルスチェック
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
