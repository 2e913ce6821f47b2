package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satoshiledger/ArticleAutomation/internal/calendar"
	"github.com/satoshiledger/ArticleAutomation/internal/config"
	"github.com/satoshiledger/ArticleAutomation/internal/database"
	"github.com/satoshiledger/ArticleAutomation/internal/handler"
	"github.com/satoshiledger/ArticleAutomation/internal/images"
	"github.com/satoshiledger/ArticleAutomation/internal/llm"
	"github.com/satoshiledger/ArticleAutomation/internal/logger"
	"github.com/satoshiledger/ArticleAutomation/internal/metrics"
	"github.com/satoshiledger/ArticleAutomation/internal/middleware"
	"github.com/satoshiledger/ArticleAutomation/internal/model"
	"github.com/satoshiledger/ArticleAutomation/internal/monitor"
	"github.com/satoshiledger/ArticleAutomation/internal/notify"
	"github.com/satoshiledger/ArticleAutomation/internal/pipeline"
	"github.com/satoshiledger/ArticleAutomation/internal/publish"
	"github.com/satoshiledger/ArticleAutomation/internal/render"
	"github.com/satoshiledger/ArticleAutomation/internal/repository"
	"github.com/satoshiledger/ArticleAutomation/internal/review"
	"github.com/satoshiledger/ArticleAutomation/internal/security"
	"github.com/satoshiledger/ArticleAutomation/internal/store"
	"github.com/satoshiledger/ArticleAutomation/internal/worker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("site_url", cfg.SiteURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandScheduled:
		return runScheduled(cfg)
	case CommandMonitor:
		return runMonitor(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// container は全コンポーネントをワイヤリングした依存一式。
type container struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	collector *metrics.Collector
	calendar  *model.Calendar
	states    repository.PostStateRepository
	alerts    repository.AlertRepository
	store     *store.FileStore
	pipeline  *pipeline.Pipeline
	monitor   *monitor.Monitor
	review    *review.Service

	close func()
}

// build はDB接続を開き、全コンポーネントをワイヤリングする。
// 返り値のcloseでDB接続を解放する。
func build(cfg *config.Config) (*container, error) {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. コンテンツ定義の読み込み
	cal, err := calendar.Load(cfg.CalendarPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load content calendar: %w", err)
	}

	pool, err := images.LoadPool(cfg.ImagePoolPath)
	if err != nil {
		// 画像プールなしでも動作する（セレクタがクラスタ内の既定にフォールバックする）
		slog.Warn("ヒーロー画像プールの読み込みに失敗しました。画像なしで続行します",
			slog.String("path", cfg.ImagePoolPath),
			slog.String("error", err.Error()),
		)
		pool = nil
	}

	// 3. メトリクスコレクタ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリと生成物ストア
	states := repository.NewPostgresPostStateRepo(db)
	alerts := repository.NewPostgresAlertRepo(db)

	fileStore, err := store.New(cfg.DraftsDir, cfg.ApprovedDir, cfg.PregeneratedDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	// 5. 生成サービスクライアント
	llmClient, err := llm.NewClient(llm.ClientConfig{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.Model,
		ResearchModel: cfg.ResearchModel,
		MaxRetries:    cfg.LLMMaxRetries,
		RetryBackoff:  cfg.LLMRetryBackoff,
		OnRetry:       collector.RecordLLMRetry,
	}, slog.Default())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	// 6. レンダラーと通知ゲートウェイ
	renderer := render.New(cfg.SiteURL, cfg.DashboardURL)
	notifier := buildNotifier(cfg, collector)

	// 7. 公開先シンク
	publisher, err := buildPublisher(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	// 8. パイプライン
	pipe := pipeline.New(pipeline.Deps{
		LLM:           llmClient,
		Store:         fileStore,
		States:        states,
		Renderer:      renderer,
		Notifier:      notifier,
		Metrics:       collector,
		Calendar:      cal,
		ImagePool:     pool,
		Logger:        slog.Default(),
		SiteURL:       cfg.SiteURL,
		Cooldown:      cfg.PassCooldown,
		SocialEnabled: cfg.SocialPassEnabled,
	})

	// 9. ニュースモニター
	mon := monitor.New(monitor.Deps{
		Feeds:    cfg.MonitorFeeds,
		LLM:      llmClient,
		Alerts:   alerts,
		Notifier: notifier,
		Renderer: renderer,
		Guard:    security.NewSSRFGuard(),
		Metrics:  collector,
		Calendar: cal,
		Logger:   slog.Default(),
		MaxItems: cfg.MonitorMaxItems,
		Lookback: cfg.MonitorLookback,
	})

	// 10. レビューサービス
	reviewSvc := review.NewService(review.Deps{
		Store:     fileStore,
		States:    states,
		Alerts:    alerts,
		Publisher: publisher,
		Pipeline:  pipe,
		Renderer:  renderer,
		Notifier:  notifier,
		Metrics:   collector,
		Calendar:  cal,
		Logger:    slog.Default(),
	})

	return &container{
		cfg:       cfg,
		registry:  registry,
		collector: collector,
		calendar:  cal,
		states:    states,
		alerts:    alerts,
		store:     fileStore,
		pipeline:  pipe,
		monitor:   mon,
		review:    reviewSvc,
		close:     func() { db.Close() },
	}, nil
}

// buildNotifier は設定済みのプロバイダを優先順に並べた通知ゲートウェイを返す。
// Resend APIキーがあればプライマリ、SMTP認証情報があればフォールバック。
// どちらも未設定の場合は通知をスキップするゲートウェイになる。
func buildNotifier(cfg *config.Config, collector *metrics.Collector) notify.Notifier {
	var transports []notify.Transport

	if cfg.ResendAPIKey != "" && cfg.NotifyEmail != "" {
		transports = append(transports, notify.NewResendTransport(notify.ResendConfig{
			APIKey: cfg.ResendAPIKey,
			APIURL: cfg.ResendAPIURL,
			From:   cfg.FromEmail,
			To:     cfg.NotifyEmail,
		}))
	}

	if cfg.SMTPUser != "" && cfg.SMTPPassword != "" && cfg.NotifyEmail != "" {
		transports = append(transports, notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
			To:       cfg.NotifyEmail,
		}))
	}

	return notify.NewGateway(slog.Default(), collector, transports...)
}

// buildPublisher はGitHub公開シンクつきのPublisherを返す。
// リポジトリ未設定の場合は公開時にエラーを返すPublisherになる
// （記事は承認済みストアに残り、設定後にrepushで公開できる）。
func buildPublisher(cfg *config.Config) (*publish.Publisher, error) {
	if cfg.GitHubRepo == "" || cfg.GitHubToken == "" {
		slog.Warn("公開先リポジトリが設定されていません。承認記事はローカルに留まります")
		return publish.NewPublisher(nil, slog.Default()), nil
	}

	sink, err := publish.NewGitHubSink(cfg.GitHubRepo, cfg.GitHubToken, cfg.GitHubBranch, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publish sink: %w", err)
	}
	return publish.NewPublisher(sink, slog.Default()), nil
}

// runServe はレビューダッシュボードのサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.TriggerRateLimit),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		ReviewService: c.review,
		Pipeline:      c.pipeline,
		Monitor:       c.monitor,
		RateLimiter:   rateLimiter,
		Calendar:      c.calendar,
		Metrics:       metrics.SetupMetricsRoute(c.registry),
		Logger:        slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("dashboard server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down dashboard server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("dashboard server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 生成曜日の生成時刻にパイプラインを、毎日のモニター時刻にスキャンを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	scheduler := worker.NewScheduler(
		c.pipeline, c.monitor, slog.Default(),
		cfg.GenerateDays, cfg.GenerateHour, cfg.MonitorHour,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ワーカーモードのHTTP面はメトリクスとヘルスチェックのみ
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}()

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runScheduled はスケジュール生成を1回だけ実行する。
// 本日が生成曜日でない場合やスロットが残っていない場合は何もせず正常終了する。
func runScheduled(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return c.pipeline.RunScheduled(ctx, time.Now().UTC(), cfg.GenerateDays)
}

// runMonitor はニュースモニターのスキャンを1回だけ実行する。
func runMonitor(cfg *config.Config) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return c.monitor.Scan(ctx)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
