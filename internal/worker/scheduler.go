// Package worker は生成パイプラインとニュースモニターの定期実行を提供する。
package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// PipelineRunner はスケジュール実行するパイプラインのインターフェース。
type PipelineRunner interface {
	// RunScheduled は指定日時が生成曜日なら次の未生成記事のパイプラインを実行する。
	RunScheduled(ctx context.Context, now time.Time, generateDays []string) error
}

// MonitorRunner はスケジュール実行するニュースモニターのインターフェース。
type MonitorRunner interface {
	// Scan はフィードを巡回しアラートを検出する。
	Scan(ctx context.Context) error
}

// Scheduler はブログ生成とニュースモニターを時刻ベースで起動する。
// 1分間隔のティッカーでUTC時刻を確認し、生成曜日の生成時刻に
// パイプラインを、毎日のモニター時刻にスキャンを実行する。
// 同じ時間帯の重複起動は最終実行時刻で抑止する。
type Scheduler struct {
	pipeline     PipelineRunner
	monitor      MonitorRunner
	logger       *slog.Logger
	generateDays []string
	generateHour int
	monitorHour  int

	now func() time.Time

	lastGenerate time.Time
	lastMonitor  time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// monitorがnilの場合はニュースモニターの定期実行をスキップする。
func NewScheduler(
	pipeline PipelineRunner,
	monitor MonitorRunner,
	logger *slog.Logger,
	generateDays []string,
	generateHour int,
	monitorHour int,
) *Scheduler {
	return &Scheduler{
		pipeline:     pipeline,
		monitor:      monitor,
		logger:       logger,
		generateDays: generateDays,
		generateHour: generateHour,
		monitorHour:  monitorHour,
		now:          time.Now,
	}
}

// Start は1分間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("スケジューラを開始しました",
		slog.String("generate_days", strings.Join(s.generateDays, ",")),
		slog.Int("generate_hour_utc", s.generateHour),
		slog.Int("monitor_hour_utc", s.monitorHour),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スケジューラを停止しました")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick は現在時刻を確認し、実行時刻に達したジョブを起動する。
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	if now.Hour() == s.generateHour && !sameHour(s.lastGenerate, now) {
		s.lastGenerate = now
		s.runGenerate(ctx, now)
	}

	if s.monitor != nil && now.Hour() == s.monitorHour && !sameHour(s.lastMonitor, now) {
		s.lastMonitor = now
		s.runMonitor(ctx)
	}
}

// runGenerate はスケジュールされたブログ生成を実行する。
// 生成曜日の判定はパイプライン側で行う。
func (s *Scheduler) runGenerate(ctx context.Context, now time.Time) {
	start := s.now()
	if err := s.pipeline.RunScheduled(ctx, now, s.generateDays); err != nil {
		s.logger.Error("スケジュール生成の実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("スケジュール生成が完了しました",
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
}

// runMonitor はニュースモニターのスキャンを実行する。
func (s *Scheduler) runMonitor(ctx context.Context) {
	start := s.now()
	if err := s.monitor.Scan(ctx); err != nil {
		s.logger.Error("ニュースモニターのスキャンに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("ニュースモニターのスキャンが完了しました",
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
}

// sameHour は2つの時刻が同じ日の同じ時間帯かを判定する。
func sameHour(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd && a.Hour() == b.Hour()
}
