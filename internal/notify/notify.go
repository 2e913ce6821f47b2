// Package notify はレビュー担当者へのメール通知を提供する。
//
// 配送はプロバイダ横断のフォールバック方式をとる。プライマリのHTTPS API
// プロバイダが失敗した場合はSMTPへ切り替え、呼び出し元には最終的な
// 成否のみを返す。通知の失敗はパイプラインを止めない（呼び出し元の責務）。
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/satoshiledger/ArticleAutomation/internal/render"
)

// Notifier は通知送信のインターフェース。
type Notifier interface {
	Send(ctx context.Context, email *render.Email) error
}

// Transport は単一プロバイダによる配送手段。
type Transport interface {
	// Name はログ用のプロバイダ名を返す。
	Name() string
	Send(ctx context.Context, email *render.Email) error
}

// Recorder は配送結果のメトリクス記録のインターフェース。
type Recorder interface {
	RecordNotifySuccess(provider string)
	RecordNotifyFailure()
}

// Gateway は複数のTransportを順に試すNotifierの実装。
type Gateway struct {
	transports []Transport
	logger     *slog.Logger
	recorder   Recorder
}

// NewGateway はGatewayを生成する。transportsは優先順に並べる。
func NewGateway(logger *slog.Logger, recorder Recorder, transports ...Transport) *Gateway {
	return &Gateway{transports: transports, logger: logger, recorder: recorder}
}

// Send は各プロバイダを順に試し、最初に成功した時点で終了する。
// すべて失敗した場合は各プロバイダのエラーをまとめて返す。
func (g *Gateway) Send(ctx context.Context, email *render.Email) error {
	if len(g.transports) == 0 {
		g.logger.Warn("通知プロバイダが設定されていません。通知をスキップします",
			slog.String("subject", email.Subject),
		)
		return nil
	}

	var errs []error
	for _, t := range g.transports {
		err := t.Send(ctx, email)
		if err == nil {
			g.logger.Info("通知を送信しました",
				slog.String("provider", t.Name()),
				slog.String("subject", email.Subject),
			)
			if g.recorder != nil {
				g.recorder.RecordNotifySuccess(t.Name())
			}
			return nil
		}
		g.logger.Warn("通知プロバイダが失敗しました。次のプロバイダを試します",
			slog.String("provider", t.Name()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
	}
	if g.recorder != nil {
		g.recorder.RecordNotifyFailure()
	}
	return errors.Join(errs...)
}

// Noop は何も送信しないNotifier。通知先未設定の構成で使う。
type Noop struct{}

// Send は何もしない。
func (Noop) Send(ctx context.Context, email *render.Email) error { return nil }
