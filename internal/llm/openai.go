package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig はOpenAIクライアントの設定。
type ClientConfig struct {
	APIKey  string
	BaseURL string
	// Model は通常パスで使うモデル。
	Model string
	// ResearchModel はWeb検索つきリサーチが必要なパスで使うモデル。
	// 空の場合はModelで代用する。
	ResearchModel string
	// MaxRetries はレート制限系エラーに対する最大リトライ回数。
	MaxRetries int
	// RetryBackoff は線形バックオフの基準時間。
	RetryBackoff time.Duration
	// OnRetry はリトライ実行のたびに呼ばれるフック。メトリクス記録用。
	OnRetry func()
}

// Client はopenai-go SDKによるServiceの実装。
// レート制限系エラーに対して線形バックオフつきリトライを行う。
type Client struct {
	client        openai.Client
	model         string
	researchModel string
	maxRetries    int
	retryBackoff  time.Duration
	onRetry       func()
	logger        *slog.Logger
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("生成サービスのAPIキーが設定されていません")
	}
	if cfg.Model == "" {
		return nil, errors.New("生成サービスのモデルが設定されていません")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// リトライはこちらの方針（線形バックオフ+分類）で制御するためSDK側は無効化する
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 60 * time.Second
	}

	return &Client{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		researchModel: cfg.ResearchModel,
		maxRetries:    maxRetries,
		retryBackoff:  backoff,
		onRetry:       cfg.OnRetry,
		logger:        logger,
	}, nil
}

// Complete は生成サービスを呼び出し、レスポンス本文テキストを返す。
// レート制限系エラーは最大MaxRetries回まで線形バックオフでリトライし、
// 上限に達した場合はErrRetryExhaustedを返す。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := c.model
	if req.Research && c.researchModel != "" {
		model = c.researchModel
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, err := c.call(ctx, model, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		switch Classify(err) {
		case CallResultRateLimited:
			if attempt == c.maxRetries {
				c.logger.Error("生成サービスのリトライ上限に達しました",
					slog.Int("attempts", attempt+1),
					slog.String("error", err.Error()),
				)
				return "", errors.Join(ErrRetryExhausted, err)
			}
			if c.onRetry != nil {
				c.onRetry()
			}
			delay := CalculateBackoff(c.retryBackoff, attempt)
			c.logger.Warn("生成サービスがレート制限を返しました。バックオフ後にリトライします",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		default:
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) call(ctx context.Context, model string, req Request) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("生成サービスが空のレスポンスを返しました")
	}
	return resp.Choices[0].Message.Content, nil
}
