package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/render"
)

// ResendConfig はResend風HTTPS APIプロバイダの設定。
type ResendConfig struct {
	APIKey string
	// APIURL は送信エンドポイント。通常は https://api.resend.com/emails 。
	APIURL string
	From   string
	To     string
}

// ResendTransport はHTTPS JSON APIによるメール配送。
type ResendTransport struct {
	cfg    ResendConfig
	client *http.Client
}

// NewResendTransport はResendTransportを生成する。
func NewResendTransport(cfg ResendConfig) *ResendTransport {
	return &ResendTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name はプロバイダ名を返す。
func (t *ResendTransport) Name() string { return "resend" }

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// Send はメールをAPIへポストする。2xx以外はエラーとして扱う。
func (t *ResendTransport) Send(ctx context.Context, email *render.Email) error {
	body, err := json.Marshal(resendPayload{
		From:    t.cfg.From,
		To:      []string{t.cfg.To},
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("通知ペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("通知リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("通知APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("通知APIがエラーを返しました: status=%d body=%s", resp.StatusCode, detail)
	}
	return nil
}
