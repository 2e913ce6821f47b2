package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/satoshiledger/ArticleAutomation/internal/render"
)

// SMTPConfig はSMTPプロバイダの設定。
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	To       string
}

// SMTPTransport はSMTPによるメール配送。
// 設定ポート（通常587/STARTTLS）で失敗した場合は465の暗黙TLSへ
// フォールバックする。PaaS環境で発信ポートが絞られている場合への対処。
type SMTPTransport struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// NewSMTPTransport はSMTPTransportを生成する。
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, timeout: 30 * time.Second}
}

// Name はプロバイダ名を返す。
func (t *SMTPTransport) Name() string { return "smtp" }

// Send はメールを送信する。
func (t *SMTPTransport) Send(ctx context.Context, email *render.Email) error {
	msg := t.buildMessage(email)

	err := t.sendSTARTTLS(ctx, t.cfg.Port, msg)
	if err == nil {
		return nil
	}
	if t.cfg.Port == "465" {
		return err
	}

	if tlsErr := t.sendImplicitTLS(ctx, "465", msg); tlsErr == nil {
		return nil
	}
	return fmt.Errorf("SMTP送信に失敗しました (port %s): %w", t.cfg.Port, err)
}

func (t *SMTPTransport) buildMessage(email *render.Email) []byte {
	boundary := "=_blogengine_alt"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", t.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", t.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.Text)
	b.WriteString("\r\n")

	if email.HTML != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(email.HTML)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// sendSTARTTLS は平文接続からSTARTTLSで暗号化する標準経路（通常587番）。
func (t *SMTPTransport) sendSTARTTLS(ctx context.Context, port string, msg []byte) error {
	addr := net.JoinHostPort(t.cfg.Host, port)
	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗しました: %w", err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPハンドシェイクに失敗しました: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return fmt.Errorf("STARTTLSに失敗しました: %w", err)
		}
	}
	return t.submit(client, msg)
}

// sendImplicitTLS は接続時からTLSの経路（465番）。
func (t *SMTPTransport) sendImplicitTLS(ctx context.Context, port string, msg []byte) error {
	addr := net.JoinHostPort(t.cfg.Host, port)
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout},
		Config:    &tls.Config{ServerName: t.cfg.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへのTLS接続に失敗しました: %w", err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPハンドシェイクに失敗しました: %w", err)
	}
	defer client.Close()

	return t.submit(client, msg)
}

func (t *SMTPTransport) submit(client *smtp.Client, msg []byte) error {
	if t.cfg.User != "" {
		auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP認証に失敗しました: %w", err)
		}
	}
	if err := client.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAILコマンドに失敗しました: %w", err)
	}
	if err := client.Rcpt(t.cfg.To); err != nil {
		return fmt.Errorf("SMTP RCPTコマンドに失敗しました: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATAコマンドに失敗しました: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("メール本文の送信に失敗しました: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("メール本文の確定に失敗しました: %w", err)
	}
	return client.Quit()
}
