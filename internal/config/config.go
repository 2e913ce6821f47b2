package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// グローバル状態は持たず、各コンポーネントへ明示的に渡す。
type Config struct {
	// Database
	DatabaseURL string

	// 生成サービス（OpenAI互換API）
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	// ResearchModel はWeb検索つきリサーチが必要なパスで使うモデル。
	// 未設定の場合はModelをそのまま使い、リサーチフラグは無効化される。
	ResearchModel string

	// 生成サービスのリトライ/ペーシング
	// レート制限系エラーはLLMRetryBackoff, 2倍, 3倍…の線形バックオフで最大LLMMaxRetries回リトライする。
	LLMMaxRetries   int
	LLMRetryBackoff time.Duration
	// PassCooldown はパイプラインの主要パス間に挟む冷却時間。
	// 共有レート予算を守るためのペーシングであり、0でノーオペになる。
	PassCooldown time.Duration

	// コンテンツ定義
	CalendarPath  string
	ImagePoolPath string

	// 生成物ストア
	DraftsDir       string
	ApprovedDir     string
	PregeneratedDir string

	// 公開先（GitHubリポジトリ "owner/name"）
	GitHubRepo   string
	GitHubToken  string
	GitHubBranch string
	SiteURL      string

	// 通知
	NotifyEmail  string
	FromEmail    string
	ResendAPIKey string
	ResendAPIURL string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	DashboardURL string

	// ニュースモニタ
	MonitorFeeds    []string
	MonitorMaxItems int
	MonitorLookback time.Duration

	// スケジューラ（UTC時刻）
	GenerateDays []string
	GenerateHour int
	MonitorHour  int

	// SNS派生パスのグローバルスイッチ（コスト制御ポリシー）
	SocialPassEnabled bool

	// Server
	ServerPort string

	// トリガーエンドポイントのレート制限（req/min/IP）
	TriggerRateLimit int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.Model = getEnvString("LLM_MODEL", "gpt-4o")
	cfg.ResearchModel = getEnvString("LLM_RESEARCH_MODEL", "")
	cfg.LLMMaxRetries = getEnvInt("LLM_MAX_RETRIES", 3)
	cfg.LLMRetryBackoff = getEnvDuration("LLM_RETRY_BACKOFF", 60*time.Second)
	cfg.PassCooldown = getEnvDuration("PASS_COOLDOWN", 60*time.Second)

	cfg.CalendarPath = getEnvString("CALENDAR_PATH", "./content_calendar.yaml")
	cfg.ImagePoolPath = getEnvString("IMAGE_POOL_PATH", "./hero_images.yaml")
	cfg.DraftsDir = getEnvString("DRAFTS_DIR", "./drafts")
	cfg.ApprovedDir = getEnvString("APPROVED_DIR", "./approved")
	cfg.PregeneratedDir = getEnvString("PREGENERATED_DIR", "./pregenerated")

	cfg.GitHubRepo = getEnvString("GITHUB_REPO", "")
	cfg.GitHubToken = getEnvString("GITHUB_TOKEN", "")
	cfg.GitHubBranch = getEnvString("GITHUB_BRANCH", "main")
	cfg.SiteURL = getEnvString("SITE_URL", "https://puertoricollc.com")

	cfg.NotifyEmail = getEnvString("NOTIFY_EMAIL", "")
	cfg.FromEmail = getEnvString("FROM_EMAIL", cfg.NotifyEmail)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	cfg.ResendAPIURL = getEnvString("RESEND_API_URL", "https://api.resend.com/emails")
	cfg.SMTPHost = getEnvString("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort = getEnvString("SMTP_PORT", "587")
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.DashboardURL = getEnvString("DASHBOARD_URL", "http://localhost:8080")

	cfg.MonitorFeeds = getEnvList("MONITOR_FEEDS")
	cfg.MonitorMaxItems = getEnvInt("MONITOR_MAX_ITEMS", 50)
	cfg.MonitorLookback = getEnvDuration("MONITOR_LOOKBACK", 7*24*time.Hour)

	cfg.GenerateDays = getEnvListDefault("GENERATE_DAYS", []string{"monday", "wednesday", "friday"})
	cfg.GenerateHour = getEnvInt("GENERATE_HOUR_UTC", 12)
	cfg.MonitorHour = getEnvInt("MONITOR_HOUR_UTC", 10)

	cfg.SocialPassEnabled = getEnvBool("SOCIAL_PASS_ENABLED", true)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TriggerRateLimit = getEnvInt("TRIGGER_RATE_LIMIT", 6)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvListDefault(key string, defaultVal []string) []string {
	if list := getEnvList(key); list != nil {
		return list
	}
	return defaultVal
}
