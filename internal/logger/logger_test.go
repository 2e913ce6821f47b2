package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestSetup_ReturnsJSONLogger はJSON形式のログが出力されることを検証する。
func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("slug", "blog-llc-guide"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["slug"] != "blog-llc-guide" {
		t.Errorf("slug = %q, want %q", entry["slug"], "blog-llc-guide")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %q, want INFO", entry["level"])
	}
}

// TestSetup_DefaultLevelSuppressesDebug はデフォルトレベルがinfoであることを検証する。
func TestSetup_DefaultLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("should be suppressed")

	if buf.Len() != 0 {
		t.Errorf("debugログはデフォルトで抑制されるべき: %s", buf.String())
	}
}

// TestSetup_LevelFromEnv はLOG_LEVELで最小レベルを変更できることを検証する。
func TestSetup_LevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("now visible")

	if buf.Len() == 0 {
		t.Error("LOG_LEVEL=debugのときdebugログは出力されるべき")
	}
}

// TestSetup_UnknownLevelFallsBackToInfo は不明なLOG_LEVELがinfoとして扱われることを検証する。
func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("suppressed")
	if buf.Len() != 0 {
		t.Error("不明なLOG_LEVELはinfoにフォールバックするべき")
	}

	l.Info("visible")
	if buf.Len() == 0 {
		t.Error("infoログは出力されるべき")
	}
}
