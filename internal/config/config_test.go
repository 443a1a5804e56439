package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PUBLISHER", "AUTO_START",
		"SMTP_HOST", "SMTP_PORT", "SMTP_CLAIM_TLS", "SMTP_WRAP_TLS",
		"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
		"SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY",
		"SES_SENDER", "SES_RECIPIENT",
		"TLS_CERT_FILE", "TLS_KEY_FILE", "LOG_LEVEL",
	}
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SMTP.Host != "" {
		t.Errorf("SMTP.Host: got %q, want empty", cfg.SMTP.Host)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP.Port: got %d, want 2525", cfg.SMTP.Port)
	}
	if cfg.SMTP.ClaimTLS {
		t.Error("SMTP.ClaimTLS: got true, want false")
	}
	if cfg.Telegram.Token != "" {
		t.Errorf("Telegram.Token: got %q, want empty", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if !cfg.AutoStart {
		t.Error("AutoStart: got false, want true")
	}
	if cfg.Publisher != "" {
		t.Errorf("Publisher: got %q, want empty", cfg.Publisher)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_HOST", "127.0.0.1")
	t.Setenv("SMTP_PORT", "2526")
	t.Setenv("SMTP_CLAIM_TLS", "true")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("PUBLISHER", "Telegram")
	t.Setenv("AUTO_START", "no")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SMTP.Host != "127.0.0.1" {
		t.Errorf("SMTP.Host: got %q, want %q", cfg.SMTP.Host, "127.0.0.1")
	}
	if cfg.SMTP.Port != 2526 {
		t.Errorf("SMTP.Port: got %d, want 2526", cfg.SMTP.Port)
	}
	if !cfg.SMTP.ClaimTLS {
		t.Error("SMTP.ClaimTLS: got false, want true")
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Telegram.Token: got %q, want %q", cfg.Telegram.Token, "123:abc")
	}
	if cfg.Publisher != "telegram" {
		t.Errorf("Publisher: got %q, want %q", cfg.Publisher, "telegram")
	}
	if cfg.AutoStart {
		t.Error("AutoStart: got true, want false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadFromFile_YAMLBase(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
smtp:
  host: 0.0.0.0
  port: 25
  claim_tls: true
telegram:
  token: "999:zzz"
  chat_id: "42"
logging:
  level: warn
auto_start: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:25" {
		t.Errorf("Addr: got %q, want %q", cfg.Addr(), "0.0.0.0:25")
	}
	if !cfg.SMTP.ClaimTLS {
		t.Error("SMTP.ClaimTLS: got false, want true")
	}
	if !cfg.TelegramConfigured() {
		t.Error("TelegramConfigured: got false, want true")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.AutoStart {
		t.Error("AutoStart: got true, want false")
	}
}

func TestLoadFromFile_EnvWinsOverYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_PORT", "1025")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("smtp:\n  port: 25\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SMTP.Port != 1025 {
		t.Errorf("SMTP.Port: got %d, want 1025 (env should win)", cfg.SMTP.Port)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestSESConfigured(t *testing.T) {
	clearEnv(t)

	cfg, _ := Load()
	if cfg.SESConfigured() {
		t.Error("SESConfigured on empty config: got true, want false")
	}

	cfg.SES.Region = "eu-central-1"
	cfg.SES.Sender = "bridge@example.com"
	cfg.SES.Recipient = "reports@example.com"
	if !cfg.SESConfigured() {
		t.Error("SESConfigured with all fields: got false, want true")
	}
}
