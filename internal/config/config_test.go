package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Language != "zh-CN" {
		t.Fatalf("expected default language zh-CN, got %q", cfg.Speech.Language)
	}
	if cfg.Speech.Configured() {
		t.Fatal("expected speech to be unconfigured by default")
	}
	if !cfg.Transcode.Enabled || cfg.Transcode.Command != "ffmpeg" {
		t.Fatalf("unexpected transcode defaults: %+v", cfg.Transcode)
	}
	if cfg.Bus.Enabled {
		t.Fatal("expected bus disabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", "test-key")
	t.Setenv("AZURE_SPEECH_REGION", "westus3")
	t.Setenv("TONETUTOR_SPEECH_LANGUAGE", "zh-TW")
	t.Setenv("TONETUTOR_HTTP_PORT", "9000")
	t.Setenv("TONETUTOR_TRANSCODE_ENABLED", "false")
	t.Setenv("TONETUTOR_BUS_ENABLED", "true")
	t.Setenv("TONETUTOR_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("TONETUTOR_HISTORY_PATH", "./tmp.db")
	t.Setenv("TONETUTOR_HISTORY_RETENTION_MODE", "ephemeral")
	t.Setenv("TONETUTOR_HISTORY_RETENTION_DAYS", "7")
	t.Setenv("TONETUTOR_HISTORY_MAX_ATTEMPTS", "123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Speech.Configured() {
		t.Fatal("expected speech configured after env overrides")
	}
	if cfg.Speech.Region != "westus3" {
		t.Fatalf("expected region override, got %q", cfg.Speech.Region)
	}
	if cfg.Speech.Language != "zh-TW" {
		t.Fatalf("expected language override, got %q", cfg.Speech.Language)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Transcode.Enabled {
		t.Fatal("expected transcode disabled override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.History.Path != "./tmp.db" {
		t.Fatalf("expected history path override")
	}
	if cfg.History.RetentionMode != "ephemeral" {
		t.Fatalf("expected retention mode override")
	}
	if cfg.History.RetentionDays != 7 {
		t.Fatalf("expected retention days override")
	}
	if cfg.History.MaxAttempts != 123 {
		t.Fatalf("expected max attempts override")
	}
}

func TestValidateRejectsBadRetentionMode(t *testing.T) {
	t.Setenv("TONETUTOR_HISTORY_RETENTION_MODE", "forever")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for bad retention mode")
	}
}
