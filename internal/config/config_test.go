package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQueueSizeRespectsWorkers(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d", cfg.JobQueueSize)
	}
}

func TestHTTPPortDefaultFormatting(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
}

func TestFileConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `meetings_dir: /srv/meetings
llm:
  chat_model: gpt-4o
  language: en
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MeetingsDir != "/srv/meetings" {
		t.Fatalf("expected meetings dir from file, got %s", cfg.MeetingsDir)
	}
	if cfg.LLM.ChatModel != "gpt-4o" {
		t.Fatalf("expected chat model from file, got %s", cfg.LLM.ChatModel)
	}
	if cfg.LLM.Language != "en" {
		t.Fatalf("expected language from file, got %s", cfg.LLM.Language)
	}
	if cfg.LLM.TranscribeModel != defaultTranscribeModel {
		t.Fatalf("expected default transcribe model, got %s", cfg.LLM.TranscribeModel)
	}
}

func TestEnvOverridesFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http_port: \"7000\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_PORT", "7001")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":7001" {
		t.Fatalf("expected env to win, got %s", cfg.HTTPPort)
	}
}

func TestStrictConfigRejectsMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("STRICT_CONFIG", "1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config in strict mode")
	}
}

func TestDefaultPromptMentionsDelimiter(t *testing.T) {
	llm := DefaultLLMConfig()
	if llm.SummaryPrompt == "" {
		t.Fatalf("expected a default summary prompt")
	}
	if got := MergeLLMConfig(llm, LLMConfig{ChatModel: " gpt-4.1 "}); got.ChatModel != "gpt-4.1" {
		t.Fatalf("expected trimmed override, got %q", got.ChatModel)
	}
}
