package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/auricle-dev/auricle/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should load with defaults, got: %v", err)
	}
	if cfg.Server.ListenAddr != "localhost:8000" {
		t.Errorf("default listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.API.Model != "gpt-4o-realtime-preview" {
		t.Errorf("default model = %q", cfg.API.Model)
	}
	if cfg.API.Voice != "alloy" {
		t.Errorf("default voice = %q", cfg.API.Voice)
	}
	if cfg.API.Temperature == nil || *cfg.API.Temperature != 0.6 {
		t.Errorf("default temperature = %v", cfg.API.Temperature)
	}
	if cfg.Orchestrator.Cooldown.Std() != 10*time.Second {
		t.Errorf("default cooldown = %v", cfg.Orchestrator.Cooldown.Std())
	}
	if cfg.Orchestrator.CapturePolicy != "continue" {
		t.Errorf("default capture_policy = %q", cfg.Orchestrator.CapturePolicy)
	}
	if cfg.Gate.SpeechThreshold != 0.015 {
		t.Errorf("default speech_threshold = %v", cfg.Gate.SpeechThreshold)
	}
}

func TestLoadFromReader_ExplicitZeroTemperature(t *testing.T) {
	t.Parallel()
	yaml := `
api:
  temperature: 0
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.API.Temperature == nil || *cfg.API.Temperature != 0 {
		t.Errorf("temperature = %v; an explicit 0 must not be replaced by the default", cfg.API.Temperature)
	}
}

func TestLoadFromReader_Durations(t *testing.T) {
	t.Parallel()
	yaml := `
orchestrator:
  cooldown: 2s
  response_timeout: 45s
api:
  session_ttl: 25m
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Cooldown.Std() != 2*time.Second {
		t.Errorf("cooldown = %v; want 2s", cfg.Orchestrator.Cooldown.Std())
	}
	if cfg.Orchestrator.ResponseTimeout.Std() != 45*time.Second {
		t.Errorf("response_timeout = %v; want 45s", cfg.Orchestrator.ResponseTimeout.Std())
	}
	if cfg.API.SessionTTL.Std() != 25*time.Minute {
		t.Errorf("session_ttl = %v; want 25m", cfg.API.SessionTTL.Std())
	}
}

func TestLoadFromReader_InvalidDuration(t *testing.T) {
	t.Parallel()
	yaml := `
orchestrator:
  cooldown: ten seconds
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adddr: ":9999"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_CapturePolicy(t *testing.T) {
	t.Parallel()
	yaml := `
orchestrator:
  capture_policy: maybe
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid capture_policy, got nil")
	}
	if !strings.Contains(err.Error(), "capture_policy") {
		t.Errorf("error should mention capture_policy, got: %v", err)
	}
}

func TestValidate_InvertedHysteresisBand(t *testing.T) {
	t.Parallel()
	yaml := `
gate:
  speech_threshold: 0.01
  silence_threshold: 0.02
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for inverted thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "hysteresis") {
		t.Errorf("error should mention the hysteresis band, got: %v", err)
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
api:
  temperature: 3.5
orchestrator:
  capture_policy: maybe
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "temperature", "capture_policy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestResolveAPIKey_Precedence(t *testing.T) {
	cfg := &config.Config{}
	t.Setenv(config.EnvAPIKey, "from-auricle-env")
	t.Setenv(config.EnvOpenAIAPIKey, "from-openai-env")

	if got := cfg.ResolveAPIKey(); got != "from-auricle-env" {
		t.Errorf("ResolveAPIKey = %q; want the AURICLE_API_KEY value", got)
	}

	t.Setenv(config.EnvAPIKey, "")
	if got := cfg.ResolveAPIKey(); got != "from-openai-env" {
		t.Errorf("ResolveAPIKey = %q; want the OPENAI_API_KEY fallback", got)
	}

	cfg.API.APIKey = "from-file"
	if got := cfg.ResolveAPIKey(); got != "from-file" {
		t.Errorf("ResolveAPIKey = %q; want the file value to win", got)
	}
}

func TestInstructions_AssembleSections(t *testing.T) {
	t.Parallel()
	ic := config.InstructionsConfig{
		Base:    "Answer briefly.",
		Context: "The caller is a premium customer.",
		Task:    "Resolve billing disputes.",
	}
	got, err := ic.Assemble()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Answer briefly." +
		"\n\nBACKGROUND CONTEXT:\nThe caller is a premium customer." +
		"\n\nCURRENT TASK/OBJECTIVE:\nResolve billing disputes."
	if got != want {
		t.Errorf("assembled instructions:\n%s\nwant:\n%s", got, want)
	}
}

func TestInstructions_AssembleFromFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctxPath := filepath.Join(dir, "context.txt")
	if err := os.WriteFile(ctxPath, []byte("Black Friday promotion is live.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ic := config.InstructionsConfig{Base: "Answer briefly.", ContextFile: ctxPath}
	got, err := ic.Assemble()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "BACKGROUND CONTEXT:\nBlack Friday promotion is live.") {
		t.Errorf("assembled instructions missing file content:\n%s", got)
	}
	if strings.Contains(got, "CURRENT TASK/OBJECTIVE") {
		t.Errorf("empty task should not produce a section:\n%s", got)
	}
}

func TestInstructions_DefaultBase(t *testing.T) {
	t.Parallel()
	got, err := config.InstructionsConfig{}.Assemble()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "customer service agents") {
		t.Errorf("default base instructions missing:\n%s", got)
	}
}

func TestInstructions_MissingFile(t *testing.T) {
	t.Parallel()
	ic := config.InstructionsConfig{ContextFile: "/nonexistent/context.txt"}
	if _, err := ic.Assemble(); err == nil {
		t.Fatal("expected error for missing context file, got nil")
	}
}
