package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidVoices lists the voices the hosted API accepts. Used by [Validate] to
// warn about likely typos; unknown voices are not rejected because the API
// adds new ones without notice.
var ValidVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if t := cfg.API.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("api.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.API.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("api.session_ttl must not be negative"))
	}
	if cfg.API.Voice != "" && !slices.Contains(ValidVoices, cfg.API.Voice) {
		slog.Warn("unknown voice — may be a typo or a newly added voice",
			"voice", cfg.API.Voice,
			"known", ValidVoices,
		)
	}

	if cfg.Gate.SpeechThreshold <= 0 || cfg.Gate.SpeechThreshold >= 1 {
		errs = append(errs, fmt.Errorf("gate.speech_threshold %.4f is out of range (0, 1)", cfg.Gate.SpeechThreshold))
	}
	if cfg.Gate.SilenceThreshold <= 0 || cfg.Gate.SilenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("gate.silence_threshold %.4f is out of range (0, 1)", cfg.Gate.SilenceThreshold))
	}
	if cfg.Gate.SilenceThreshold > cfg.Gate.SpeechThreshold {
		errs = append(errs, fmt.Errorf("gate.silence_threshold %.4f must not exceed gate.speech_threshold %.4f; the hysteresis band would invert", cfg.Gate.SilenceThreshold, cfg.Gate.SpeechThreshold))
	}
	if cfg.Gate.HangoverFrames < 0 {
		errs = append(errs, fmt.Errorf("gate.hangover_frames must not be negative"))
	}

	switch cfg.Orchestrator.CapturePolicy {
	case "continue", "suspend":
	default:
		errs = append(errs, fmt.Errorf("orchestrator.capture_policy %q is invalid; valid values: continue, suspend", cfg.Orchestrator.CapturePolicy))
	}
	if cfg.Orchestrator.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.cooldown must not be negative"))
	}
	if cfg.Orchestrator.ReconnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.reconnect_attempts must be at least 1"))
	}

	if cfg.Instructions.Context != "" && cfg.Instructions.ContextFile != "" {
		slog.Warn("both instructions.context and instructions.context_file are set; inline text wins")
	}
	if cfg.Instructions.Task != "" && cfg.Instructions.TaskFile != "" {
		slog.Warn("both instructions.task and instructions.task_file are set; inline text wins")
	}

	return errors.Join(errs...)
}
