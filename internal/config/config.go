// Package config provides the configuration schema and loader for the
// Auricle session orchestrator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration is a [time.Duration] that unmarshals from YAML strings such as
// "10s" or "1.5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a standard [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Environment variables consulted for the API key when api.api_key is not
// set in the file. AURICLE_API_KEY wins over the generic OPENAI_API_KEY.
const (
	EnvAPIKey       = "AURICLE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config is the root configuration, typically loaded from YAML with [Load].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	API          APIConfig          `yaml:"api"`
	Audio        AudioConfig        `yaml:"audio"`
	Gate         GateConfig         `yaml:"gate"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Instructions InstructionsConfig `yaml:"instructions"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the address of the control WebSocket server.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// APIConfig configures the hosted realtime speech API connection.
type APIConfig struct {
	// APIKey authenticates against the API. Usually left empty here and
	// supplied through AURICLE_API_KEY or OPENAI_API_KEY instead.
	APIKey string `yaml:"api_key"`

	// Model selects the realtime model.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint. Empty uses the hosted default.
	BaseURL string `yaml:"base_url"`

	// Voice selects the synthesized voice.
	Voice string `yaml:"voice"`

	// Temperature tunes response sampling. A pointer so an explicit 0 is
	// distinguishable from the field being absent.
	Temperature *float64 `yaml:"temperature"`

	// SessionTTL is the assumed hosted session lifetime; proactive
	// reconnection triggers at a fraction of it.
	SessionTTL Duration `yaml:"session_ttl"`
}

// AudioConfig selects the capture device.
type AudioConfig struct {
	// Device matches a capture device by name substring. Empty selects the
	// system default; "ask" prompts interactively.
	Device string `yaml:"device"`
}

// GateConfig tunes the speech activity gate.
type GateConfig struct {
	SpeechThreshold  float64  `yaml:"speech_threshold"`
	SilenceThreshold float64  `yaml:"silence_threshold"`
	SustainedSpeech  Duration `yaml:"sustained_speech"`
	HangoverFrames   int      `yaml:"hangover_frames"`
}

// OrchestratorConfig tunes the session state machine.
type OrchestratorConfig struct {
	Cooldown          Duration `yaml:"cooldown"`
	ResponseTimeout   Duration `yaml:"response_timeout"`
	LevelInterval     Duration `yaml:"level_interval"`
	MaxAPICalls       int      `yaml:"max_api_calls"`
	CapturePolicy     string   `yaml:"capture_policy"`
	ReconnectAttempts int      `yaml:"reconnect_attempts"`
	ReconnectDelay    Duration `yaml:"reconnect_delay"`
}

// InstructionsConfig assembles the system instructions sent to the API.
// Context and task text may be given inline or as file paths; inline wins.
type InstructionsConfig struct {
	// Base replaces the built-in base instructions when set.
	Base string `yaml:"base"`

	Context     string `yaml:"context"`
	ContextFile string `yaml:"context_file"`

	Task     string `yaml:"task"`
	TaskFile string `yaml:"task_file"`
}

// defaultInstructions is the built-in base prompt used when instructions.base
// is not configured.
const defaultInstructions = `You are a helpful AI assistant supporting customer service agents in real-time.
Your role is to provide quick, accurate information to help agents respond to customer inquiries.
Provide concise and direct answers. Present responses as bullet points.
No markdown. Avoid unnecessary elaboration unless specifically requested.
Focus on actionable information that agents can communicate to customers immediately.`

// Assemble builds the full instruction text: the base prompt plus optional
// background-context and task sections.
func (ic InstructionsConfig) Assemble() (string, error) {
	base := strings.TrimSpace(ic.Base)
	if base == "" {
		base = defaultInstructions
	}

	contextText, err := ic.section(ic.Context, ic.ContextFile)
	if err != nil {
		return "", fmt.Errorf("config: instructions context: %w", err)
	}
	taskText, err := ic.section(ic.Task, ic.TaskFile)
	if err != nil {
		return "", fmt.Errorf("config: instructions task: %w", err)
	}

	var b strings.Builder
	b.WriteString(base)
	if contextText != "" {
		b.WriteString("\n\nBACKGROUND CONTEXT:\n")
		b.WriteString(contextText)
	}
	if taskText != "" {
		b.WriteString("\n\nCURRENT TASK/OBJECTIVE:\n")
		b.WriteString(taskText)
	}
	return b.String(), nil
}

func (InstructionsConfig) section(inline, file string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return strings.TrimSpace(inline), nil
	}
	if file == "" {
		return "", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ResolveAPIKey returns the configured key, falling back to the environment.
func (c *Config) ResolveAPIKey() string {
	if c.API.APIKey != "" {
		return c.API.APIKey
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// applyDefaults fills unset fields with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "localhost:8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.API.Model == "" {
		c.API.Model = "gpt-4o-realtime-preview"
	}
	if c.API.Voice == "" {
		c.API.Voice = "alloy"
	}
	if c.API.Temperature == nil {
		t := 0.6
		c.API.Temperature = &t
	}
	if c.API.SessionTTL == 0 {
		c.API.SessionTTL = Duration(30 * time.Minute)
	}
	if c.Gate.SpeechThreshold == 0 {
		c.Gate.SpeechThreshold = 0.015
	}
	if c.Gate.SilenceThreshold == 0 {
		c.Gate.SilenceThreshold = 0.008
	}
	if c.Gate.SustainedSpeech == 0 {
		c.Gate.SustainedSpeech = Duration(100 * time.Millisecond)
	}
	if c.Gate.HangoverFrames == 0 {
		c.Gate.HangoverFrames = 10
	}
	if c.Orchestrator.Cooldown == 0 {
		c.Orchestrator.Cooldown = Duration(10 * time.Second)
	}
	if c.Orchestrator.ResponseTimeout == 0 {
		c.Orchestrator.ResponseTimeout = Duration(30 * time.Second)
	}
	if c.Orchestrator.LevelInterval == 0 {
		c.Orchestrator.LevelInterval = Duration(100 * time.Millisecond)
	}
	if c.Orchestrator.CapturePolicy == "" {
		c.Orchestrator.CapturePolicy = "continue"
	}
	if c.Orchestrator.ReconnectAttempts == 0 {
		c.Orchestrator.ReconnectAttempts = 3
	}
	if c.Orchestrator.ReconnectDelay == 0 {
		c.Orchestrator.ReconnectDelay = Duration(2 * time.Second)
	}
}
