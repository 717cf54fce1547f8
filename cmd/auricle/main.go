// Command auricle runs the audio session orchestrator: it captures
// microphone audio, streams detected speech to the hosted realtime speech
// API, and relays transcripts and responses to overlay UIs over a local
// WebSocket control channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/auricle-dev/auricle/internal/config"
	"github.com/auricle-dev/auricle/internal/control"
	"github.com/auricle-dev/auricle/internal/observe"
	"github.com/auricle-dev/auricle/internal/orchestrator"
	"github.com/auricle-dev/auricle/pkg/audio"
	"github.com/auricle-dev/auricle/pkg/gate"
	"github.com/auricle-dev/auricle/pkg/realtime"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "auricle: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "auricle: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Audio context ─────────────────────────────────────────────────────────
	audioCtx, err := audio.NewContext()
	if err != nil {
		slog.Error("failed to initialise audio driver", "err", err)
		return 1
	}
	defer audioCtx.Close()

	if *listDevices {
		return printDevices(audioCtx)
	}

	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "auricle: no API key; set %s or %s, or api.api_key in the config\n",
			config.EnvAPIKey, config.EnvOpenAIAPIKey)
		return 1
	}

	slog.Info("auricle starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"model", cfg.API.Model,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Capture device ────────────────────────────────────────────────────────
	selector := audio.Selector(audio.TerminalSelector)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		selector = nil // headless: Pick falls back to the first device
	}
	var device *audio.DeviceInfo
	if cfg.Audio.Device == "ask" {
		device, err = audio.Prompt(audioCtx, selector)
	} else {
		device, err = audio.Pick(audioCtx, cfg.Audio.Device, selector)
	}
	if err != nil {
		slog.Error("failed to select capture device", "err", err)
		return 1
	}
	capture, err := audioCtx.NewCapture(device, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   1,
	})
	if err != nil {
		slog.Error("failed to open capture device", "err", err)
		return 1
	}
	slog.Info("capture device ready", "device", capture.DeviceName())

	// ── Activity gate ─────────────────────────────────────────────────────────
	classifier, err := gate.New(gate.Config{
		SpeechThreshold:  cfg.Gate.SpeechThreshold,
		SilenceThreshold: cfg.Gate.SilenceThreshold,
		SustainedSpeech:  cfg.Gate.SustainedSpeech.Std(),
		HangoverFrames:   cfg.Gate.HangoverFrames,
	})
	if err != nil {
		slog.Error("failed to build activity gate", "err", err)
		return 1
	}

	// ── Realtime API client ───────────────────────────────────────────────────
	instructions, err := cfg.Instructions.Assemble()
	if err != nil {
		slog.Error("failed to assemble instructions", "err", err)
		return 1
	}
	var clientOpts []realtime.Option
	clientOpts = append(clientOpts,
		realtime.WithModel(cfg.API.Model),
		realtime.WithSessionTTL(cfg.API.SessionTTL.Std()),
	)
	if cfg.API.BaseURL != "" {
		clientOpts = append(clientOpts, realtime.WithBaseURL(cfg.API.BaseURL))
	}
	dialer := realtime.New(apiKey, realtime.SessionConfig{
		Modalities:   []string{"text"},
		Instructions: instructions,
		Voice:        cfg.API.Voice,
		Temperature:  *cfg.API.Temperature,
	}, clientOpts...)

	// ── Orchestrator + control channel ────────────────────────────────────────
	// The control server is the orchestrator's sink, and the orchestrator is
	// the control server's commander. Build the orchestrator first with a nil
	// sink slot filled in afterwards via the server.
	orc := orchestrator.New(dialer, capture, classifier, nil, orchestrator.Config{
		Cooldown:          cfg.Orchestrator.Cooldown.Std(),
		ResponseTimeout:   cfg.Orchestrator.ResponseTimeout.Std(),
		LevelInterval:     cfg.Orchestrator.LevelInterval.Std(),
		MaxAPICalls:       cfg.Orchestrator.MaxAPICalls,
		CapturePolicy:     orchestrator.CapturePolicy(cfg.Orchestrator.CapturePolicy),
		ReconnectAttempts: cfg.Orchestrator.ReconnectAttempts,
		ReconnectDelay:    cfg.Orchestrator.ReconnectDelay.Std(),
	})
	ctl := control.NewServer(orc, cfg.Orchestrator.MaxAPICalls)
	orc.SetSink(ctl)

	mux := http.NewServeMux()
	mux.Handle("/ws", ctl)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("control channel listening", "addr", cfg.Server.ListenAddr, "path", "/ws")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		// The process has no purpose once the orchestrator exits: a clean
		// stop returns nil, which would not cancel the group on its own.
		defer stop()
		return orc.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			slog.Warn("control server shutdown error", "err", err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(sctx); err != nil {
				slog.Warn("metrics server shutdown error", "err", err)
			}
		}
		return nil
	})

	slog.Info("ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func printDevices(audioCtx audio.Context) int {
	devices, err := audioCtx.Devices()
	if err != nil {
		slog.Error("failed to enumerate devices", "err", err)
		return 1
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, d.Name)
	}
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
