// Command audiod runs the audio playback engine as a standalone daemon:
// it wires up the decoder registry, track cache, output device and
// status API, then plays whatever path is given on the command line.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvalheim/audiocore/config"
	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/decoder/flacplugin"
	"github.com/kvalheim/audiocore/internal/decoder/mp3plugin"
	"github.com/kvalheim/audiocore/internal/decoder/toneplugin"
	"github.com/kvalheim/audiocore/internal/decoder/wavplugin"
	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/mixer/otomixer"
	"github.com/kvalheim/audiocore/internal/output/otosink"
	"github.com/kvalheim/audiocore/internal/player"
	"github.com/kvalheim/audiocore/internal/statusapi"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	var play string
	flag.StringVar(&play, "play", "", "path or URL to start playing immediately")
	flag.Parse()

	slog.Info("starting audiod",
		"status_addr", cfg.StatusAddr,
		"cache_file", cfg.CacheFile,
		"buffer_seconds", cfg.BufferSeconds,
	)

	reg := decoder.NewRegistry()
	reg.RegisterBuiltins(wavplugin.New(), flacplugin.New(), mp3plugin.New(), toneplugin.New())

	httpCfg := httpfetch.Config{
		ConnectTimeout: cfg.HTTPConnectTimeout,
		ReadTimeout:    cfg.HTTPReadTimeout,
		MaxRedirects:   cfg.HTTPRedirectLimit,
	}

	cache := trackcache.New()
	if err := cache.Init(cfg.CacheFile); err != nil {
		slog.Warn("starting with an empty track cache", "error", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			slog.Error("failed to persist track cache", "error", err)
		}
	}()

	sink := otosink.New()
	mix := otomixer.New(sink)

	eng := player.New(player.Config{
		Registry:      reg,
		HTTP:          httpCfg,
		Cache:         cache,
		Probe:         player.NewProbe(reg, httpCfg),
		Sink:          sink,
		Mixer:         mix,
		BufferSeconds: cfg.BufferSeconds,
		ChunkSize:     cfg.ChunkSize,
	})
	defer eng.Close()

	if play != "" {
		if err := eng.Play(play); err != nil {
			slog.Error("failed to start playback", "path", play, "error", err)
		}
	}

	status := statusapi.New(cfg.StatusAddr, eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("status API listening", "addr", cfg.StatusAddr)
		errChan <- status.ListenAndServe()
	}()

	go logEvents(eng)

	select {
	case err := <-errChan:
		if err != nil {
			slog.Error("status API error", "error", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := status.Shutdown(); err != nil {
		slog.Error("status API shutdown error", "error", err)
	}
	if err := eng.Stop(); err != nil {
		slog.Error("failed to stop playback cleanly", "error", err)
	}
	time.Sleep(100 * time.Millisecond)
	slog.Info("stopped")
}

// logEvents drains the engine's event channel and logs every transition,
// so operators get a structured record without polling the status API.
func logEvents(eng *player.Engine) {
	for ev := range eng.Events() {
		switch ev.Kind {
		case player.EventStatus:
			slog.Info("playback status changed", "status", ev.Status.String())
		case player.EventMetadata:
			slog.Info("track metadata changed")
		case player.EventError:
			slog.Warn("playback error", "error", ev.Err)
		}
	}
}
