package main

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-b9/internal/config"
	"github.com/teslashibe/go-b9/pkg/asr"
	"github.com/teslashibe/go-b9/pkg/audioio"
	"github.com/teslashibe/go-b9/pkg/b9"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/recovery"
	"github.com/teslashibe/go-b9/pkg/tts"
	"github.com/teslashibe/go-b9/pkg/vision/opencv"
)

// buildDeps creates the production adapters. Optional hardware that fails
// to initialize is logged and left out.
func buildDeps(cfg *config.Config, logger *slog.Logger) (b9.Deps, error) {
	provider, err := inference.NewOllama(
		inference.WithBaseURL(cfg.Ollama.URL),
		inference.WithModel(cfg.Ollama.ChatModel),
		inference.WithVisionModel(cfg.Ollama.VisionModel),
		inference.WithLogger(logger),
	)
	if err != nil {
		return b9.Deps{}, err
	}

	synth, err := tts.NewEspeak(tts.WithVoice(cfg.Audio.Voice), tts.WithLogger(logger))
	if err != nil {
		return b9.Deps{}, err
	}

	speakerCfg := audioio.DefaultConfig()
	speakerCfg.Card = cfg.Audio.SpeakerCard

	deps := b9.Deps{
		Provider: provider,
		TTS:      synth,
		Sink:     b9.NewCardSink(speakerCfg, logger),
		Runner:   recovery.ExecRunner{},
	}

	if cfg.Voice.Enabled {
		rec, err := asr.New(asr.Config{ModelPath: cfg.Voice.ModelPath, SampleRate: cfg.Voice.SampleRate}, logger)
		if err != nil {
			logger.Warn("speech recognizer unavailable, voice loop disabled", "error", err)
		} else {
			micCfg := audioio.DefaultConfig()
			micCfg.Card = cfg.Audio.MicCard
			micCfg.SampleRate = cfg.Voice.SampleRate
			micCfg.ChunkSamples = cfg.Voice.ChunkSamples
			deps.Recognizer = rec
			deps.OpenMic = func(ctx context.Context) (audioio.Source, error) {
				return audioio.NewSource(micCfg, logger)
			}
		}
	}

	if cfg.Camera.Enabled {
		camCfg := opencv.DefaultConfig()
		camCfg.Devices = cfg.Camera.MaxDevices
		camCfg.Width = cfg.Camera.Width
		camCfg.Quality = cfg.Camera.Quality
		cam, err := opencv.New(camCfg, logger)
		if err != nil {
			logger.Warn("camera disabled", "error", err)
		} else {
			deps.Camera = cam
		}
	}
	return deps, nil
}
