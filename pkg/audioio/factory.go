package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new audio source with the given configuration.
// When cfg.Card is negative the capture card is detected from
// /proc/asound/cards at call time.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg), nil
	case BackendALSA, BackendAuto, "":
		card := cfg.Card
		if card < 0 {
			cards, err := DetectCards(cfg.CardsPath)
			if err != nil {
				return nil, err
			}
			card = cards.Mic
		}
		logger.Info("creating audio source",
			"backend", BackendALSA,
			"card", card,
			"sample_rate", cfg.SampleRate,
			"channels", cfg.Channels,
		)
		return newALSASource(cfg, card, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
// When cfg.Card is negative the playback card is detected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockSink(), nil
	case BackendALSA, BackendAuto, "":
		card := cfg.Card
		if card < 0 {
			cards, err := DetectCards(cfg.CardsPath)
			if err != nil {
				return nil, err
			}
			card = cards.Speaker
		}
		logger.Info("creating audio sink", "backend", BackendALSA, "card", card)
		return newALSASink(card, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
