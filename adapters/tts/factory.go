package tts

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/config"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// NewFromConfig builds the configured synthesizer. It returns nil for
// the "none" provider; translated turns are then published as text only.
func NewFromConfig(cfg config.TTSConfig, requestsPerSecond float64, m *metrics.Collector, logger *zap.Logger) (repositories.TextToSpeech, error) {
	var regional, general repositories.TextToSpeech

	newElevenLabs := func() (repositories.TextToSpeech, error) {
		return NewElevenLabsTTS(ElevenLabsConfig{
			APIKey:       cfg.ElevenLabs.APIKey,
			APIBaseURL:   cfg.ElevenLabs.BaseURL,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			Voices:       cfg.ElevenLabs.Voices,
		}, logger)
	}
	newSarvam := func() (repositories.TextToSpeech, error) {
		return NewSarvamTTS(SarvamConfig{
			APIKey:     cfg.Sarvam.APIKey,
			BaseURL:    cfg.Sarvam.BaseURL,
			Model:      cfg.Sarvam.Model,
			Speaker:    cfg.Sarvam.Speaker,
			SampleRate: cfg.Sarvam.SampleRate,
		}, logger)
	}

	var err error
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderMock:
		general = NewMockTTS(logger)
	case config.ProviderElevenLabs:
		if general, err = newElevenLabs(); err != nil {
			return nil, err
		}
	case config.ProviderSarvam:
		if regional, err = newSarvam(); err != nil {
			return nil, err
		}
	case config.ProviderHybrid:
		if cfg.ElevenLabs.APIKey != "" {
			if general, err = newElevenLabs(); err != nil {
				return nil, err
			}
		}
		if cfg.Sarvam.APIKey != "" {
			if regional, err = newSarvam(); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unsupported tts provider %q", cfg.Provider)
	}

	return NewRouter(regional, general, rate.Limit(requestsPerSecond), m, logger), nil
}
