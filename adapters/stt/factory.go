package stt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/config"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// Factory builds one Capability per call party for the configured backend
type Factory struct {
	provider string
	dial     Dialer
	opts     CapabilityOptions
	logger   *zap.Logger
	metrics  *metrics.Collector
}

var _ repositories.TranscriberFactory = (*Factory)(nil)

// NewFactory selects the backend named by cfg.Provider.
func NewFactory(cfg config.STTConfig, opts CapabilityOptions, logger *zap.Logger, m *metrics.Collector) (*Factory, error) {
	var dial Dialer
	switch cfg.Provider {
	case config.ProviderDeepgram:
		dial = NewDeepgramDialer(DeepgramConfig{
			APIKey:   cfg.Deepgram.APIKey,
			URL:      cfg.Deepgram.URL,
			Model:    cfg.Deepgram.Model,
			Language: cfg.Deepgram.Language,
		})
		if opts.KeepAlive == 0 {
			opts.KeepAlive = cfg.Deepgram.KeepAlive
		}
	case config.ProviderGoogle:
		dial = NewGoogleDialer(GoogleConfig{
			CredentialsFile:      cfg.Google.CredentialsFile,
			LanguageCode:         cfg.Google.LanguageCode,
			AlternativeLanguages: cfg.Google.AlternativeLanguages,
		})
	case config.ProviderMock:
		dial = NewMockDialer(MockConfig{})
	default:
		return nil, fmt.Errorf("unsupported stt provider %q", cfg.Provider)
	}

	return &Factory{
		provider: cfg.Provider,
		dial:     dial,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}, nil
}

// NewFactoryWithDialer wires an arbitrary Dialer, for tests and tools.
func NewFactoryWithDialer(provider string, dial Dialer, opts CapabilityOptions, logger *zap.Logger, m *metrics.Collector) *Factory {
	return &Factory{provider: provider, dial: dial, opts: opts, logger: logger, metrics: m}
}

func (f *Factory) NewTranscriber(speaker entities.Track, audioConfig repositories.AudioConfig) (repositories.Transcriber, error) {
	if audioConfig.SampleRate != 0 && audioConfig.SampleRate != 16000 {
		return nil, fmt.Errorf("%s recognizer expects 16000Hz audio, got %d", f.provider, audioConfig.SampleRate)
	}
	return NewCapability(f.provider, speaker, f.dial, f.opts, f.logger, f.metrics), nil
}

func (f *Factory) Provider() string {
	return f.provider
}
