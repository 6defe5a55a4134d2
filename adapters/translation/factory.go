package translation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/adapters/llm"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/config"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// NewFromConfig builds the configured translator behind the rate limit.
// It returns nil for the "none" provider.
func NewFromConfig(ctx context.Context, cfg config.TranslationConfig, m *metrics.Collector, logger *zap.Logger) (repositories.Translator, error) {
	var backend repositories.Translator
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderMock:
		backend = Mock{}
	case config.ProviderMyMemory:
		backend = NewMyMemory(MyMemoryConfig{URL: cfg.MyMemoryURL, Email: cfg.MyMemoryEmail}, logger)
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiTranslator(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		backend = gemini
	default:
		return nil, fmt.Errorf("unsupported translation provider %q", cfg.Provider)
	}
	return NewLimited(backend, cfg.RequestsPerSecond, cfg.Timeout, m), nil
}
