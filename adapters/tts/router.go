package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/language"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// Router sends Indian languages to the regional backend and everything
// else to the general one, falling back to the other on failure. Either
// backend may be nil.
type Router struct {
	regional repositories.TextToSpeech
	general  repositories.TextToSpeech
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	logger   *zap.Logger
}

var _ repositories.TextToSpeech = (*Router)(nil)

// NewRouter builds a hybrid synthesizer. limit caps requests per second
// across both backends.
func NewRouter(regional, general repositories.TextToSpeech, limit rate.Limit, m *metrics.Collector, logger *zap.Logger) *Router {
	if limit <= 0 {
		limit = rate.Inf
	}
	return &Router{
		regional: regional,
		general:  general,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  m,
		logger:   logger.With(zap.String("component", "tts_router")),
	}
}

func (r *Router) order(languageCode string) []repositories.TextToSpeech {
	primary, secondary := r.general, r.regional
	if language.IsIndic(languageCode) {
		primary, secondary = r.regional, r.general
	}
	var out []repositories.TextToSpeech
	for _, b := range []repositories.TextToSpeech{primary, secondary} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (r *Router) Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error) {
	backends := r.order(languageCode)
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no synthesizer configured", domain.ErrSynthesis)
	}

	var errs []error
	for _, backend := range backends {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
		}

		start := time.Now()
		out, err := backend.Synthesize(ctx, text, languageCode)
		if err == nil {
			r.metrics.RecordSynthesis(out.Provider, "ok", time.Since(start))
			return out, nil
		}

		r.metrics.RecordSynthesis(providerName(backend), "error", time.Since(start))
		r.logger.Warn("Synthesizer failed, trying next",
			zap.String("provider", providerName(backend)),
			zap.String("language", languageCode),
			zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrSynthesis, errors.Join(errs...))
}

func providerName(b repositories.TextToSpeech) string {
	if p, ok := b.(interface{ Provider() string }); ok {
		return p.Provider()
	}
	return "unknown"
}
