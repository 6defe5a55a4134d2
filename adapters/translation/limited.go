package translation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// Limited bounds a Translator by request rate and per-request timeout.
type Limited struct {
	next    repositories.Translator
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Collector
}

var _ repositories.Translator = (*Limited)(nil)

func NewLimited(next repositories.Translator, requestsPerSecond float64, timeout time.Duration, m *metrics.Collector) *Limited {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		metrics: m,
	}
}

func (l *Limited) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		l.metrics.RecordTranslation("throttled", time.Since(start))
		return "", fmt.Errorf("%w: %v", domain.ErrTranslation, err)
	}

	out, err := l.next.Translate(ctx, text, sourceLanguage, targetLanguage)
	if err != nil {
		l.metrics.RecordTranslation("error", time.Since(start))
		return "", err
	}
	l.metrics.RecordTranslation("ok", time.Since(start))
	return out, nil
}
