package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector("callrelay", zap.NewNop())

	assert.NotNil(t, collector.activeSessions)
	assert.NotNil(t, collector.framesTotal)
	assert.NotNil(t, collector.queueOverflows)
	assert.NotNil(t, collector.translations)
}

func TestCollectorsDoNotShareRegistries(t *testing.T) {
	// both would panic on duplicate registration if they shared one
	a := NewCollector("callrelay", zap.NewNop())
	b := NewCollector("callrelay", zap.NewNop())

	a.RecordOverflow("egress")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.queueOverflows.WithLabelValues("egress")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.queueOverflows.WithLabelValues("egress")))
}

func TestSessionGauge(t *testing.T) {
	collector := NewCollector("callrelay", zap.NewNop())

	collector.SetActiveSessions(2)
	collector.SetActiveSessions(1)
	collector.RecordSessionEnd("stop")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionsTotal.WithLabelValues("stop")))
}

func TestOverflowHook(t *testing.T) {
	collector := NewCollector("callrelay", zap.NewNop())
	hook := collector.OverflowHook("broadcast")
	hook()
	hook()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.queueOverflows.WithLabelValues("broadcast")))
}

func TestTranslationAndSynthesis(t *testing.T) {
	collector := NewCollector("callrelay", zap.NewNop())

	collector.RecordTranslation("ok", 120*time.Millisecond)
	collector.RecordTranslation("failed", time.Second)
	collector.RecordSynthesis("sarvam", "ok", 400*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.translations))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.syntheses.WithLabelValues("sarvam", "ok")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.SetActiveSessions(3)
		collector.RecordSessionEnd("disconnect")
		collector.RecordFrame("caller", "ingress")
		collector.RecordOverflow("egress")
		collector.OverflowHook("egress")()
		collector.RecordCodecError("caller")
		collector.RecordBackendState("deepgram", "caller", "active")
		collector.RecordTranslation("ok", time.Millisecond)
		collector.RecordSynthesis("mock", "ok", time.Millisecond)
		collector.RecordDeliveryFailure()
		collector.SetSubscribers("notification", 1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	collector := NewCollector("callrelay", zap.NewNop())
	collector.RecordFrame("caller", "ingress")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `callrelay_frames_total{hop="ingress",track="caller"} 1`))
}
