package stt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
)

type fakeConn struct {
	mu         sync.Mutex
	sent       [][]byte
	keepAlives int
	finalized  int
	closed     int

	results   chan []Recognition
	fail      chan error
	finalDone chan struct{}
	finalOnce sync.Once
	closeDone chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		results:   make(chan []Recognition, 8),
		fail:      make(chan error, 1),
		finalDone: make(chan struct{}),
		closeDone: make(chan struct{}),
	}
}

func (f *fakeConn) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pcm)
	return nil
}

func (f *fakeConn) KeepAlive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlives++
	return nil
}

func (f *fakeConn) Finalize() error {
	f.mu.Lock()
	f.finalized++
	f.mu.Unlock()
	f.finalOnce.Do(func() { close(f.finalDone) })
	return nil
}

func (f *fakeConn) Receive() ([]Recognition, error) {
	select {
	case r := <-f.results:
		return r, nil
	case err := <-f.fail:
		return nil, err
	case <-f.finalDone:
		return nil, io.EOF
	case <-f.closeDone:
		return nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closeDone) })
	return nil
}

func (f *fakeConn) counts() (sent, keepAlives, finalized, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), f.keepAlives, f.finalized, f.closed
}

func newTestCapability(t *testing.T, conn *fakeConn, opts CapabilityOptions) *Capability {
	dial := func(ctx context.Context) (Conn, error) { return conn, nil }
	return NewCapability("fake", entities.TrackCaller, dial, opts, zaptest.NewLogger(t), nil)
}

func frame(n byte) entities.AudioFrame {
	return entities.AudioFrame{Track: entities.TrackCaller, Payload: []byte{n, n}}
}

func TestCapabilityLifecycle(t *testing.T) {
	conn := newFakeConn()
	c := newTestCapability(t, conn, CapabilityOptions{})
	assert.Equal(t, repositories.StateIdle, c.State())

	c.StreamAudio(frame(0))

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, repositories.StateActive, c.State())

	for i := byte(1); i <= 3; i++ {
		c.StreamAudio(frame(i))
	}

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, repositories.StateStopped, c.State())

	sent, _, finalized, closed := conn.counts()
	assert.Equal(t, 3, sent, "frame before Active is dropped, queued frames are flushed")
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 1, closed)

	c.StreamAudio(frame(9))
	require.NoError(t, c.Stop(context.Background()))
	sent, _, finalized, closed = conn.counts()
	assert.Equal(t, 3, sent)
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 1, closed)
}

func TestCapabilityConnectFailure(t *testing.T) {
	dial := func(ctx context.Context) (Conn, error) { return nil, errors.New("401 unauthorized") }
	c := NewCapability("fake", entities.TrackDispatcher, dial, CapabilityOptions{}, zaptest.NewLogger(t), nil)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendConnect)
	assert.Equal(t, repositories.StateStopped, c.State())

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendConnect, "a stopped capability cannot reconnect")
	require.NoError(t, c.Stop(context.Background()))
}

func TestCapabilitySendsKeepAliveWhenIdle(t *testing.T) {
	conn := newFakeConn()
	c := newTestCapability(t, conn, CapabilityOptions{KeepAlive: 10 * time.Millisecond})
	require.NoError(t, c.Connect(context.Background()))

	assert.Eventually(t, func() bool {
		_, keepAlives, _, _ := conn.counts()
		return keepAlives >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop(context.Background()))
}

func TestCapabilityStreamFailureStops(t *testing.T) {
	conn := newFakeConn()
	c := newTestCapability(t, conn, CapabilityOptions{})
	require.NoError(t, c.Connect(context.Background()))

	conn.fail <- errors.New("connection reset by peer")

	assert.Eventually(t, func() bool {
		return c.State() == repositories.StateStopped
	}, time.Second, 5*time.Millisecond)

	c.StreamAudio(frame(1))
	require.NoError(t, c.Stop(context.Background()))

	assert.Eventually(t, func() bool {
		_, _, _, closed := conn.counts()
		return closed == 1
	}, time.Second, 5*time.Millisecond)
	sent, _, _, _ := conn.counts()
	assert.Equal(t, 0, sent)
}

func TestCapabilityEmitsTranscripts(t *testing.T) {
	conn := newFakeConn()
	c := newTestCapability(t, conn, CapabilityOptions{})

	events := make(chan entities.TranscriptEvent, 4)
	c.OnTranscript(func(e entities.TranscriptEvent) { events <- e })
	require.NoError(t, c.Connect(context.Background()))

	confidence := 0.8
	conn.results <- []Recognition{
		{Text: "   "},
		{Text: "எனக்கு உதவி தேவை", IsFinal: true, Confidence: &confidence},
		{Text: "hello", Language: "hi-IN"},
		{Text: "hello"},
	}

	var got []entities.TranscriptEvent
	for i := 0; i < 3; i++ {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want 3", len(got))
		}
	}
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, entities.TrackCaller, got[0].Speaker)
	assert.Equal(t, "ta", got[0].LanguageCode)
	assert.True(t, got[0].IsFinal)
	require.NotNil(t, got[0].Confidence)
	assert.InDelta(t, 0.8, *got[0].Confidence, 1e-9)

	assert.Equal(t, "hi", got[1].LanguageCode, "backend language used for latin text")
	assert.Equal(t, "en", got[2].LanguageCode)
}

func TestCapabilityConcurrentStop(t *testing.T) {
	conn := newFakeConn()
	c := newTestCapability(t, conn, CapabilityOptions{})
	require.NoError(t, c.Connect(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop(context.Background())
		}()
	}
	wg.Wait()

	_, _, finalized, closed := conn.counts()
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 1, closed)
}

func TestCapabilityLabelsLanguage(t *testing.T) {
	tests := []struct {
		name     string
		baseline string
		r        Recognition
		want     string
	}{
		{"script wins over backend", "hi", Recognition{Text: "உதவி வேண்டும்", Language: "en-IN"}, "ta"},
		{"backend label for latin text", "hi", Recognition{Text: "send help", Language: "es-ES"}, "es"},
		{"baseline when unlabelled", "hi", Recognition{Text: "send help"}, "hi"},
		{"default baseline", "", Recognition{Text: "send help"}, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCapability(t, newFakeConn(), CapabilityOptions{Baseline: tt.baseline})
			var got []entities.TranscriptEvent
			c.OnTranscript(func(e entities.TranscriptEvent) { got = append(got, e) })

			c.emit(tt.r)

			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].LanguageCode)
		})
	}
}
