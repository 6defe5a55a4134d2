// Package stt holds the streaming speech recognition backends. Every
// backend only implements the wire protocol (Conn); Capability supplies
// the shared lifecycle, sender and receiver goroutines.
package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/language"
	"github.com/satriahrh/callrelay/internal/metrics"
	"github.com/satriahrh/callrelay/internal/queue"
)

// Recognition is one turn as reported by a backend.
type Recognition struct {
	Text       string
	IsFinal    bool
	Confidence *float64
	Language   string
}

// Conn is the wire protocol of one recognizer connection. Writes are
// only issued from the sender goroutine; Receive only from the receiver.
type Conn interface {
	SendAudio(pcm []byte) error
	// KeepAlive holds the connection open while no audio flows.
	KeepAlive() error
	// Finalize asks the backend to flush pending results.
	Finalize() error
	// Receive blocks for the next batch of results.
	Receive() ([]Recognition, error)
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context) (Conn, error)

// CapabilityOptions tunes the shared lifecycle.
type CapabilityOptions struct {
	KeepAlive     time.Duration
	QueueCapacity int
	StopTimeout   time.Duration
	// FlushGrace is how long Stop waits for the backend to close the
	// stream on its own after the final message.
	FlushGrace time.Duration
	// Baseline labels Latin-script turns the backend reports no language for.
	Baseline string
}

func (o CapabilityOptions) withDefaults() CapabilityOptions {
	if o.KeepAlive <= 0 {
		o.KeepAlive = 5 * time.Second
	}
	if o.QueueCapacity < 1 {
		o.QueueCapacity = queue.BackendCapacity
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	if o.FlushGrace <= 0 {
		o.FlushGrace = time.Second
	}
	if o.Baseline == "" {
		o.Baseline = language.Default
	}
	o.Baseline = language.Normalize(o.Baseline)
	return o
}

// Capability is a Transcriber over any Conn.
type Capability struct {
	provider string
	speaker  entities.Track
	dial     Dialer
	opts     CapabilityOptions
	logger   *zap.Logger
	metrics  *metrics.Collector

	state    atomic.Int32
	audio    *queue.Queue[[]byte]
	mu       sync.Mutex
	conn     Conn
	handlers []repositories.TranscriptHandler

	stopOnce     sync.Once
	senderDone   chan struct{}
	receiverDone chan struct{}
}

var _ repositories.Transcriber = (*Capability)(nil)

func NewCapability(provider string, speaker entities.Track, dial Dialer, opts CapabilityOptions, logger *zap.Logger, m *metrics.Collector) *Capability {
	opts = opts.withDefaults()
	return &Capability{
		provider: provider,
		speaker:  speaker,
		dial:     dial,
		opts:     opts,
		logger: logger.With(
			zap.String("component", "stt"),
			zap.String("provider", provider),
			zap.String("speaker", string(speaker))),
		metrics:      m,
		audio:        queue.New[[]byte](opts.QueueCapacity, queue.WithOverflowHook(m.OverflowHook("backend"))),
		senderDone:   make(chan struct{}),
		receiverDone: make(chan struct{}),
	}
}

func (c *Capability) State() repositories.CapabilityState {
	return repositories.CapabilityState(c.state.Load())
}

func (c *Capability) transition(from, to repositories.CapabilityState) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	c.metrics.RecordBackendState(c.provider, string(c.speaker), to.String())
	return true
}

// Connect dials the backend. ctx bounds the dial only.
func (c *Capability) Connect(ctx context.Context) error {
	if !c.transition(repositories.StateIdle, repositories.StateConnecting) {
		return fmt.Errorf("%w: %s capability is %s", domain.ErrBackendConnect, c.provider, c.State())
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.shutdown(nil)
		return fmt.Errorf("%w: %s: %v", domain.ErrBackendConnect, c.provider, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(repositories.StateConnecting, repositories.StateActive) {
		// stopped while dialing
		conn.Close()
		return fmt.Errorf("%w: %s stopped while connecting", domain.ErrBackendConnect, c.provider)
	}

	go c.sendLoop(conn)
	go c.receiveLoop(conn)
	c.logger.Info("Recognizer connected")
	return nil
}

// StreamAudio queues a frame for the sender. Frames arriving in any
// state but Active are dropped.
func (c *Capability) StreamAudio(frame entities.AudioFrame) {
	if c.State() != repositories.StateActive {
		return
	}
	c.audio.TryEnqueue(frame.Payload)
}

func (c *Capability) OnTranscript(handler repositories.TranscriptHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Stop flushes queued audio, sends the backend's final message and
// closes the connection. Later calls return immediately once the first
// has finished.
func (c *Capability) Stop(ctx context.Context) error {
	c.shutdown(ctx)
	return nil
}

func (c *Capability) shutdown(ctx context.Context) {
	c.stopOnce.Do(func() {
		prev := repositories.CapabilityState(c.state.Swap(int32(repositories.StateStopped)))
		if prev == repositories.StateStopped {
			return
		}
		c.metrics.RecordBackendState(c.provider, string(c.speaker), repositories.StateStopped.String())
		c.audio.Close()

		if prev != repositories.StateActive {
			// Connect owns the connection until it reaches Active
			return
		}

		if ctx == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.Background(), c.opts.StopTimeout)
			defer cancel()
		}

		select {
		case <-c.senderDone:
		case <-ctx.Done():
			c.logger.Warn("Recognizer flush timed out")
		}

		grace := time.NewTimer(c.opts.FlushGrace)
		defer grace.Stop()
		select {
		case <-c.receiverDone:
		case <-grace.C:
		case <-ctx.Done():
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if err := conn.Close(); err != nil {
			c.logger.Debug("Recognizer close", zap.Error(err))
		}

		select {
		case <-c.receiverDone:
		case <-ctx.Done():
		}
		c.logger.Info("Recognizer stopped")
	})
}

func (c *Capability) sendLoop(conn Conn) {
	defer close(c.senderDone)

	for {
		pcm, ok := c.audio.Dequeue(context.Background(), c.opts.KeepAlive)
		if ok {
			if err := conn.SendAudio(pcm); err != nil {
				c.logger.Debug("Failed to send audio", zap.Error(err))
			}
			continue
		}

		if c.State() != repositories.StateActive {
			if err := conn.Finalize(); err != nil {
				c.logger.Debug("Failed to send final message", zap.Error(err))
			}
			return
		}

		if err := conn.KeepAlive(); err != nil {
			c.logger.Debug("Failed to send keepalive", zap.Error(err))
		}
	}
}

func (c *Capability) receiveLoop(conn Conn) {
	defer close(c.receiverDone)

	for {
		results, err := conn.Receive()
		if err != nil {
			if c.State() == repositories.StateActive {
				c.logger.Warn("Recognizer stream failed",
					zap.Error(fmt.Errorf("%w: %v", domain.ErrBackendStream, err)))
				// shutdown waits for this goroutine, so it cannot run inline
				go c.shutdown(nil)
			}
			return
		}
		for _, r := range results {
			c.emit(r)
		}
	}
}

func (c *Capability) emit(r Recognition) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}

	// script wins, then the backend's label, then the baseline
	lang, ok := language.DetectScript(text)
	if !ok {
		lang = c.opts.Baseline
		if r.Language != "" {
			lang = language.Normalize(r.Language)
		}
	}

	event := entities.TranscriptEvent{
		Speaker:      c.speaker,
		Text:         text,
		IsFinal:      r.IsFinal,
		LanguageCode: lang,
		Confidence:   r.Confidence,
		Timestamp:    time.Now(),
	}

	c.mu.Lock()
	handlers := make([]repositories.TranscriptHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
