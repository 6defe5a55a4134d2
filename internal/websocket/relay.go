package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/callsession"
	"github.com/satriahrh/callrelay/internal/metrics"
	"github.com/satriahrh/callrelay/usecase"
)

// RelayOptions tune the per-call tasks. Zero values take defaults.
type RelayOptions struct {
	ConnectTimeout time.Duration
	StopTimeout    time.Duration
	ArchiveTimeout time.Duration
	DispatcherGain float64
	// IdleWait is how long the egress drain waits on an empty queue.
	IdleWait time.Duration
	// FramePace is the real-time spacing of frames toward the transport.
	FramePace time.Duration
}

func (o RelayOptions) withDefaults() RelayOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	if o.ArchiveTimeout <= 0 {
		o.ArchiveTimeout = 10 * time.Second
	}
	if o.DispatcherGain <= 0 {
		o.DispatcherGain = 1
	}
	if o.IdleWait <= 0 {
		o.IdleWait = 5 * time.Millisecond
	}
	if o.FramePace <= 0 {
		o.FramePace = 20 * time.Millisecond
	}
	return o
}

// Relay moves call audio between the telephony stream, the recognizers
// and the subscribers, and owns each call's teardown.
type Relay struct {
	registry     *callsession.Registry
	hub          *Hub
	transcribers repositories.TranscriberFactory
	translation  *usecase.TranslationService
	archive      *usecase.ArchiveService
	opts         RelayOptions
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewRelay wires the orchestrator. transcribers and archive may be nil.
func NewRelay(
	registry *callsession.Registry,
	hub *Hub,
	transcribers repositories.TranscriberFactory,
	translation *usecase.TranslationService,
	archive *usecase.ArchiveService,
	opts RelayOptions,
	m *metrics.Collector,
	logger *zap.Logger,
) *Relay {
	return &Relay{
		registry:     registry,
		hub:          hub,
		transcribers: transcribers,
		translation:  translation,
		archive:      archive,
		opts:         opts.withDefaults(),
		metrics:      m,
		logger:       logger.With(zap.String("component", "relay")),
	}
}

func (r *Relay) Registry() *callsession.Registry {
	return r.registry
}

func (r *Relay) Hub() *Hub {
	return r.hub
}

// Baseline is the language assumed for a party until one is detected.
func (r *Relay) Baseline() string {
	return r.translation.Baseline()
}

// StartCall resolves the session for a starting stream and launches its
// per-session tasks. The returned context ends with the call.
func (r *Relay) StartCall(parent context.Context, callSID, streamSID string) (*callsession.Session, context.Context) {
	session, _ := r.registry.Start(callSID, streamSID)
	ctx := session.Bind(parent)

	r.attachTranscribers(ctx, session)
	go r.pumpBroadcast(ctx, session)
	go r.playout(ctx, session)
	go r.translation.RunTurns(ctx, session)

	r.hub.NotifyCall(domain.MessageCallStarted, callSID, session.Caller())
	r.logger.Info("Call stream started",
		zap.String("callSid", callSID),
		zap.String("callerNumber", session.CallerNumber()))
	return session, ctx
}

// attachTranscribers gives each party a fresh recognizer and connects
// them in the background. A party whose recognizer fails to connect is
// simply not transcribed.
func (r *Relay) attachTranscribers(ctx context.Context, session *callsession.Session) {
	if r.transcribers == nil {
		return
	}
	if previous := session.DetachTranscribers(); len(previous) > 0 {
		go r.stopTranscribers(session.CallSID(), previous)
	}

	attached := make(map[entities.Track]repositories.Transcriber, 2)
	for _, track := range []entities.Track{entities.TrackCaller, entities.TrackDispatcher} {
		t, err := r.transcribers.NewTranscriber(track, repositories.AudioConfig{
			SampleRate: audio.WidebandRate,
			Encoding:   "linear16",
		})
		if err != nil {
			r.logger.Warn("Transcriber unavailable", zap.String("speaker", string(track)), zap.Error(err))
			continue
		}
		t.OnTranscript(func(event entities.TranscriptEvent) {
			r.translation.HandleTranscript(session, event)
		})
		session.AttachTranscriber(track, t)
		attached[track] = t
	}

	go func() {
		var g errgroup.Group
		for track, t := range attached {
			g.Go(func() error {
				connectCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
				defer cancel()
				if err := t.Connect(connectCtx); err != nil {
					return fmt.Errorf("%s: %w", track, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			r.logger.Warn("Call continues without full transcription",
				zap.String("callSid", session.CallSID()),
				zap.Error(err))
		}
	}()
}

func (r *Relay) stopTranscribers(callSID string, transcribers map[entities.Track]repositories.Transcriber) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.StopTimeout)
	defer cancel()

	var g errgroup.Group
	for track, t := range transcribers {
		g.Go(func() error {
			if err := t.Stop(ctx); err != nil {
				return fmt.Errorf("%s: %w", track, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("Transcriber stop failed", zap.String("callSid", callSID), zap.Error(err))
	}
}

// HandleCallerMedia is the hot path for one inbound telephony frame.
// Malformed frames are counted and dropped.
func (r *Relay) HandleCallerMedia(session *callsession.Session, payload string) {
	samples, err := audio.DecodeTelephonyPayload(payload)
	if err != nil {
		session.CountCodecError()
		r.metrics.RecordCodecError(string(entities.TrackCaller))
		r.logger.Debug("Dropping caller frame", zap.String("callSid", session.CallSID()), zap.Error(err))
		return
	}
	session.CountCallerFrame()
	r.metrics.RecordFrame(string(entities.TrackCaller), "ingress")

	frame := entities.NewAudioFrame(entities.TrackCaller, entities.WidebandPCM, audio.PCMToBytes(samples))
	if t, ok := session.Transcriber(entities.TrackCaller); ok {
		t.StreamAudio(frame)
	}
	session.Record(samples)
	session.Broadcast.TryEnqueue(frame)
}

// DrainEgress forwards queued mu-law frames to send, one per FramePace,
// until ctx ends or send fails.
func (r *Relay) DrainEgress(ctx context.Context, session *callsession.Session, send func(frame []byte) error) error {
	pace := time.NewTicker(r.opts.FramePace)
	defer pace.Stop()

	for {
		chunk, ok := session.Egress.Dequeue(ctx, r.opts.IdleWait)
		if ctx.Err() != nil {
			return nil
		}
		if !ok {
			if session.Egress.Closed() {
				return nil
			}
			continue
		}
		for _, frame := range chunk {
			select {
			case <-ctx.Done():
				return nil
			case <-pace.C:
			}
			if err := send(frame); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrTransportDisconnect, err)
			}
			session.CountEgressFrame()
			r.metrics.RecordFrame(string(entities.TrackDispatcher), "egress")
		}
	}
}

// pumpBroadcast relays caller audio to listening dashboards on its own
// cadence so slow subscribers never hold up egress.
func (r *Relay) pumpBroadcast(ctx context.Context, session *callsession.Session) {
	for {
		frame, ok := session.Broadcast.Dequeue(ctx, time.Second)
		if ctx.Err() != nil || (!ok && session.Broadcast.Closed()) {
			return
		}
		if !ok {
			continue
		}
		if r.hub.PublishAudio(session.CallerNumber(), frame) > 0 {
			r.metrics.RecordFrame(string(entities.TrackCaller), "broadcast")
		}
	}
}

// playout feeds synthesized turns into egress one frame per FramePace.
// A turn finishes before the next one starts.
func (r *Relay) playout(ctx context.Context, session *callsession.Session) {
	ticker := time.NewTicker(r.opts.FramePace)
	defer ticker.Stop()

	for {
		turn, ok := session.Playout.Dequeue(ctx, time.Second)
		if ctx.Err() != nil || (!ok && session.Playout.Closed()) {
			return
		}
		if !ok {
			continue
		}
		for _, frame := range turn {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			session.Egress.TryEnqueue([][]byte{frame})
		}
		r.logger.Debug("Synthesized turn played", zap.String("callSid", session.CallSID()), zap.Int("frames", len(turn)))
	}
}

// EndCall tears the call down. Only the first caller, whichever
// terminal path it comes from, does the work; it reports whether this
// call did.
func (r *Relay) EndCall(session *callsession.Session, reason entities.EndReason) bool {
	return session.End(func() {
		session.Cancel()
		r.stopTranscribers(session.CallSID(), session.DetachTranscribers())

		if r.archive != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.ArchiveTimeout)
			r.archive.Archive(ctx, session, reason)
			cancel()
		}

		session.ClearLanguage()
		r.registry.Remove(session.CallSID())
		r.hub.NotifyCall(domain.MessageCallEnded, session.CallSID(), session.Caller())
		r.metrics.RecordSessionEnd(string(reason))

		stats := session.Stats()
		r.logger.Info("Call ended",
			zap.String("callSid", session.CallSID()),
			zap.String("reason", string(reason)),
			zap.Int64("callerFrames", stats.CallerFrames),
			zap.Int64("egressFrames", stats.EgressFrames),
			zap.Uint64("egressOverflows", stats.EgressOverflows))
	})
}

// Shutdown ends every call still in the registry.
func (r *Relay) Shutdown(ctx context.Context) error {
	sessions := r.registry.List()
	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			r.EndCall(s, entities.EndReasonShutdown)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("All calls ended", zap.Int("count", len(sessions)))
		return nil
	case <-ctx.Done():
		return errors.Join(ctx.Err(), fmt.Errorf("%d calls still tearing down", r.registry.Len()))
	}
}
