// Package callsession owns the live state of every call in progress.
package callsession

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/queue"
)

// Session is the live state of one call. Structural fields are guarded
// by mu; audio moves through the queues without taking it.
type Session struct {
	callSID   string
	createdAt time.Time

	mu           sync.RWMutex
	streamSID    string
	caller       entities.CallerInfo
	active       bool
	startedAt    time.Time
	language     entities.LanguageState
	transcripts  []entities.TranscriptEvent
	transcribers map[entities.Track]repositories.Transcriber
	cancel       context.CancelFunc

	// Egress holds payload buffers bound for the telephony transport. Each
	// item is a run of 8 kHz mu-law frames from one ingress chunk.
	Egress *queue.Queue[[][]byte]
	// Broadcast holds caller frames for passive subscribers.
	Broadcast *queue.Queue[entities.AudioFrame]
	// Playout holds synthesized turns, each a run of mu-law frames.
	Playout *queue.Queue[[][]byte]
	// Turns holds dispatcher turns waiting for the translation worker.
	Turns *queue.Queue[Turn]

	recMu        sync.Mutex
	recording    []int16
	maxRecording int

	callerFrames     atomic.Int64
	dispatcherFrames atomic.Int64
	egressFrames     atomic.Int64
	codecErrors      atomic.Int64

	endOnce sync.Once
	ended   atomic.Bool
}

// Turn is a final dispatcher utterance in a language the caller does not
// share.
type Turn struct {
	Event  entities.TranscriptEvent
	Source string
	Target string
}

func newSession(callSID string, opts Options) *Session {
	return &Session{
		callSID:      callSID,
		createdAt:    time.Now(),
		caller:       entities.CallerInfo{Number: entities.UnknownCaller},
		transcribers: make(map[entities.Track]repositories.Transcriber),
		Egress:       queue.New[[][]byte](opts.EgressCapacity, queue.WithOverflowHook(opts.Metrics.OverflowHook("egress"))),
		Broadcast:    queue.New[entities.AudioFrame](opts.BroadcastCapacity, queue.WithOverflowHook(opts.Metrics.OverflowHook("broadcast"))),
		Playout:      queue.New[[][]byte](queue.PlayoutCapacity, queue.WithOverflowHook(opts.Metrics.OverflowHook("playout"))),
		Turns:        queue.New[Turn](queue.TurnCapacity, queue.WithOverflowHook(opts.Metrics.OverflowHook("turns"))),
		maxRecording: int(opts.MaxRecording.Seconds()) * 16000,
	}
}

func (s *Session) CallSID() string {
	return s.callSID
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) StreamSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamSID
}

func (s *Session) Caller() entities.CallerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caller
}

func (s *Session) CallerNumber() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caller.Number
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Start marks the media stream live. A restarted stream replaces the
// stream identifier but keeps everything else.
func (s *Session) Start(streamSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = streamSID
	s.active = true
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
}

func (s *Session) setCaller(info entities.CallerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.Number == "" {
		info.Number = entities.UnknownCaller
	}
	s.caller = info
}

// Bind derives the context every per-session goroutine runs under.
// Teardown cancels it.
func (s *Session) Bind(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()
	return ctx
}

// Cancel stops every goroutine bound to the session.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) Language() entities.LanguageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetCallerLanguage records the caller's language. Empty codes and the
// baseline never overwrite a detected language; it reports whether the
// state changed.
func (s *Session) SetCallerLanguage(code, baseline string) bool {
	if code == "" || code == baseline {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.language.CallerLanguage == code {
		return false
	}
	s.language.CallerLanguage = code
	return true
}

func (s *Session) SetDispatcherLanguage(code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language.DispatcherLanguage = code
}

func (s *Session) ClearLanguage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = entities.LanguageState{}
}

// AppendTranscript keeps final turns for the archive.
func (s *Session) AppendTranscript(event entities.TranscriptEvent) {
	if !event.IsFinal {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, event)
}

func (s *Session) Transcripts() []entities.TranscriptEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.TranscriptEvent, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}

func (s *Session) AttachTranscriber(track entities.Track, t repositories.Transcriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribers[track] = t
}

func (s *Session) Transcriber(track entities.Track) (repositories.Transcriber, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcribers[track]
	return t, ok
}

// DetachTranscribers removes and returns every attached transcriber.
func (s *Session) DetachTranscribers() map[entities.Track]repositories.Transcriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.transcribers
	s.transcribers = make(map[entities.Track]repositories.Transcriber)
	return out
}

// Record appends wideband caller audio to the call recording.
func (s *Session) Record(samples []int16) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.maxRecording > 0 && len(s.recording)+len(samples) > s.maxRecording {
		return
	}
	s.recording = append(s.recording, samples...)
}

func (s *Session) Recording() []int16 {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	out := make([]int16, len(s.recording))
	copy(out, s.recording)
	return out
}

func (s *Session) CountCallerFrame()     { s.callerFrames.Add(1) }
func (s *Session) CountDispatcherFrame() { s.dispatcherFrames.Add(1) }
func (s *Session) CountEgressFrame()     { s.egressFrames.Add(1) }
func (s *Session) CountCodecError()      { s.codecErrors.Add(1) }

func (s *Session) Stats() entities.CallStats {
	return entities.CallStats{
		CallerFrames:       s.callerFrames.Load(),
		DispatcherFrames:   s.dispatcherFrames.Load(),
		EgressFrames:       s.egressFrames.Load(),
		CodecErrors:        s.codecErrors.Load(),
		EgressOverflows:    s.Egress.Overflows(),
		BroadcastOverflows: s.Broadcast.Overflows(),
	}
}

// End runs teardown exactly once, whichever terminal path gets here
// first. It reports whether this call ran it.
func (s *Session) End(teardown func()) bool {
	ran := false
	s.endOnce.Do(func() {
		ran = true
		s.ended.Store(true)
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		teardown()
	})
	return ran
}

func (s *Session) Ended() bool {
	return s.ended.Load()
}

func (s *Session) closeQueues() {
	s.Egress.Close()
	s.Broadcast.Close()
	s.Playout.Close()
	s.Turns.Close()
	s.Egress.Drain()
	s.Broadcast.Drain()
	s.Playout.Drain()
	s.Turns.Drain()
}
