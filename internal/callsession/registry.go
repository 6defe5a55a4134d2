package callsession

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/internal/metrics"
	"github.com/satriahrh/callrelay/internal/queue"
)

// Options sizes the per-session queues.
type Options struct {
	EgressCapacity    int
	BroadcastCapacity int
	MaxRecording      time.Duration
	Metrics           *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.EgressCapacity < 1 {
		o.EgressCapacity = queue.CriticalCapacity
	}
	if o.BroadcastCapacity < 1 {
		o.BroadcastCapacity = queue.BroadcastCapacity
	}
	return o
}

// Registry maps call identifiers to live sessions. It is the only
// structure shared between connections outside the queues.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	logger   *zap.Logger
}

func NewRegistry(opts Options, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts.withDefaults(),
		logger:   logger.With(zap.String("component", "session_registry")),
	}
}

// Provision records a call announced by the inbound-call webhook before
// its media stream starts. An existing session keeps its state and only
// takes the new caller metadata.
func (r *Registry) Provision(callSID string, caller entities.CallerInfo) *Session {
	r.mu.Lock()
	s, ok := r.sessions[callSID]
	if !ok {
		s = newSession(callSID, r.opts)
		r.sessions[callSID] = s
	}
	n := len(r.sessions)
	r.mu.Unlock()

	s.setCaller(caller)
	r.opts.Metrics.SetActiveSessions(n)
	r.logger.Info("Call provisioned",
		zap.String("callSid", callSID),
		zap.String("callerNumber", s.CallerNumber()),
		zap.Bool("existing", ok))
	return s
}

// GetOrCreate returns the session for callSID, creating it if the
// stream started without a webhook. created reports which happened.
func (r *Registry) GetOrCreate(callSID string) (s *Session, created bool) {
	r.mu.Lock()
	s, ok := r.sessions[callSID]
	if !ok {
		s = newSession(callSID, r.opts)
		r.sessions[callSID] = s
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		r.opts.Metrics.SetActiveSessions(n)
		r.logger.Info("Call session created", zap.String("callSid", callSID))
	}
	return s, !ok
}

// Start resolves the session for callSID and marks its stream live in
// one step, upgrading a provisioned session in place.
func (r *Registry) Start(callSID, streamSID string) (s *Session, created bool) {
	r.mu.Lock()
	s, ok := r.sessions[callSID]
	if !ok {
		s = newSession(callSID, r.opts)
		r.sessions[callSID] = s
	}
	s.Start(streamSID)
	n := len(r.sessions)
	r.mu.Unlock()

	r.opts.Metrics.SetActiveSessions(n)
	r.logger.Info("Media stream started",
		zap.String("callSid", callSID),
		zap.String("streamSid", streamSID),
		zap.Bool("provisioned", ok))
	return s, !ok
}

func (r *Registry) Get(callSID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callSID]
	return s, ok
}

// FindByCaller returns the most recently started active session for a
// caller number.
func (r *Registry) FindByCaller(callerNumber string) (*Session, bool) {
	var found *Session
	for _, s := range r.ListActive() {
		if s.CallerNumber() == callerNumber {
			found = s
		}
	}
	return found, found != nil
}

// Remove deletes the session and drains its queues. Only the first call
// for a given session does anything; it reports whether it did.
func (r *Registry) Remove(callSID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[callSID]
	if ok {
		delete(r.sessions, callSID)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.closeQueues()
	r.opts.Metrics.SetActiveSessions(n)
	r.logger.Info("Call session removed", zap.String("callSid", callSID))
	return true
}

// ListActive returns sessions whose stream is live, oldest first.
func (r *Registry) ListActive() []*Session {
	out := make([]*Session, 0)
	for _, s := range r.List() {
		if s.Active() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt().Before(out[j].StartedAt())
	})
	return out
}

// List returns every session, including provisioned ones.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RemoveStale drops provisioned sessions whose stream never started
// within ttl and returns them. It holds the registry lock across the
// check so a concurrent Start cannot resurrect a swept session.
func (r *Registry) RemoveStale(ttl time.Duration, now time.Time) []*Session {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.StartedAt().IsZero() && now.Sub(s.CreatedAt()) > ttl {
			delete(r.sessions, id)
			stale = append(stale, s)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range stale {
		s.End(func() {})
		s.closeQueues()
		r.logger.Info("Stale call session removed", zap.String("callSid", s.CallSID()))
	}
	if len(stale) > 0 {
		r.opts.Metrics.SetActiveSessions(n)
	}
	return stale
}
