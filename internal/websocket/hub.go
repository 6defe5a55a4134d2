package websocket

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/internal/metrics"
)

// Well-known topics. Every other topic is a caller number.
const (
	TopicNotifications = "notifications"
	TopicAll           = "all"
)

// Subscriber is anything that can take a serialized message. Send must
// not block; a failed Send gets the subscriber removed.
type Subscriber interface {
	Send(payload []byte) error
}

// Hub fans messages out to the subscribers of a topic. It is scoped to
// call traffic: notification clients and per-caller transcript clients.
type Hub struct {
	// Subscribers per topic.
	topics map[string]map[Subscriber]struct{}

	// Mutex for thread-safe access to topics map
	mu sync.RWMutex

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewHub creates a new subscriber hub
func NewHub(m *metrics.Collector, logger *zap.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[Subscriber]struct{}),
		metrics: m,
		logger:  logger.With(zap.String("component", "hub")),
	}
}

// AddSubscriber registers sub for topic.
func (h *Hub) AddSubscriber(topic string, sub Subscriber) {
	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	n := len(subs)
	h.mu.Unlock()

	h.updateGauges()
	h.logger.Info("Subscriber registered", zap.String("topic", topic), zap.Int("total", n))
}

// RemoveSubscriber unregisters sub. Empty topics are dropped. It reports
// whether sub was registered.
func (h *Hub) RemoveSubscriber(topic string, sub Subscriber) bool {
	h.mu.Lock()
	subs, ok := h.topics[topic]
	if ok {
		_, ok = subs[sub]
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()

	if ok {
		h.updateGauges()
		h.logger.Info("Subscriber unregistered", zap.String("topic", topic))
	}
	return ok
}

// Publish delivers v to every subscriber of topic and returns how many
// took it.
func (h *Hub) Publish(topic string, v any) int {
	return h.publish([]string{topic}, v)
}

// publish marshals v once and sends it to the union of the topics'
// subscribers, each at most once.
func (h *Hub) publish(topics []string, v any) int {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return 0
	}

	type target struct {
		topic string
		sub   Subscriber
	}
	seen := make(map[Subscriber]struct{})
	var targets []target
	h.mu.RLock()
	for _, topic := range topics {
		for sub := range h.topics[topic] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}
			targets = append(targets, target{topic, sub})
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		if err := t.sub.Send(payload); err != nil {
			h.metrics.RecordDeliveryFailure()
			h.logger.Warn("Dropping subscriber after failed delivery",
				zap.String("topic", t.topic),
				zap.Error(err))
			h.RemoveSubscriber(t.topic, t.sub)
			continue
		}
		delivered++
	}
	return delivered
}

// PublishTranscription sends a transcript turn to the caller's clients
// and to clients following every call.
func (h *Hub) PublishTranscription(callerNumber string, msg domain.TranscriptionMessage) {
	h.publish([]string{callerNumber, TopicAll}, msg)
}

// PublishAudio relays one caller frame to the caller's clients.
func (h *Hub) PublishAudio(callerNumber string, frame entities.AudioFrame) int {
	return h.Publish(callerNumber, NewAudioMessage(frame))
}

// NotifyCall announces a call lifecycle change to notification clients.
func (h *Hub) NotifyCall(kind, callSID string, caller entities.CallerInfo) {
	n := h.Publish(TopicNotifications, domain.NewCallEvent(kind, callSID, caller, time.Now()))
	h.logger.Info("Call event published",
		zap.String("type", kind),
		zap.String("callSid", callSID),
		zap.Int("delivered", n))
}

// Count returns the number of subscribers on topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TranscriptionTopics lists the topics that have transcript clients.
func (h *Hub) TranscriptionTopics() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.topics))
	for topic := range h.topics {
		if topic != TopicNotifications {
			out = append(out, topic)
		}
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (h *Hub) updateGauges() {
	if h.metrics == nil {
		return
	}
	h.mu.RLock()
	notifications, transcripts := 0, 0
	for topic, subs := range h.topics {
		if topic == TopicNotifications {
			notifications += len(subs)
		} else {
			transcripts += len(subs)
		}
	}
	h.mu.RUnlock()
	h.metrics.SetSubscribers("notifications", notifications)
	h.metrics.SetSubscribers("transcription", transcripts)
}

// ErrSubscriberClosed is returned by Send after the client went away.
var ErrSubscriberClosed = errors.New("subscriber closed")
