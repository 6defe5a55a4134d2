package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
)

// fakeSubscriber records payloads and can be told to fail
type fakeSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
}

func (f *fakeSubscriber) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.ErrDelivery
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSubscriber) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.payloads))
	for _, p := range f.payloads {
		var m struct {
			Type string `json:"type"`
		}
		json.Unmarshal(p, &m)
		out = append(out, m.Type)
	}
	return out
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func setupTestHub(t testing.TB) *Hub {
	return NewHub(nil, zap.NewNop())
}

func TestHub_NewHub(t *testing.T) {
	hub := setupTestHub(t)

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.topics == nil {
		t.Error("Hub topics map not initialized")
	}
}

func TestHub_FailingSubscriberIsIsolated(t *testing.T) {
	hub := setupTestHub(t)
	subs := []*fakeSubscriber{{}, {fail: true}, {}}
	for _, s := range subs {
		hub.AddSubscriber("+15550100", s)
	}

	delivered := hub.Publish("+15550100", map[string]string{"type": "transcription"})
	if delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", delivered)
	}
	if subs[0].count() != 1 || subs[2].count() != 1 {
		t.Errorf("Healthy subscribers should each get the message, got %d and %d", subs[0].count(), subs[2].count())
	}
	if hub.Count("+15550100") != 2 {
		t.Errorf("Failing subscriber should be removed, %d left", hub.Count("+15550100"))
	}

	hub.Publish("+15550100", map[string]string{"type": "transcription"})
	if subs[0].count() != 2 || subs[2].count() != 2 {
		t.Error("Healthy subscribers should keep receiving")
	}
}

func TestHub_RemoveSubscriber(t *testing.T) {
	hub := setupTestHub(t)
	sub := &fakeSubscriber{}

	hub.AddSubscriber("topic", sub)
	if !hub.RemoveSubscriber("topic", sub) {
		t.Error("First removal should report true")
	}
	if hub.RemoveSubscriber("topic", sub) {
		t.Error("Second removal should report false")
	}
	if len(hub.TranscriptionTopics()) != 0 {
		t.Error("Empty topics should be dropped")
	}
	if hub.Publish("topic", "x") != 0 {
		t.Error("Publish to an empty topic should deliver nothing")
	}
}

func TestHub_PublishTranscriptionReachesAllTopicOnce(t *testing.T) {
	hub := setupTestHub(t)
	caller := &fakeSubscriber{}
	watcher := &fakeSubscriber{}
	other := &fakeSubscriber{}
	hub.AddSubscriber("+15550100", caller)
	hub.AddSubscriber(TopicAll, watcher)
	hub.AddSubscriber("+15550199", other)
	// subscribed twice through both topics
	hub.AddSubscriber(TopicAll, caller)

	hub.PublishTranscription("+15550100", domain.TranscriptionMessage{Type: domain.MessageTranscription, Message: "hello"})

	if caller.count() != 1 {
		t.Errorf("Caller client should get exactly one copy, got %d", caller.count())
	}
	if watcher.count() != 1 {
		t.Errorf("All-calls client should get the message, got %d", watcher.count())
	}
	if other.count() != 0 {
		t.Error("Other callers must not see the message")
	}
}

func TestHub_NotifyCall(t *testing.T) {
	hub := setupTestHub(t)
	sub := &fakeSubscriber{}
	hub.AddSubscriber(TopicNotifications, sub)

	hub.NotifyCall(domain.MessageCallStarted, "CA1", entities.CallerInfo{Number: "+15550100", City: "Pune"})

	var msg domain.CallEventMessage
	sub.mu.Lock()
	err := json.Unmarshal(sub.payloads[0], &msg)
	sub.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to decode notification: %v", err)
	}
	if msg.Type != "call_started" || msg.CallSID != "CA1" || msg.CallerNumber != "+15550100" || msg.CallerCity != "Pune" {
		t.Errorf("Unexpected notification: %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err != nil {
		t.Errorf("Timestamp is not RFC3339: %v", err)
	}
}

func TestHub_ConcurrentPublishAndRemove(t *testing.T) {
	hub := setupTestHub(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		sub := &fakeSubscriber{fail: i%2 == 0}
		hub.AddSubscriber("t", sub)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish("t", "x")
		}()
	}
	wg.Wait()

	if hub.Count("t") != 5 {
		t.Errorf("Expected 5 healthy subscribers, got %d", hub.Count("t"))
	}
}

func TestHub_ErrDeliveryIsSentinel(t *testing.T) {
	sub := &fakeSubscriber{fail: true}
	if err := sub.Send(nil); !errors.Is(err, domain.ErrDelivery) {
		t.Errorf("Expected ErrDelivery, got %v", err)
	}
}
