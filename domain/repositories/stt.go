package repositories

import (
	"context"

	"github.com/satriahrh/callrelay/domain/entities"
)

// CapabilityState is the lifecycle of one backend connection.
// Idle -> Connecting -> Active -> Stopped; nothing returns to Active.
type CapabilityState int32

const (
	StateIdle CapabilityState = iota
	StateConnecting
	StateActive
	StateStopped
)

func (s CapabilityState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TranscriptHandler receives one call per recognizer turn
type TranscriptHandler func(entities.TranscriptEvent)

// Transcriber is a streaming speech recognition capability bound to one
// party of one call. A stopped Transcriber cannot be restarted; create a
// new one to retry.
type Transcriber interface {
	// Connect dials the backend. It fails with domain.ErrBackendConnect
	// or leaves the capability Active.
	Connect(ctx context.Context) error
	// StreamAudio queues a frame for the sender goroutine. It never
	// blocks and silently drops frames unless Active.
	StreamAudio(frame entities.AudioFrame)
	// OnTranscript registers a handler for recognizer turns.
	OnTranscript(handler TranscriptHandler)
	// Stop flushes pending audio with a final message and closes the
	// transport. Safe to call repeatedly and from any goroutine.
	Stop(ctx context.Context) error
	State() CapabilityState
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// TranscriberFactory builds a fresh Transcriber per call party
type TranscriberFactory interface {
	NewTranscriber(speaker entities.Track, config AudioConfig) (Transcriber, error)
	Provider() string
}
