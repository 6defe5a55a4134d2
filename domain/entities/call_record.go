package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallStatus represents where a call is in its lifecycle
type CallStatus string

const (
	CallStatusRinging   CallStatus = "ringing"
	CallStatusStreaming CallStatus = "streaming"
	CallStatusCompleted CallStatus = "completed"
)

// EndReason records which terminal path closed the call
type EndReason string

const (
	EndReasonStop       EndReason = "stop"
	EndReasonDisconnect EndReason = "disconnect"
	EndReasonExpired    EndReason = "expired"
	EndReasonShutdown   EndReason = "shutdown"
)

// CallerInfo is what the inbound-call webhook tells us about the caller
type CallerInfo struct {
	Number  string `json:"number" bson:"number"`
	To      string `json:"to" bson:"to"`
	Name    string `json:"name,omitempty" bson:"name,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
}

// UnknownCaller is used when a stream starts without a provisioned caller
const UnknownCaller = "unknown"

// CallStats are relay counters captured at teardown
type CallStats struct {
	CallerFrames       int64  `json:"caller_frames" bson:"caller_frames"`
	DispatcherFrames   int64  `json:"dispatcher_frames" bson:"dispatcher_frames"`
	EgressFrames       int64  `json:"egress_frames" bson:"egress_frames"`
	CodecErrors        int64  `json:"codec_errors" bson:"codec_errors"`
	EgressOverflows    uint64 `json:"egress_overflows" bson:"egress_overflows"`
	BroadcastOverflows uint64 `json:"broadcast_overflows" bson:"broadcast_overflows"`
}

// CallRecord is the persisted summary of one finished call
type CallRecord struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CallSID     string             `json:"call_sid" bson:"call_sid"`
	StreamSID   string             `json:"stream_sid" bson:"stream_sid"`
	Caller      CallerInfo         `json:"caller" bson:"caller"`
	Status      CallStatus         `json:"status" bson:"status"`
	EndReason   EndReason          `json:"end_reason,omitempty" bson:"end_reason,omitempty"`
	Languages   LanguageState      `json:"languages" bson:"languages"`
	Transcripts []TranscriptEvent  `json:"transcripts" bson:"transcripts"`
	Stats       CallStats          `json:"stats" bson:"stats"`
	Recording   string             `json:"recording,omitempty" bson:"recording,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty" bson:"started_at,omitempty"`
	EndedAt     *time.Time         `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

// NewCallRecord creates a record for a call that is ringing
func NewCallRecord(callSID string, caller CallerInfo) *CallRecord {
	return &CallRecord{
		ID:          primitive.NewObjectID(),
		CallSID:     callSID,
		Caller:      caller,
		Status:      CallStatusRinging,
		Transcripts: make([]TranscriptEvent, 0),
		CreatedAt:   time.Now(),
	}
}

// AddTranscript appends a final transcript line
func (c *CallRecord) AddTranscript(event TranscriptEvent) {
	if !event.IsFinal {
		return
	}
	c.Transcripts = append(c.Transcripts, event)
}

// TranscriptFor returns the final lines spoken by one party
func (c *CallRecord) TranscriptFor(speaker Track) []TranscriptEvent {
	out := make([]TranscriptEvent, 0, len(c.Transcripts))
	for _, t := range c.Transcripts {
		if t.Speaker == speaker {
			out = append(out, t)
		}
	}
	return out
}

// Complete marks the call finished
func (c *CallRecord) Complete(reason EndReason, at time.Time) {
	c.Status = CallStatusCompleted
	c.EndReason = reason
	c.EndedAt = &at
}

// Duration reports how long media streamed
func (c *CallRecord) Duration() time.Duration {
	if c.StartedAt == nil || c.EndedAt == nil {
		return 0
	}
	return c.EndedAt.Sub(*c.StartedAt)
}

// Validate validates the record data
func (c *CallRecord) Validate() error {
	if c.CallSID == "" {
		return errors.New("call_sid is required")
	}

	switch c.Status {
	case CallStatusRinging, CallStatusStreaming, CallStatusCompleted:
	default:
		return errors.New("invalid call status")
	}

	if c.Status == CallStatusCompleted && c.EndedAt == nil {
		return errors.New("completed call requires ended_at")
	}
	return nil
}
