package domain

import (
	"time"

	"github.com/satriahrh/callrelay/domain/entities"
)

// Subscriber message types
const (
	MessageConnected     = "connected"
	MessageCallStarted   = "call_started"
	MessageCallEnded     = "call_ended"
	MessageTranscription = "transcription"
	MessageAudio         = "audio"
	MessageKeepalive     = "keepalive"
)

// ConnectedMessage greets a freshly attached subscriber
type ConnectedMessage struct {
	Type         string `json:"type"`
	CallerNumber string `json:"callerNumber,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CallEventMessage announces call lifecycle changes to notification clients
type CallEventMessage struct {
	Type         string `json:"type"`
	CallerNumber string `json:"callerNumber"`
	CallSID      string `json:"callSid"`
	CallerName   string `json:"callerName,omitempty"`
	CallerCity   string `json:"callerCity,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// TranscriptionMessage carries one transcript turn, optionally translated
type TranscriptionMessage struct {
	Type              string   `json:"type"`
	Speaker           string   `json:"speaker"`
	Message           string   `json:"message"`
	Timestamp         string   `json:"timestamp"`
	CallerNumber      string   `json:"callerNumber"`
	CallSID           string   `json:"callSid,omitempty"`
	IsFinal           bool     `json:"isFinal"`
	LanguageCode      string   `json:"languageCode"`
	Confidence        *float64 `json:"confidence,omitempty"`
	TranslatedMessage string   `json:"translatedMessage,omitempty"`
	TargetLanguage    string   `json:"targetLanguage,omitempty"`
	TranslationNeeded bool     `json:"translationNeeded"`
	TranslationFailed bool     `json:"translationFailed,omitempty"`
}

// AudioMessage relays caller audio to a listening browser
type AudioMessage struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"` // base64 pcm16
	SampleRate int    `json:"sampleRate"`
	Encoding   string `json:"encoding"`
	Timestamp  string `json:"timestamp"`
}

// KeepaliveMessage answers client pings
type KeepaliveMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Timestamp formats t the way every subscriber payload does
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewCallEvent builds a call_started or call_ended notification
func NewCallEvent(kind, callSID string, caller entities.CallerInfo, at time.Time) CallEventMessage {
	return CallEventMessage{
		Type:         kind,
		CallerNumber: caller.Number,
		CallSID:      callSID,
		CallerName:   caller.Name,
		CallerCity:   caller.City,
		Timestamp:    Timestamp(at),
	}
}

// NewTranscriptionMessage renders a transcript event for subscribers
func NewTranscriptionMessage(callSID, callerNumber string, event entities.TranscriptEvent) TranscriptionMessage {
	return TranscriptionMessage{
		Type:         MessageTranscription,
		Speaker:      string(event.Speaker),
		Message:      event.Text,
		Timestamp:    Timestamp(event.Timestamp),
		CallerNumber: callerNumber,
		CallSID:      callSID,
		IsFinal:      event.IsFinal,
		LanguageCode: event.LanguageCode,
		Confidence:   event.Confidence,
	}
}
