package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
)

// MediaEventType is the "event" field of a telephony media stream message
type MediaEventType string

// Media stream events
const (
	EventConnected MediaEventType = "connected"
	EventStart     MediaEventType = "start"
	EventMedia     MediaEventType = "media"
	EventMark      MediaEventType = "mark"
	EventStop      MediaEventType = "stop"
)

// Media tracks as the telephony provider names them
const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// MediaEvent is one message on the telephony media socket
type MediaEvent struct {
	Event          MediaEventType `json:"event"`
	SequenceNumber string         `json:"sequenceNumber,omitempty"`
	StreamSID      string         `json:"streamSid,omitempty"`
	Start          *StartPayload  `json:"start,omitempty"`
	Media          *MediaPayload  `json:"media,omitempty"`
	Stop           *StopPayload   `json:"stop,omitempty"`
}

// StartPayload opens a stream
type StartPayload struct {
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one base64 mu-law frame
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload closes a stream
type StopPayload struct {
	CallSID string `json:"callSid,omitempty"`
}

// OutboundMedia is what the relay writes back to the telephony socket
type OutboundMedia struct {
	Event     MediaEventType  `json:"event"`
	StreamSID string          `json:"streamSid"`
	Media     OutboundPayload `json:"media"`
}

// OutboundPayload is the media body of an outbound frame
type OutboundPayload struct {
	Payload string `json:"payload"`
	Track   string `json:"track"`
}

// ParseMediaEvent decodes and validates a media stream message
func ParseMediaEvent(data []byte) (*MediaEvent, error) {
	var ev MediaEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch ev.Event {
	case EventStart:
		if ev.Start == nil || ev.Start.CallSID == "" {
			return nil, fmt.Errorf("start event requires callSid")
		}
		if ev.Start.StreamSID == "" {
			ev.Start.StreamSID = ev.StreamSID
		}
	case EventMedia:
		if ev.Media == nil {
			return nil, fmt.Errorf("media event requires media")
		}
		if ev.Media.Track == "" {
			ev.Media.Track = TrackInbound
		}
	case EventStop, EventConnected, EventMark:
	case "":
		return nil, fmt.Errorf("message missing event field")
	default:
		return nil, fmt.Errorf("unsupported event: %s", ev.Event)
	}
	return &ev, nil
}

// NewOutboundMedia wraps a mu-law frame for the telephony socket
func NewOutboundMedia(streamSID string, frame []byte) OutboundMedia {
	return OutboundMedia{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: OutboundPayload{
			Payload: base64.StdEncoding.EncodeToString(frame),
			Track:   TrackOutbound,
		},
	}
}

// ClientMessageType defines the type of a message sent by a subscriber
type ClientMessageType string

// Supported subscriber message types
const (
	ClientAudio     ClientMessageType = "audio"
	ClientPing      ClientMessageType = "ping"
	ClientKeepalive ClientMessageType = "keepalive"
)

// ClientMessage is anything a dashboard sends on its socket. Audio is
// base64 PCM16 at 16 kHz.
type ClientMessage struct {
	Type         ClientMessageType `json:"type"`
	Audio        string            `json:"audio,omitempty"`
	CallerNumber string            `json:"caller_number,omitempty"`
}

// MessageValidator provides validation for subscriber messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses a subscriber message. Unknown types are
// treated as pings so that any traffic gets a keepalive back.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case ClientAudio:
		if msg.Audio == "" {
			return nil, fmt.Errorf("audio is required")
		}
	case ClientPing, ClientKeepalive:
	default:
		msg.Type = ClientPing
	}
	return &msg, nil
}

// NewAudioMessage renders a caller frame for listening dashboards
func NewAudioMessage(frame entities.AudioFrame) domain.AudioMessage {
	return domain.AudioMessage{
		Type:       domain.MessageAudio,
		Audio:      base64.StdEncoding.EncodeToString(frame.Payload),
		SampleRate: frame.Format.SampleRate,
		Encoding:   frame.Format.Encoding,
		Timestamp:  domain.Timestamp(frame.ArrivedAt),
	}
}

// NewConnectedMessage greets a subscriber
func NewConnectedMessage(callerNumber, text string) domain.ConnectedMessage {
	return domain.ConnectedMessage{
		Type:         domain.MessageConnected,
		CallerNumber: callerNumber,
		Message:      text,
	}
}

func newKeepalive() domain.KeepaliveMessage {
	return domain.KeepaliveMessage{Type: domain.MessageKeepalive, Timestamp: domain.Timestamp(time.Now())}
}
