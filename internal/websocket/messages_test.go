package websocket

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/satriahrh/callrelay/domain/entities"
)

func TestParseMediaEvent(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    MediaEventType
		wantErr bool
	}{
		{
			name:    "start",
			message: `{"event":"start","start":{"callSid":"CA1","streamSid":"MZ1"}}`,
			want:    EventStart,
		},
		{
			name:    "start without call",
			message: `{"event":"start","start":{"streamSid":"MZ1"}}`,
			wantErr: true,
		},
		{
			name:    "media",
			message: `{"event":"media","media":{"track":"inbound","payload":"/w=="}}`,
			want:    EventMedia,
		},
		{
			name:    "media without body",
			message: `{"event":"media"}`,
			wantErr: true,
		},
		{
			name:    "stop",
			message: `{"event":"stop"}`,
			want:    EventStop,
		},
		{
			name:    "connected",
			message: `{"event":"connected","protocol":"Call"}`,
			want:    EventConnected,
		},
		{
			name:    "mark",
			message: `{"event":"mark","mark":{"name":"x"}}`,
			want:    EventMark,
		},
		{
			name:    "unknown event",
			message: `{"event":"dtmf"}`,
			wantErr: true,
		},
		{
			name:    "missing event",
			message: `{}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			message: `{"event":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseMediaEvent([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMediaEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && ev.Event != tt.want {
				t.Errorf("Expected event %s, got %s", tt.want, ev.Event)
			}
		})
	}
}

func TestParseMediaEventDefaults(t *testing.T) {
	ev, err := ParseMediaEvent([]byte(`{"event":"start","streamSid":"MZ9","start":{"callSid":"CA1"}}`))
	if err != nil {
		t.Fatalf("ParseMediaEvent failed: %v", err)
	}
	if ev.Start.StreamSID != "MZ9" {
		t.Errorf("Expected stream id from envelope, got %q", ev.Start.StreamSID)
	}

	ev, err = ParseMediaEvent([]byte(`{"event":"media","media":{"payload":"/w=="}}`))
	if err != nil {
		t.Fatalf("ParseMediaEvent failed: %v", err)
	}
	if ev.Media.Track != TrackInbound {
		t.Errorf("Expected default track inbound, got %q", ev.Media.Track)
	}
}

func TestNewOutboundMedia(t *testing.T) {
	data, err := json.Marshal(NewOutboundMedia("MZ1", []byte{0xff, 0x7f}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"event":"media","streamSid":"MZ1","media":{"payload":"/38=","track":"outbound"}}`
	if string(data) != want {
		t.Errorf("Unexpected outbound frame:\n got %s\nwant %s", data, want)
	}
}

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name     string
		message  string
		wantType ClientMessageType
		wantErr  bool
	}{
		{"audio", `{"type":"audio","audio":"AAA=","caller_number":"+1"}`, ClientAudio, false},
		{"audio without data", `{"type":"audio"}`, "", true},
		{"ping", `{"type":"ping"}`, ClientPing, false},
		{"keepalive", `{"type":"keepalive"}`, ClientKeepalive, false},
		{"anything else is a ping", `{"type":"hello"}`, ClientPing, false},
		{"invalid json", `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && msg.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, msg.Type)
			}
		})
	}
}

func TestNewAudioMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	frame := entities.AudioFrame{
		Track:     entities.TrackCaller,
		Format:    entities.WidebandPCM,
		Payload:   []byte{1, 0, 2, 0},
		ArrivedAt: at,
	}

	msg := NewAudioMessage(frame)
	if msg.Type != "audio" || msg.SampleRate != 16000 || msg.Encoding != "pcm16" {
		t.Errorf("Unexpected audio message: %+v", msg)
	}
	raw, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil || len(raw) != 4 {
		t.Errorf("Audio should round trip, got %v %v", raw, err)
	}
	if msg.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("Unexpected timestamp %s", msg.Timestamp)
	}

	data, _ := json.Marshal(msg)
	var fields map[string]any
	json.Unmarshal(data, &fields)
	for _, key := range []string{"type", "audio", "sampleRate", "encoding", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing field %s in %s", key, data)
		}
	}
}

func TestNewKeepalive(t *testing.T) {
	msg := newKeepalive()
	if msg.Type != "keepalive" || msg.Timestamp == "" {
		t.Errorf("Unexpected keepalive: %+v", msg)
	}
}
