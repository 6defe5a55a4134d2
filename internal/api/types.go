package api

import (
	"encoding/xml"
	"time"

	"github.com/satriahrh/callrelay/domain/entities"
)

type HealthResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	ActiveCalls int               `json:"active_calls"`
	Failing     map[string]string `json:"failing,omitempty"`
}

// OperatorAuthRequest represents the request payload for operator authentication
type OperatorAuthRequest struct {
	Username string `json:"username" validate:"required"`
	Secret   string `json:"secret" validate:"required"`
}

// OperatorAuthResponse represents the response payload for operator authentication
type OperatorAuthResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	OperatorID string    `json:"operator_id"`
}

// AudioStreamRequest carries base64 PCM16 at 16 kHz from a dispatcher console
type AudioStreamRequest struct {
	Audio        string `json:"audio"`
	CallerNumber string `json:"caller_number"`
}

type AudioStreamResponse struct {
	Status       string `json:"status"`
	CallerNumber string `json:"caller_number"`
}

// ActiveCall is one live call as shown by the status endpoint
type ActiveCall struct {
	CallSID            string     `json:"callSid"`
	StreamSID          string     `json:"streamSid,omitempty"`
	CallerNumber       string     `json:"callerNumber"`
	Streaming          bool       `json:"streaming"`
	CallerLanguage     string     `json:"callerLanguage"`
	DispatcherLanguage string     `json:"dispatcherLanguage"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
}

// StatusResponse describes the subscriber fan-out and live calls
type StatusResponse struct {
	NotificationClients int          `json:"notificationClients"`
	TranscriptionTopics []string     `json:"transcriptionTopics"`
	ActiveCalls         []ActiveCall `json:"activeCalls"`
	Timestamp           string       `json:"timestamp"`
}

type CallListResponse struct {
	Calls []*entities.CallRecord `json:"calls"`
	Count int                    `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// twimlResponse is the voice webhook answer that connects the call to
// the media stream endpoint.
type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
