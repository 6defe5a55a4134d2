package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const deepgramWriteWait = 10 * time.Second

// DeepgramConfig holds configuration for the Deepgram realtime API
type DeepgramConfig struct {
	APIKey      string
	URL         string
	Model       string
	Language    string
	SampleRate  int
	Endpointing int
}

func (cfg DeepgramConfig) streamURL() (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	endpointing := cfg.Endpointing
	if endpointing == 0 {
		endpointing = 100
	}

	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("language", cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(endpointing))
	q.Set("vad_events", "true")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewDeepgramDialer returns a Dialer for Deepgram's streaming listen endpoint
func NewDeepgramDialer(cfg DeepgramConfig) Dialer {
	return func(ctx context.Context) (Conn, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("deepgram api key is required")
		}
		endpoint, err := cfg.streamURL()
		if err != nil {
			return nil, err
		}

		headers := http.Header{}
		headers.Set("Authorization", "Token "+cfg.APIKey)

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
		if err != nil {
			if resp != nil {
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				return nil, fmt.Errorf("deepgram connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("deepgram connect: %w", err)
		}
		return &deepgramConn{conn: conn}, nil
	}
}

type deepgramConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

type deepgramControl struct {
	Type string `json:"type"`
}

type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string   `json:"transcript"`
			Confidence float64  `json:"confidence"`
			Languages  []string `json:"languages"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (d *deepgramConn) write(messageType int, payload []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(deepgramWriteWait))
	return d.conn.WriteMessage(messageType, payload)
}

func (d *deepgramConn) control(kind string) error {
	payload, err := json.Marshal(deepgramControl{Type: kind})
	if err != nil {
		return err
	}
	return d.write(websocket.TextMessage, payload)
}

func (d *deepgramConn) SendAudio(pcm []byte) error {
	return d.write(websocket.BinaryMessage, pcm)
}

func (d *deepgramConn) KeepAlive() error {
	return d.control("KeepAlive")
}

func (d *deepgramConn) Finalize() error {
	return d.control("CloseStream")
}

func (d *deepgramConn) Receive() ([]Recognition, error) {
	for {
		messageType, payload, err := d.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var resp deepgramResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}
		// SpeechStarted, UtteranceEnd and Metadata carry no transcript
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		alt := resp.Channel.Alternatives[0]
		confidence := alt.Confidence
		r := Recognition{
			Text:       alt.Transcript,
			IsFinal:    resp.IsFinal,
			Confidence: &confidence,
		}
		if len(alt.Languages) > 0 {
			r.Language = alt.Languages[0]
		}
		return []Recognition{r}, nil
	}
}

func (d *deepgramConn) Close() error {
	return d.conn.Close()
}
