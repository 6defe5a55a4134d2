package stt

import (
	"context"
	"io"
	"sync"
)

// MockConfig scripts the mock recognizer.
type MockConfig struct {
	// Phrases are emitted in order, one per BytesPerPhrase of audio.
	Phrases        []string
	BytesPerPhrase int
	Language       string
}

var defaultMockPhrases = []string{
	"Hello, I need help",
	"There is a fire near the market",
	"Please send someone quickly",
}

// NewMockDialer returns a Dialer for a local recognizer that needs no
// network access.
func NewMockDialer(cfg MockConfig) Dialer {
	if len(cfg.Phrases) == 0 {
		cfg.Phrases = defaultMockPhrases
	}
	if cfg.BytesPerPhrase <= 0 {
		// two seconds of 16kHz linear16
		cfg.BytesPerPhrase = 64000
	}
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &mockConn{
			cfg:     cfg,
			results: make(chan Recognition, len(cfg.Phrases)),
			done:    make(chan struct{}),
		}, nil
	}
}

type mockConn struct {
	cfg       MockConfig
	mu        sync.Mutex
	received  int
	next      int
	results   chan Recognition
	done      chan struct{}
	closeOnce sync.Once
}

func (m *mockConn) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received += len(pcm)
	for m.next < len(m.cfg.Phrases) && m.received >= (m.next+1)*m.cfg.BytesPerPhrase {
		confidence := 0.9
		m.results <- Recognition{
			Text:       m.cfg.Phrases[m.next],
			IsFinal:    true,
			Confidence: &confidence,
			Language:   m.cfg.Language,
		}
		m.next++
	}
	return nil
}

func (m *mockConn) KeepAlive() error { return nil }

func (m *mockConn) Finalize() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConn) Receive() ([]Recognition, error) {
	select {
	case r := <-m.results:
		return []Recognition{r}, nil
	case <-m.done:
		// flush whatever was recognized before the final message
		select {
		case r := <-m.results:
			return []Recognition{r}, nil
		default:
			return nil, io.EOF
		}
	}
}

func (m *mockConn) Close() error {
	return m.Finalize()
}
