package translation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/callrelay/domain"
)

func TestMyMemoryTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ta|en", r.URL.Query().Get("langpair"))
		assert.Equal(t, "உதவி", r.URL.Query().Get("q"))
		assert.Equal(t, "ops@example.com", r.URL.Query().Get("de"))
		w.Write([]byte(`{"responseData":{"translatedText":"Help &amp; rescue"},"responseStatus":200}`))
	}))
	defer server.Close()

	m := NewMyMemory(MyMemoryConfig{URL: server.URL, Email: "ops@example.com"}, zaptest.NewLogger(t))
	got, err := m.Translate(context.Background(), "உதவி", "ta-IN", "en")
	require.NoError(t, err)
	assert.Equal(t, "Help & rescue", got)
}

func TestMyMemoryFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"quota", http.StatusOK, `{"responseData":{"translatedText":"MYMEMORY WARNING"},"responseStatus":"429","responseDetails":"quota"}`},
		{"http error", http.StatusBadGateway, `bad gateway`},
		{"garbage", http.StatusOK, `not json`},
		{"empty", http.StatusOK, `{"responseData":{"translatedText":""},"responseStatus":200}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			m := NewMyMemory(MyMemoryConfig{URL: server.URL}, zaptest.NewLogger(t))
			_, err := m.Translate(context.Background(), "hola", "es", "en")
			assert.ErrorIs(t, err, domain.ErrTranslation)
		})
	}
}

type countingTranslator struct {
	calls atomic.Int32
	err   error
}

func (c *countingTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return text, nil
}

func TestLimitedPassesThroughAndThrottles(t *testing.T) {
	next := &countingTranslator{}
	l := NewLimited(next, 1, 20*time.Millisecond, nil)

	_, err := l.Translate(context.Background(), "a", "es", "en")
	require.NoError(t, err)

	// the bucket is empty and the next token is a second away
	_, err = l.Translate(context.Background(), "b", "es", "en")
	assert.ErrorIs(t, err, domain.ErrTranslation)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestLimitedPropagatesErrors(t *testing.T) {
	next := &countingTranslator{err: errors.New("boom")}
	l := NewLimited(next, 0, 0, nil)
	_, err := l.Translate(context.Background(), "a", "es", "en")
	assert.EqualError(t, err, "boom")
}

func TestMock(t *testing.T) {
	got, err := Mock{}.Translate(context.Background(), "help", "en", "hi")
	require.NoError(t, err)
	assert.Equal(t, "[hi] help", got)

	_, err = Mock{}.Translate(context.Background(), " ", "en", "hi")
	assert.ErrorIs(t, err, domain.ErrTranslation)
}
