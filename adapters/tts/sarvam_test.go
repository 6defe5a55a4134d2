package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/internal/audio"
)

func TestSarvamTTS_Synthesize(t *testing.T) {
	clip := base64.StdEncoding.EncodeToString(audio.EncodeWAV([]int16{10, 20, 30}, 16000))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("api-subscription-key") != "sarvam-key" {
			t.Errorf("missing subscription key")
		}
		var req sarvamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TargetLanguageCode != "ta-IN" || req.Speaker != "meera" || req.Model != "bulbul:v2" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(sarvamResponse{RequestID: "r1", Audios: []string{clip, clip}})
	}))
	defer server.Close()

	tts, err := NewSarvamTTS(SarvamConfig{APIKey: "sarvam-key", BaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewSarvamTTS: %v", err)
	}

	out, err := tts.Synthesize(context.Background(), "உதவி வருகிறது", "ta")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	samples, err := audio.PCMFromBytes(out.Data)
	if err != nil {
		t.Fatalf("PCMFromBytes: %v", err)
	}
	want := []int16{10, 20, 30, 10, 20, 30}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
	if out.SampleRate != 16000 || out.Provider != "sarvam" {
		t.Errorf("unexpected metadata %+v", out)
	}
}

func TestSarvamLocale(t *testing.T) {
	tests := map[string]string{"hi": "hi-IN", "ta-IN": "ta-IN", "en": "en-IN", "": "en-IN"}
	for in, want := range tests {
		if got := sarvamLocale(in); got != want {
			t.Errorf("sarvamLocale(%q) = %s, want %s", in, got, want)
		}
	}
}

type stubSynth struct {
	name  string
	err   error
	calls int
}

func (s *stubSynth) Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &entities.SynthesizedAudio{Data: []byte{0, 0}, Encoding: audio.EncodingPCM16, SampleRate: 16000, Provider: s.name}, nil
}

func (s *stubSynth) Provider() string { return s.name }

func TestRouterPicksBackendByLanguage(t *testing.T) {
	regional := &stubSynth{name: "regional"}
	general := &stubSynth{name: "general"}
	r := NewRouter(regional, general, rate.Inf, nil, zaptest.NewLogger(t))

	out, err := r.Synthesize(context.Background(), "text", "hi")
	if err != nil || out.Provider != "regional" {
		t.Errorf("hi: got %+v, %v", out, err)
	}
	out, err = r.Synthesize(context.Background(), "text", "en")
	if err != nil || out.Provider != "general" {
		t.Errorf("en: got %+v, %v", out, err)
	}
}

func TestRouterFallsBack(t *testing.T) {
	regional := &stubSynth{name: "regional", err: errors.New("503")}
	general := &stubSynth{name: "general"}
	r := NewRouter(regional, general, rate.Inf, nil, zaptest.NewLogger(t))

	out, err := r.Synthesize(context.Background(), "text", "ta")
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if out.Provider != "general" || regional.calls != 1 {
		t.Errorf("unexpected routing: %+v, regional calls %d", out, regional.calls)
	}

	general.err = errors.New("401")
	if _, err := r.Synthesize(context.Background(), "text", "ta"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis, got %v", err)
	}
}

func TestRouterWithoutBackends(t *testing.T) {
	r := NewRouter(nil, nil, rate.Inf, nil, zaptest.NewLogger(t))
	if _, err := r.Synthesize(context.Background(), "text", "en"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis, got %v", err)
	}
}

func TestMockTTS(t *testing.T) {
	out, err := NewMockTTS(zaptest.NewLogger(t)).Synthesize(context.Background(), "help", "en")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	// 4 characters at 60ms each
	if want := 4 * 960 * 2; len(out.Data) != want {
		t.Errorf("got %d bytes, want %d", len(out.Data), want)
	}
}
