package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/internal/audio"
)

func TestNewElevenLabsTTS(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"missing key", ElevenLabsConfig{}, true},
		{"defaults", ElevenLabsConfig{APIKey: "k"}, false},
		{"stability out of range", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"similarity out of range", ElevenLabsConfig{APIKey: "k", Similarity: -0.1}, true},
		{"unknown format", ElevenLabsConfig{APIKey: "k", OutputFormat: "opus_48000"}, true},
		{"rate missing", ElevenLabsConfig{APIKey: "k", OutputFormat: "pcm"}, true},
		{"mp3 format", ElevenLabsConfig{APIKey: "k", OutputFormat: "mp3_44100_128"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewElevenLabsTTS(tt.config, zaptest.NewLogger(t))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewElevenLabsTTS() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsTTS_Defaults(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if tts.cfg.VoiceID != fallbackVoiceID || tts.cfg.ModelID != elevenLabsModel {
		t.Errorf("unexpected defaults %+v", tts.cfg)
	}
	if tts.encoding != audio.EncodingPCM16 || tts.sampleRate != 16000 {
		t.Errorf("unexpected output %s/%d", tts.encoding, tts.sampleRate)
	}
}

func TestElevenLabsTTS_VoiceFor(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:  "k",
		VoiceID: "fallback",
		Voices:  map[string]string{"de-DE": "german-voice", "ta": "tamil-voice"},
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	tests := map[string]string{
		"hi":    indicVoiceID,
		"ta-IN": "tamil-voice",
		"es":    europeanVoiceID,
		"de":    "german-voice",
		"en":    "fallback",
		"":      "fallback",
	}
	for code, want := range tests {
		if got := tts.VoiceFor(code); got != want {
			t.Errorf("VoiceFor(%q) = %s, want %s", code, got, want)
		}
	}
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	pcm := audio.PCMToBytes([]int16{1, 2, 3, 4})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Path != "/v1/text-to-speech/"+indicVoiceID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("unexpected output_format %s", got)
		}
		var req elevenLabsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "मदद आ रही है" || req.LanguageCode != "hi" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.VoiceSettings.Stability != defaultStability || req.VoiceSettings.SimilarityBoost != defaultSimilarity {
			t.Errorf("unexpected voice settings %+v", req.VoiceSettings)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	out, err := tts.Synthesize(context.Background(), "मदद आ रही है", "hi-IN")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if out.Encoding != audio.EncodingPCM16 || out.SampleRate != 16000 || out.Provider != "elevenlabs" {
		t.Errorf("unexpected audio metadata %+v", out)
	}
	if string(out.Data) != string(pcm) {
		t.Errorf("unexpected audio payload")
	}
}

func TestElevenLabsTTS_SynthesizeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.Synthesize(context.Background(), "   ", "en"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis for empty text, got %v", err)
	}
	if _, err := tts.Synthesize(context.Background(), "hello", "en"); !errors.Is(err, domain.ErrSynthesis) {
		t.Errorf("expected ErrSynthesis for 401, got %v", err)
	}
	if _, err := tts.ListVoices(context.Background()); err == nil {
		t.Error("expected error listing voices on 401")
	}
}

func TestElevenLabsTTS_ListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Asha","category":"premade"}]}`))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	voices, err := tts.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices failed: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Asha" {
		t.Errorf("unexpected voices %+v", voices)
	}
}
