package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/language"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io"
	elevenLabsModel    = "eleven_multilingual_v2"
	elevenLabsFormat   = "pcm_16000"
	fallbackVoiceID    = "uYXf8XasLslADfZ2MB4u"
	indicVoiceID       = "pNInz6obpgDQGcFmaJgB"
	europeanVoiceID    = "EXAVITQu4vr4xnSDxMaL"
	defaultStability   = 0.5
	defaultSimilarity  = 0.75
	elevenLabsProvider = "elevenlabs"
)

// ElevenLabsConfig configures the ElevenLabs text-to-speech API. Zero
// values fall back to the multilingual model, 16 kHz PCM and the built-in
// voice table. Voices maps language codes to voice IDs and wins over the
// built-in table.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64
	Similarity   float64
	Voices       map[string]string
	HTTPClient   *http.Client
}

// ElevenLabsTTS synthesizes any supported language through ElevenLabs
type ElevenLabsTTS struct {
	cfg        ElevenLabsConfig
	encoding   string
	sampleRate int
	voices     map[string]string
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	LanguageCode  string             `json:"language_code,omitempty"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
	Normalization string             `json:"apply_text_normalization,omitempty"`
}

// Voice is one entry of the account's voice library
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

var indicLanguages = []string{"hi", "bn", "ta", "te", "kn", "ml", "gu", "pa", "mr"}

func NewElevenLabsTTS(cfg ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
	}
	if cfg.Stability < 0 || cfg.Stability > 1 {
		return nil, fmt.Errorf("elevenlabs stability must be within [0, 1], got %g", cfg.Stability)
	}
	if cfg.Similarity < 0 || cfg.Similarity > 1 {
		return nil, fmt.Errorf("elevenlabs similarity must be within [0, 1], got %g", cfg.Similarity)
	}

	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = elevenLabsBaseURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = elevenLabsModel
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = fallbackVoiceID
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = elevenLabsFormat
	}
	if cfg.Stability == 0 {
		cfg.Stability = defaultStability
	}
	if cfg.Similarity == 0 {
		cfg.Similarity = defaultSimilarity
	}
	encoding, rate, err := parseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	voices := map[string]string{"es": europeanVoiceID, "fr": europeanVoiceID}
	for _, code := range indicLanguages {
		voices[code] = indicVoiceID
	}
	for code, id := range cfg.Voices {
		voices[language.Normalize(code)] = id
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger = logger.With(zap.String("component", "tts"), zap.String("provider", elevenLabsProvider))
	logger.Info("ElevenLabs synthesizer ready",
		zap.String("model", cfg.ModelID),
		zap.String("outputFormat", cfg.OutputFormat))

	return &ElevenLabsTTS{
		cfg:        cfg,
		encoding:   encoding,
		sampleRate: rate,
		voices:     voices,
		client:     client,
		logger:     logger,
	}, nil
}

// parseOutputFormat reads pcm_<rate>, ulaw_<rate> or mp3_<rate>_<kbps>.
func parseOutputFormat(format string) (string, int, error) {
	kind, rest, _ := strings.Cut(format, "_")
	rateStr, _, _ := strings.Cut(rest, "_")
	rate, err := strconv.Atoi(rateStr)
	if err != nil || rate <= 0 {
		return "", 0, fmt.Errorf("unsupported elevenlabs output format %q", format)
	}
	switch kind {
	case "pcm":
		return audio.EncodingPCM16, rate, nil
	case "ulaw":
		return audio.EncodingMuLaw, rate, nil
	case "mp3":
		return audio.EncodingMP3, rate, nil
	}
	return "", 0, fmt.Errorf("unsupported elevenlabs output format %q", format)
}

// VoiceFor returns the voice used for a language.
func (e *ElevenLabsTTS) VoiceFor(languageCode string) string {
	if id, ok := e.voices[language.Normalize(languageCode)]; ok {
		return id
	}
	return e.cfg.VoiceID
}

func (e *ElevenLabsTTS) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", domain.ErrSynthesis)
	}

	voiceID := e.VoiceFor(languageCode)
	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       e.cfg.ModelID,
		LanguageCode:  language.Normalize(languageCode),
		Normalization: "auto",
		VoiceSettings: elevenLabsSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{"output_format": {e.cfg.OutputFormat}, "enable_logging": {"false"}}
	endpoint := e.cfg.APIBaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.encoding == audio.EncodingMP3 {
		req.Header.Set("Accept", "audio/mpeg")
	} else {
		req.Header.Set("Accept", "audio/pcm")
	}

	resp, err := e.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs read: %v", domain.ErrSynthesis, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: elevenlabs returned no audio", domain.ErrSynthesis)
	}

	e.logger.Debug("Synthesized speech",
		zap.String("voiceId", voiceID),
		zap.String("language", languageCode),
		zap.Int("bytes", len(data)))

	return &entities.SynthesizedAudio{
		Data:       data,
		Encoding:   e.encoding,
		SampleRate: e.sampleRate,
		Provider:   elevenLabsProvider,
	}, nil
}

// ListVoices fetches the voices the API key can use.
func (e *ElevenLabsTTS) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.APIBaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	resp, err := e.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return listing.Voices, nil
}

func (e *ElevenLabsTTS) Provider() string { return elevenLabsProvider }
