package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/language"
)

// SarvamConfig configures the Sarvam AI text-to-speech API.
type SarvamConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Speaker    string
	SampleRate int
	HTTPClient *http.Client
}

// SarvamTTS synthesizes Indian languages through Sarvam AI
type SarvamTTS struct {
	cfg    SarvamConfig
	client *http.Client
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*SarvamTTS)(nil)

type sarvamRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
	Model              string `json:"model"`
	SpeechSampleRate   int    `json:"speech_sample_rate"`
	EnablePreprocess   bool   `json:"enable_preprocessing"`
}

type sarvamResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

func NewSarvamTTS(cfg SarvamConfig, logger *zap.Logger) (*SarvamTTS, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sarvam API key is required")
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sarvam.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "bulbul:v2"
	}
	if cfg.Speaker == "" {
		cfg.Speaker = "anushka"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.WidebandRate
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SarvamTTS{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "tts"), zap.String("provider", "sarvam")),
	}, nil
}

// sarvamLocale maps a base language code to the locale Sarvam expects.
func sarvamLocale(code string) string {
	code = language.Normalize(code)
	if code == "" || code == "en" {
		return "en-IN"
	}
	return code + "-IN"
}

func (s *SarvamTTS) speakerFor(code string) string {
	if language.Normalize(code) == "ta" {
		return "meera"
	}
	return s.cfg.Speaker
}

func (s *SarvamTTS) Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", domain.ErrSynthesis)
	}

	body, err := json.Marshal(sarvamRequest{
		Text:               text,
		TargetLanguageCode: sarvamLocale(languageCode),
		Speaker:            s.speakerFor(languageCode),
		Model:              s.cfg.Model,
		SpeechSampleRate:   s.cfg.SampleRate,
		EnablePreprocess:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sarvam request: %v", domain.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: sarvam returned %d: %s", domain.ErrSynthesis, resp.StatusCode, string(errorBody))
	}

	var out sarvamResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: sarvam decode: %v", domain.ErrSynthesis, err)
	}
	if len(out.Audios) == 0 {
		return nil, fmt.Errorf("%w: sarvam returned no audio", domain.ErrSynthesis)
	}

	// long inputs come back as several WAV clips
	var samples []int16
	rate := 0
	for i, clip := range out.Audios {
		raw, err := base64.StdEncoding.DecodeString(clip)
		if err != nil {
			return nil, fmt.Errorf("%w: sarvam clip %d: %v", domain.ErrSynthesis, i, err)
		}
		pcm, clipRate, err := audio.DecodeWAV(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: sarvam clip %d: %v", domain.ErrSynthesis, i, err)
		}
		if rate == 0 {
			rate = clipRate
		}
		if clipRate != rate {
			if pcm, err = audio.Resample(pcm, clipRate, rate); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
			}
		}
		samples = append(samples, pcm...)
	}

	s.logger.Debug("Synthesized speech",
		zap.String("requestId", out.RequestID),
		zap.String("language", languageCode),
		zap.Int("samples", len(samples)))

	return &entities.SynthesizedAudio{
		Data:       audio.PCMToBytes(samples),
		Encoding:   audio.EncodingPCM16,
		SampleRate: rate,
		Provider:   "sarvam",
	}, nil
}

func (s *SarvamTTS) Provider() string { return "sarvam" }
