package tts

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
)

// MockTTS is a placeholder synthesizer producing a tone whose length
// follows the text
type MockTTS struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

// NewMockTTS creates a new mock text-to-speech service
func NewMockTTS(logger *zap.Logger) *MockTTS {
	return &MockTTS{logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (t *MockTTS) Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", domain.ErrSynthesis)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.logger.Info("Processing text-to-speech",
		zap.String("text", text),
		zap.String("language", languageCode))

	// 60ms of 440Hz per character
	samples := make([]int16, len([]rune(text))*audio.WidebandRate*60/1000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.WidebandRate))
	}

	return &entities.SynthesizedAudio{
		Data:       audio.PCMToBytes(samples),
		Encoding:   audio.EncodingPCM16,
		SampleRate: audio.WidebandRate,
		Provider:   "mock",
	}, nil
}

func (t *MockTTS) Provider() string { return "mock" }
