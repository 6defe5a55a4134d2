package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/language"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.1
	defaultMaxTokens   = 512
	defaultAttempts    = 3
)

const translationInstruction = `You translate short utterances from emergency phone calls.
Translate the user's text from %s to %s.
Reply with the translation only: no quotes, notes or transliteration.
Keep names, numbers and addresses exactly as given.`

// GeminiConfig configures the Gemini translator
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// Backoff is the wait before the second attempt; it grows linearly.
	Backoff time.Duration
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	return nil
}

// contentGenerator is the part of genai.Models the translator needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTranslator implements Translator with Google's Gemini API
type GeminiTranslator struct {
	models      contentGenerator
	logger      *zap.Logger
	model       string
	temperature float32
	backoff     time.Duration
}

var _ repositories.Translator = (*GeminiTranslator)(nil)

// NewGeminiTranslator creates a new Gemini translator
func NewGeminiTranslator(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiTranslator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiTranslator(client.Models, config, logger), nil
}

func newGeminiTranslator(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiTranslator {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	backoff := config.Backoff
	if backoff == 0 {
		backoff = time.Second
	}
	return &GeminiTranslator{
		models:      models,
		logger:      logger.With(zap.String("component", "translation"), zap.String("provider", "gemini")),
		model:       model,
		temperature: temperature,
		backoff:     backoff,
	}
}

// Translate sends one utterance to Gemini, retrying transient failures.
func (g *GeminiTranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrTranslation)
	}

	instruction := fmt.Sprintf(translationInstruction, language.Name(sourceLanguage), language.Name(targetLanguage))
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   defaultMaxTokens,
	}

	var (
		response *genai.GenerateContentResponse
		err      error
	)
	for attempt := 0; attempt < defaultAttempts; attempt++ {
		response, err = g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate translation, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < defaultAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * g.backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", domain.ErrTranslation, ctx.Err())
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", domain.ErrTranslation, err)
	}

	translated := strings.TrimSpace(responseText(response))
	if translated == "" {
		return "", fmt.Errorf("%w: gemini returned no text", domain.ErrTranslation)
	}
	return translated, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}
