// Package translation holds the machine translation backends.
package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/language"
)

const defaultMyMemoryURL = "https://api.mymemory.translated.net/get"

// MyMemoryConfig configures the MyMemory translation API. Email raises
// the anonymous daily quota.
type MyMemoryConfig struct {
	URL        string
	Email      string
	HTTPClient *http.Client
}

// MyMemory translates through the public MyMemory API
type MyMemory struct {
	endpoint string
	email    string
	client   *http.Client
	logger   *zap.Logger
}

var _ repositories.Translator = (*MyMemory)(nil)

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// usually a number but the API returns strings on some errors
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
}

func NewMyMemory(cfg MyMemoryConfig, logger *zap.Logger) *MyMemory {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = defaultMyMemoryURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MyMemory{
		endpoint: endpoint,
		email:    cfg.Email,
		client:   client,
		logger:   logger.With(zap.String("component", "translation"), zap.String("provider", "mymemory")),
	}
}

func (m *MyMemory) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrTranslation)
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", language.Normalize(sourceLanguage)+"|"+language.Normalize(targetLanguage))
	if m.email != "" {
		q.Set("de", m.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: mymemory request: %v", domain.ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: mymemory returned %d: %s", domain.ErrTranslation, resp.StatusCode, string(body))
	}

	var out myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: mymemory decode: %v", domain.ErrTranslation, err)
	}
	if out.ResponseStatus.String() != "200" {
		return "", fmt.Errorf("%w: mymemory status %s: %s", domain.ErrTranslation, out.ResponseStatus, out.ResponseDetails)
	}

	translated := strings.TrimSpace(html.UnescapeString(out.ResponseData.TranslatedText))
	if translated == "" {
		return "", fmt.Errorf("%w: mymemory returned no text", domain.ErrTranslation)
	}

	m.logger.Debug("Translated",
		zap.String("source", sourceLanguage),
		zap.String("target", targetLanguage),
		zap.Int("length", len(translated)))
	return translated, nil
}
