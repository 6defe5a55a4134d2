package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/repositories"
)

// Mock tags text with the target language instead of translating it
type Mock struct{}

var _ repositories.Translator = Mock{}

func (Mock) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", domain.ErrTranslation)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranslation, err)
	}
	return fmt.Sprintf("[%s] %s", targetLanguage, text), nil
}
