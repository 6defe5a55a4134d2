package repositories

import "context"

// Translator converts text between ISO 639-1 language codes
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}
