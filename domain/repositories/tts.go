package repositories

import (
	"context"

	"github.com/satriahrh/callrelay/domain/entities"
)

// TextToSpeech synthesizes text in the given language. The returned
// audio may be compressed; callers convert it before playout.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text, languageCode string) (*entities.SynthesizedAudio, error)
}
