package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/callsession"
)

// TranscriptPublisher delivers transcript messages to the subscribers of
// one caller.
type TranscriptPublisher interface {
	PublishTranscription(callerNumber string, msg domain.TranscriptionMessage)
}

// TranslationService decides, turn by turn, whether the dispatcher needs
// an interpreter and produces the translated text and speech when so.
type TranslationService struct {
	translator  repositories.Translator
	tts         repositories.TextToSpeech
	publisher   TranscriptPublisher
	baseline    string
	turnTimeout time.Duration
	logger      *zap.Logger
}

// TranslationOptions tune the decision engine. Zero values take defaults.
type TranslationOptions struct {
	BaselineLanguage string
	TurnTimeout      time.Duration
}

// NewTranslationService wires the decision engine. A nil translator
// disables translation; a nil tts publishes translated text only.
func NewTranslationService(
	translator repositories.Translator,
	tts repositories.TextToSpeech,
	publisher TranscriptPublisher,
	opts TranslationOptions,
	logger *zap.Logger,
) *TranslationService {
	if opts.BaselineLanguage == "" {
		opts.BaselineLanguage = "en"
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 10 * time.Second
	}
	return &TranslationService{
		translator:  translator,
		tts:         tts,
		publisher:   publisher,
		baseline:    opts.BaselineLanguage,
		turnTimeout: opts.TurnTimeout,
		logger:      logger.With(zap.String("component", "translation")),
	}
}

// Baseline is the language assumed for a party until one is detected.
func (s *TranslationService) Baseline() string {
	return s.baseline
}

// ShouldRelayDispatcherAudio reports whether the dispatcher's own voice
// may reach the caller. Cross-language turns are always suppressed.
func (s *TranslationService) ShouldRelayDispatcherAudio(session *callsession.Session) bool {
	return !session.Language().NeedsTranslation(s.baseline)
}

// HandleTranscript is the OnTranscript sink for both parties of a call.
// It records the turn and updates language state before returning.
func (s *TranslationService) HandleTranscript(session *callsession.Session, event entities.TranscriptEvent) {
	if strings.TrimSpace(event.Text) == "" {
		return
	}
	session.AppendTranscript(event)
	msg := domain.NewTranscriptionMessage(session.CallSID(), session.CallerNumber(), event)

	switch event.Speaker {
	case entities.TrackCaller:
		if event.IsFinal && session.SetCallerLanguage(event.LanguageCode, s.baseline) {
			s.logger.Info("Caller language detected",
				zap.String("callSid", session.CallSID()),
				zap.String("language", event.LanguageCode))
		}
		s.publish(session, msg)

	case entities.TrackDispatcher:
		if !event.IsFinal {
			s.publish(session, msg)
			return
		}
		session.SetDispatcherLanguage(event.LanguageCode)
		s.handleDispatcherTurn(session, event, msg)
	}
}

// handleDispatcherTurn publishes a same-language turn at once and queues a
// cross-language one for RunTurns, so recognizer receivers never wait on
// translation or synthesis.
func (s *TranslationService) handleDispatcherTurn(session *callsession.Session, event entities.TranscriptEvent, msg domain.TranscriptionMessage) {
	languages := session.Language().Resolve(s.baseline)
	if languages.CallerLanguage == languages.DispatcherLanguage {
		s.publish(session, msg)
		return
	}
	if !session.Turns.TryEnqueue(callsession.Turn{
		Event:  event,
		Source: languages.DispatcherLanguage,
		Target: languages.CallerLanguage,
	}) {
		// call already torn down
		s.logger.Debug("Dropping dispatcher turn", zap.String("callSid", session.CallSID()))
	}
}

// RunTurns interprets queued dispatcher turns one at a time until ctx ends
// or the session's queues close.
func (s *TranslationService) RunTurns(ctx context.Context, session *callsession.Session) {
	for {
		turn, ok := session.Turns.Dequeue(ctx, time.Second)
		if ctx.Err() != nil || (!ok && session.Turns.Closed()) {
			return
		}
		if ok {
			s.interpret(ctx, session, turn)
		}
	}
}

func (s *TranslationService) interpret(ctx context.Context, session *callsession.Session, turn callsession.Turn) {
	msg := domain.NewTranscriptionMessage(session.CallSID(), session.CallerNumber(), turn.Event)
	msg.TargetLanguage = turn.Target
	msg.TranslationNeeded = true

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	logger := s.logger.With(
		zap.String("callSid", session.CallSID()),
		zap.String("from", turn.Source),
		zap.String("to", turn.Target))

	translated, err := s.translate(ctx, turn.Event.Text, turn.Source, turn.Target)
	if err != nil {
		logger.Warn("Translation failed, sending original text", zap.Error(err))
		msg.TranslationFailed = true
		s.publish(session, msg)
		return
	}
	msg.TranslatedMessage = translated

	if s.tts == nil {
		s.publish(session, msg)
		return
	}
	if err := s.speak(ctx, session, translated, turn.Target); err != nil {
		logger.Warn("Synthesis failed, caller gets no audio", zap.Error(err))
		msg.TranslationFailed = true
		s.publish(session, msg)
		return
	}
	s.publish(session, msg)
	logger.Info("Translated turn queued for playout", zap.Int("chars", len(translated)))
}

func (s *TranslationService) translate(ctx context.Context, text, source, target string) (string, error) {
	if s.translator == nil {
		return "", fmt.Errorf("%w: no translator configured", domain.ErrTranslation)
	}
	translated, err := s.translator.Translate(ctx, text, source, target)
	if err != nil {
		if errors.Is(err, domain.ErrTranslation) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTranslation, err)
	}
	translated = strings.TrimSpace(translated)
	if translated == "" || translated == strings.TrimSpace(text) {
		return "", fmt.Errorf("%w: translation unchanged", domain.ErrTranslation)
	}
	return translated, nil
}

// speak synthesizes text and queues it as one playout turn.
func (s *TranslationService) speak(ctx context.Context, session *callsession.Session, text, language string) error {
	clip, err := s.tts.Synthesize(ctx, text, language)
	if err != nil {
		if errors.Is(err, domain.ErrSynthesis) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}

	samples, rate, err := audio.DecodeToPCM(clip.Encoding, clip.Data, clip.SampleRate)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}
	frames, err := audio.EncodeTelephonyFrames(samples, rate)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: empty audio", domain.ErrSynthesis)
	}
	if session.Ended() {
		return nil
	}
	session.Playout.TryEnqueue(frames)
	return nil
}

func (s *TranslationService) publish(session *callsession.Session, msg domain.TranscriptionMessage) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishTranscription(session.CallerNumber(), msg)
}
