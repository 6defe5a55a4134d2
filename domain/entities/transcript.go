package entities

import "time"

// TranscriptEvent is one recognizer turn. Partial events are display
// hints; final events are logged and drive language decisions.
type TranscriptEvent struct {
	Speaker      Track     `json:"speaker" bson:"speaker"`
	Text         string    `json:"text" bson:"text"`
	IsFinal      bool      `json:"is_final" bson:"is_final"`
	LanguageCode string    `json:"language_code" bson:"language_code"`
	Confidence   *float64  `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}

// LanguageState tracks what each party speaks. Zero values mean
// "not detected yet".
type LanguageState struct {
	CallerLanguage     string `json:"caller_language" bson:"caller_language"`
	DispatcherLanguage string `json:"dispatcher_language" bson:"dispatcher_language"`
}

// Resolve fills undetected languages with baseline.
func (l LanguageState) Resolve(baseline string) LanguageState {
	if l.CallerLanguage == "" {
		l.CallerLanguage = baseline
	}
	if l.DispatcherLanguage == "" {
		l.DispatcherLanguage = baseline
	}
	return l
}

// NeedsTranslation reports whether the two parties speak different languages.
func (l LanguageState) NeedsTranslation(baseline string) bool {
	r := l.Resolve(baseline)
	return r.CallerLanguage != r.DispatcherLanguage
}
