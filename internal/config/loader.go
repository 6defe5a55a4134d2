package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from defaults, an optional YAML file and the
// environment, in that order. Tests can override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load resolves and validates the configuration.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Default()

	if path, ok := l.Lookup("CALLRELAY_CONFIG"); ok && strings.TrimSpace(path) != "" {
		raw, err := l.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	overrideString(l.Lookup, "PORT", &cfg.Server.Port)
	overrideString(l.Lookup, "ENVIRONMENT", &cfg.Server.Environment)
	overrideString(l.Lookup, "PUBLIC_URL", &cfg.Server.PublicURL)
	overrideList(l.Lookup, "ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)
	overrideString(l.Lookup, "LOG_LEVEL", &cfg.Log.Level)

	overrideString(l.Lookup, "BASELINE_LANGUAGE", &cfg.Relay.BaselineLanguage)

	overrideString(l.Lookup, "STT_PROVIDER", &cfg.STT.Provider)
	overrideString(l.Lookup, "DEEPGRAM_API_KEY", &cfg.STT.Deepgram.APIKey)
	overrideString(l.Lookup, "DEEPGRAM_MODEL", &cfg.STT.Deepgram.Model)
	overrideString(l.Lookup, "GOOGLE_APPLICATION_CREDENTIALS", &cfg.STT.Google.CredentialsFile)
	overrideString(l.Lookup, "GOOGLE_SPEECH_LANGUAGE", &cfg.STT.Google.LanguageCode)

	overrideString(l.Lookup, "TTS_PROVIDER", &cfg.TTS.Provider)
	overrideString(l.Lookup, "ELEVEN_LABS_API_KEY", &cfg.TTS.ElevenLabs.APIKey)
	overrideString(l.Lookup, "ELEVEN_LABS_VOICE_ID", &cfg.TTS.ElevenLabs.VoiceID)
	overrideString(l.Lookup, "ELEVEN_LABS_MODEL_ID", &cfg.TTS.ElevenLabs.ModelID)
	overrideString(l.Lookup, "SARVAM_API_KEY", &cfg.TTS.Sarvam.APIKey)

	overrideString(l.Lookup, "TRANSLATION_PROVIDER", &cfg.Translation.Provider)
	overrideString(l.Lookup, "GEMINI_API_KEY", &cfg.Translation.GeminiAPIKey)
	overrideString(l.Lookup, "MYMEMORY_EMAIL", &cfg.Translation.MyMemoryEmail)

	overrideString(l.Lookup, "RECORDINGS_DIR", &cfg.Storage.RecordingsDir)
	overrideString(l.Lookup, "TRANSCRIPTS_DIR", &cfg.Storage.TranscriptsDir)
	overrideString(l.Lookup, "MONGODB_URI", &cfg.Storage.MongoURI)
	overrideString(l.Lookup, "MONGODB_DATABASE", &cfg.Storage.MongoDatabase)

	overrideString(l.Lookup, "JWT_SECRET", &cfg.Auth.JWTSecret)
	overrideList(l.Lookup, "OPERATORS", &cfg.Auth.Operators)

	if err := overrideFloat(l.Lookup, "DISPATCHER_GAIN", &cfg.Relay.DispatcherGain); err != nil {
		return err
	}
	if err := overrideFloat(l.Lookup, "TRANSLATION_RPS", &cfg.Translation.RequestsPerSecond); err != nil {
		return err
	}
	if err := overrideDuration(l.Lookup, "BACKEND_CONNECT_TIMEOUT", &cfg.Relay.ConnectTimeout); err != nil {
		return err
	}
	return overrideDuration(l.Lookup, "STALE_SESSION_TTL", &cfg.Relay.StaleSessionTTL)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideList(lookup func(string) (string, bool), key string, target *[]string) {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*target = out
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = f
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}
