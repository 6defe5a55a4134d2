package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPort             = "8080"
	DefaultEnvironment      = "development"
	DefaultLogLevel         = "info"
	DefaultBaselineLanguage = "en"
	DefaultDispatcherGain   = 2.0
	DefaultMongoDatabase    = "callrelay"
	DefaultRecordingsDir    = "recordings"
	DefaultTranscriptsDir   = "transcripts"
)

// Provider names
const (
	ProviderDeepgram   = "deepgram"
	ProviderGoogle     = "google"
	ProviderElevenLabs = "elevenlabs"
	ProviderSarvam     = "sarvam"
	ProviderHybrid     = "hybrid"
	ProviderMyMemory   = "mymemory"
	ProviderGemini     = "gemini"
	ProviderMock       = "mock"
	ProviderNone       = "none"
)

// Config is the full runtime configuration of the relay server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Relay       RelayConfig       `yaml:"relay"`
	STT         STTConfig         `yaml:"stt"`
	TTS         TTSConfig         `yaml:"tts"`
	Translation TranslationConfig `yaml:"translation"`
	Storage     StorageConfig     `yaml:"storage"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Environment     string        `yaml:"environment"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	PublicURL       string        `yaml:"public_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RelayConfig tunes the real-time audio path.
type RelayConfig struct {
	EgressCapacity    int           `yaml:"egress_capacity"`
	BroadcastCapacity int           `yaml:"broadcast_capacity"`
	BackendCapacity   int           `yaml:"backend_capacity"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
	TurnTimeout       time.Duration `yaml:"turn_timeout"`
	BaselineLanguage  string        `yaml:"baseline_language"`
	DispatcherGain    float64       `yaml:"dispatcher_gain"`
	StaleSessionTTL   time.Duration `yaml:"stale_session_ttl"`
	MaxRecording      time.Duration `yaml:"max_recording"`
}

type STTConfig struct {
	Provider string         `yaml:"provider"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	Google   GoogleConfig   `yaml:"google"`
}

type DeepgramConfig struct {
	APIKey    string        `yaml:"api_key"`
	URL       string        `yaml:"url"`
	Model     string        `yaml:"model"`
	Language  string        `yaml:"language"`
	KeepAlive time.Duration `yaml:"keep_alive"`
}

type GoogleConfig struct {
	CredentialsFile      string   `yaml:"credentials_file"`
	LanguageCode         string   `yaml:"language_code"`
	AlternativeLanguages []string `yaml:"alternative_languages"`
}

type TTSConfig struct {
	Provider   string           `yaml:"provider"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Sarvam     SarvamConfig     `yaml:"sarvam"`
}

type ElevenLabsConfig struct {
	APIKey       string `yaml:"api_key"`
	VoiceID      string `yaml:"voice_id"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
	BaseURL      string `yaml:"base_url"`
	// Voices maps language codes to voice IDs.
	Voices map[string]string `yaml:"voices"`
}

type SarvamConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Speaker    string `yaml:"speaker"`
	SampleRate int    `yaml:"sample_rate"`
}

type TranslationConfig struct {
	Provider          string        `yaml:"provider"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	MyMemoryEmail     string        `yaml:"mymemory_email"`
	MyMemoryURL       string        `yaml:"mymemory_url"`
}

type StorageConfig struct {
	RecordingsDir  string `yaml:"recordings_dir"`
	TranscriptsDir string `yaml:"transcripts_dir"`
	MongoURI       string `yaml:"mongo_uri"`
	MongoDatabase  string `yaml:"mongo_database"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// Operators seeds the operator store, as "username:secret" pairs.
	Operators []string `yaml:"operators"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			Environment:     DefaultEnvironment,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			EgressCapacity:    5,
			BroadcastCapacity: 25,
			BackendCapacity:   50,
			ConnectTimeout:    10 * time.Second,
			StopTimeout:       5 * time.Second,
			TurnTimeout:       15 * time.Second,
			BaselineLanguage:  DefaultBaselineLanguage,
			DispatcherGain:    DefaultDispatcherGain,
			StaleSessionTTL:   5 * time.Minute,
			MaxRecording:      2 * time.Hour,
		},
		STT: STTConfig{
			Provider: ProviderDeepgram,
			Deepgram: DeepgramConfig{
				URL:       "wss://api.deepgram.com/v1/listen",
				Model:     "nova-3",
				Language:  "multi",
				KeepAlive: 5 * time.Second,
			},
			Google: GoogleConfig{
				LanguageCode:         "en-IN",
				AlternativeLanguages: []string{"hi-IN", "ta-IN", "te-IN"},
			},
		},
		TTS: TTSConfig{
			Provider: ProviderHybrid,
			ElevenLabs: ElevenLabsConfig{
				VoiceID:      "uYXf8XasLslADfZ2MB4u",
				ModelID:      "eleven_multilingual_v2",
				OutputFormat: "pcm_16000",
				BaseURL:      "https://api.elevenlabs.io",
			},
			Sarvam: SarvamConfig{
				BaseURL:    "https://api.sarvam.ai",
				Model:      "bulbul:v2",
				Speaker:    "anushka",
				SampleRate: 16000,
			},
		},
		Translation: TranslationConfig{
			Provider:          ProviderMyMemory,
			RequestsPerSecond: 5,
			Timeout:           8 * time.Second,
			GeminiModel:       "gemini-2.0-flash",
			MyMemoryURL:       "https://api.mymemory.translated.net/get",
		},
		Storage: StorageConfig{
			RecordingsDir:  DefaultRecordingsDir,
			TranscriptsDir: DefaultTranscriptsDir,
			MongoDatabase:  DefaultMongoDatabase,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Validate applies defaults for zero values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: port is required")
	}
	if c.Relay.EgressCapacity < 1 || c.Relay.BroadcastCapacity < 1 || c.Relay.BackendCapacity < 1 {
		return fmt.Errorf("config: queue capacities must be >= 1")
	}
	if c.Relay.EgressCapacity > 25 {
		return fmt.Errorf("config: egress_capacity %d exceeds 25 buffered chunks", c.Relay.EgressCapacity)
	}
	if c.Relay.DispatcherGain <= 0 {
		return fmt.Errorf("config: dispatcher_gain must be > 0, got %v", c.Relay.DispatcherGain)
	}
	if c.Relay.BaselineLanguage == "" {
		c.Relay.BaselineLanguage = DefaultBaselineLanguage
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	switch c.STT.Provider {
	case ProviderDeepgram:
		if c.STT.Deepgram.APIKey == "" {
			return fmt.Errorf("config: DEEPGRAM_API_KEY is required for the deepgram provider")
		}
	case ProviderGoogle, ProviderMock, ProviderNone:
	default:
		return fmt.Errorf("config: unknown stt provider %q", c.STT.Provider)
	}

	switch c.TTS.Provider {
	case ProviderElevenLabs:
		if c.TTS.ElevenLabs.APIKey == "" {
			return fmt.Errorf("config: ELEVEN_LABS_API_KEY is required for the elevenlabs provider")
		}
	case ProviderSarvam:
		if c.TTS.Sarvam.APIKey == "" {
			return fmt.Errorf("config: SARVAM_API_KEY is required for the sarvam provider")
		}
	case ProviderHybrid:
		if c.TTS.ElevenLabs.APIKey == "" && c.TTS.Sarvam.APIKey == "" {
			return fmt.Errorf("config: hybrid tts needs ELEVEN_LABS_API_KEY or SARVAM_API_KEY")
		}
	case ProviderMock, ProviderNone:
	default:
		return fmt.Errorf("config: unknown tts provider %q", c.TTS.Provider)
	}

	switch c.Translation.Provider {
	case ProviderGemini:
		if c.Translation.GeminiAPIKey == "" {
			return fmt.Errorf("config: GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderMyMemory, ProviderMock, ProviderNone:
	default:
		return fmt.Errorf("config: unknown translation provider %q", c.Translation.Provider)
	}
	if c.Translation.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: translation requests_per_second must be > 0")
	}

	for _, op := range c.Auth.Operators {
		if user, secret, ok := strings.Cut(op, ":"); !ok || user == "" || secret == "" {
			return fmt.Errorf("config: operator entry %q must be username:secret", op)
		}
	}
	return nil
}
