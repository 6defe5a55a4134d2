package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func offline() map[string]string {
	return map[string]string{
		"STT_PROVIDER":         "mock",
		"TTS_PROVIDER":         "mock",
		"TRANSLATION_PROVIDER": "mock",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(offline())}.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Relay.EgressCapacity)
	assert.Equal(t, 25, cfg.Relay.BroadcastCapacity)
	assert.Equal(t, "en", cfg.Relay.BaselineLanguage)
	assert.Equal(t, 2.0, cfg.Relay.DispatcherGain)
	assert.Equal(t, "nova-3", cfg.STT.Deepgram.Model)
	assert.False(t, cfg.IsProduction())
}

func TestEnvOverrides(t *testing.T) {
	env := offline()
	env["PORT"] = " 9090 "
	env["ENVIRONMENT"] = "production"
	env["ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	env["DISPATCHER_GAIN"] = "1.5"
	env["BACKEND_CONNECT_TIMEOUT"] = "3s"
	env["OPERATORS"] = "alice:s3cret,bob:hunter2"

	cfg, err := Loader{Lookup: mapLookup(env)}.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 1.5, cfg.Relay.DispatcherGain)
	assert.Equal(t, 3*time.Second, cfg.Relay.ConnectTimeout)
	assert.Len(t, cfg.Auth.Operators, 2)
}

func TestYAMLThenEnv(t *testing.T) {
	env := offline()
	env["CALLRELAY_CONFIG"] = "relay.yaml"
	env["LOG_LEVEL"] = "debug"

	yamlDoc := []byte(`
server:
  port: "7000"
relay:
  egress_capacity: 3
  baseline_language: hi
tts:
  elevenlabs:
    voices:
      ta: tamil-voice
log:
  level: warn
`)
	loader := Loader{
		Lookup: mapLookup(env),
		ReadFile: func(path string) ([]byte, error) {
			assert.Equal(t, "relay.yaml", path)
			return yamlDoc, nil
		},
	}

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Relay.EgressCapacity)
	assert.Equal(t, "hi", cfg.Relay.BaselineLanguage)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, map[string]string{"ta": "tamil-voice"}, cfg.TTS.ElevenLabs.Voices)
	// untouched sections keep their defaults
	assert.Equal(t, 25, cfg.Relay.BroadcastCapacity)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		readFile func(string) ([]byte, error)
	}{
		{name: "deepgram without key", env: map[string]string{"STT_PROVIDER": "deepgram", "TTS_PROVIDER": "mock", "TRANSLATION_PROVIDER": "mock"}},
		{name: "unknown stt", env: map[string]string{"STT_PROVIDER": "whisper", "TTS_PROVIDER": "mock", "TRANSLATION_PROVIDER": "mock"}},
		{name: "hybrid without keys", env: map[string]string{"STT_PROVIDER": "mock", "TTS_PROVIDER": "hybrid", "TRANSLATION_PROVIDER": "mock"}},
		{name: "gemini without key", env: map[string]string{"STT_PROVIDER": "mock", "TTS_PROVIDER": "mock", "TRANSLATION_PROVIDER": "gemini"}},
		{name: "bad gain", env: map[string]string{"STT_PROVIDER": "mock", "TTS_PROVIDER": "mock", "TRANSLATION_PROVIDER": "mock", "DISPATCHER_GAIN": "loud"}},
		{name: "bad operator", env: map[string]string{"STT_PROVIDER": "mock", "TTS_PROVIDER": "mock", "TRANSLATION_PROVIDER": "mock", "OPERATORS": "alice"}},
		{
			name:     "missing file",
			env:      map[string]string{"CALLRELAY_CONFIG": "nope.yaml"},
			readFile: func(string) ([]byte, error) { return nil, errors.New("no such file") },
		},
		{
			name:     "bad yaml",
			env:      map[string]string{"CALLRELAY_CONFIG": "bad.yaml"},
			readFile: func(string) ([]byte, error) { return []byte("relay: [unterminated"), nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Loader{Lookup: mapLookup(tt.env), ReadFile: tt.readFile}.Load()
			assert.Error(t, err)
		})
	}
}

func TestEgressCapacityBudget(t *testing.T) {
	cfg := Default()
	cfg.STT.Provider = ProviderMock
	cfg.TTS.Provider = ProviderMock
	cfg.Translation.Provider = ProviderMock
	cfg.Relay.EgressCapacity = 100
	assert.Error(t, cfg.Validate())
}
