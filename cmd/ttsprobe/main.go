// Command ttsprobe synthesizes a phrase with the configured TTS provider,
// runs it through the telephony encoder and writes what a caller would
// hear to a WAV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/adapters/tts"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/config"
)

func main() {
	godotenv.Load()

	text := flag.String("text", "Help is on the way. Please stay on the line.", "text to synthesize")
	lang := flag.String("lang", "en", "language code of the text")
	output := flag.String("out", "ttsprobe.wav", "WAV file to write")
	listVoices := flag.Bool("voices", false, "list the ElevenLabs voices available to the API key and exit")
	flag.Parse()

	// Create logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Only the TTS section matters here; recognition is switched off so
	// that its keys are not required.
	cfg, err := config.Loader{Lookup: func(key string) (string, bool) {
		if key == "STT_PROVIDER" {
			return config.ProviderNone, true
		}
		return os.LookupEnv(key)
	}}.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if *listVoices {
		if err := printVoices(cfg, logger); err != nil {
			logger.Fatal("Failed to list voices", zap.Error(err))
		}
		return
	}

	synthesizer, err := tts.NewFromConfig(cfg.TTS, cfg.Translation.RequestsPerSecond, nil, logger)
	if err != nil {
		logger.Fatal("Failed to create TTS service", zap.Error(err))
	}
	if synthesizer == nil {
		logger.Fatal("TTS_PROVIDER is none; nothing to probe")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Converting text to speech",
		zap.String("provider", cfg.TTS.Provider),
		zap.String("language", *lang),
		zap.String("text", *text))

	started := time.Now()
	speech, err := synthesizer.Synthesize(ctx, *text, *lang)
	if err != nil {
		logger.Fatal("Failed to convert text to speech", zap.Error(err))
	}
	samples, rate, err := audio.DecodeToPCM(speech.Encoding, speech.Data, speech.SampleRate)
	if err != nil {
		logger.Fatal("Failed to decode synthesized audio", zap.Error(err))
	}
	frames, err := audio.EncodeTelephonyFrames(samples, rate)
	if err != nil {
		logger.Fatal("Failed to encode telephony frames", zap.Error(err))
	}

	var narrow []int16
	for _, frame := range frames {
		pcm, err := audio.DecodeMuLaw(frame)
		if err != nil {
			logger.Fatal("Failed to decode frame", zap.Error(err))
		}
		narrow = append(narrow, pcm...)
	}
	if err := os.WriteFile(*output, audio.EncodeWAV(narrow, audio.NarrowbandRate), 0o644); err != nil {
		logger.Fatal("Failed to write output file", zap.Error(err))
	}

	logger.Info("Audio conversion completed",
		zap.String("provider", speech.Provider),
		zap.String("encoding", speech.Encoding),
		zap.Int("sourceRate", rate),
		zap.Int("frames", len(frames)),
		zap.Duration("latency", time.Since(started)),
		zap.String("outputFile", *output))

	fmt.Printf("✅ %d telephony frames (%.1fs) saved to %s\n", len(frames), float64(len(frames))*0.02, *output)

	if os.Getenv("NO_AUTOPLAY") != "true" {
		if err := playAudioFile(*output, logger); err != nil {
			logger.Warn("Failed to play audio automatically", zap.Error(err))
		}
	}
}

func printVoices(cfg config.Config, logger *zap.Logger) error {
	eleven, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:     cfg.TTS.ElevenLabs.APIKey,
		APIBaseURL: cfg.TTS.ElevenLabs.BaseURL,
		Voices:     cfg.TTS.ElevenLabs.Voices,
	}, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	voices, err := eleven.ListVoices(ctx)
	if err != nil {
		return err
	}
	for _, v := range voices {
		fmt.Printf("%-24s %-20s %s\n", v.VoiceID, v.Name, v.Category)
	}
	for _, code := range []string{"en", "hi", "ta", "es"} {
		fmt.Printf("voice for %s: %s\n", code, eleven.VoiceFor(code))
	}
	return nil
}

// playAudioFile tries the usual command line players in turn
func playAudioFile(filename string, logger *zap.Logger) error {
	players := [][]string{
		{"play", "-q"},
		{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		{"aplay", "-q"},
		{"afplay"},
	}
	for _, player := range players {
		if _, err := exec.LookPath(player[0]); err != nil {
			continue
		}
		args := append(player[1:], filename)
		logger.Info("Attempting to play audio", zap.String("player", player[0]))
		if err := exec.Command(player[0], args...).Run(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no suitable audio player found")
}
