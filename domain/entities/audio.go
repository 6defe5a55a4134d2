package entities

import "time"

// Track identifies which party produced a piece of audio or speech.
type Track string

const (
	TrackCaller     Track = "caller"
	TrackDispatcher Track = "dispatcher"
)

// AudioFormat describes the sample layout of a frame payload.
type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// WidebandPCM is the internal working format: 16 kHz mono PCM16.
var WidebandPCM = AudioFormat{Encoding: "pcm16", SampleRate: 16000, Channels: 1}

// AudioFrame is one immutable chunk of audio. Whoever dequeues a frame
// owns it; the payload must not be modified after construction.
type AudioFrame struct {
	Track     Track
	Format    AudioFormat
	Payload   []byte
	ArrivedAt time.Time
}

// NewAudioFrame stamps a payload with its track and arrival time.
func NewAudioFrame(track Track, format AudioFormat, payload []byte) AudioFrame {
	return AudioFrame{
		Track:     track,
		Format:    format,
		Payload:   payload,
		ArrivedAt: time.Now(),
	}
}

// Duration reports how much audio the frame carries.
func (f AudioFrame) Duration() time.Duration {
	if f.Format.SampleRate == 0 || f.Format.Channels == 0 {
		return 0
	}
	bytesPerSample := 2
	if f.Format.Encoding == "mulaw" {
		bytesPerSample = 1
	}
	samples := len(f.Payload) / bytesPerSample / f.Format.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.Format.SampleRate)
}

// SynthesizedAudio is what a speech synthesis backend returns.
type SynthesizedAudio struct {
	Data       []byte
	Encoding   string
	SampleRate int
	Provider   string
}
