package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// Encodings produced by speech synthesis backends.
const (
	EncodingPCM16 = "pcm16"
	EncodingMuLaw = "mulaw"
	EncodingMP3   = "mp3"
	EncodingWAV   = "wav"
)

// DecodeToPCM converts synthesized audio to mono PCM16 and reports its
// sample rate. sampleRate is only consulted for headerless encodings.
func DecodeToPCM(encoding string, data []byte, sampleRate int) ([]int16, int, error) {
	switch encoding {
	case EncodingPCM16:
		samples, err := PCMFromBytes(data)
		return samples, sampleRate, err
	case EncodingMuLaw:
		samples, err := DecodeMuLaw(data)
		return samples, NarrowbandRate, err
	case EncodingWAV:
		return DecodeWAV(data)
	case EncodingMP3:
		return DecodeMP3(data)
	default:
		return nil, 0, fmt.Errorf("%w: unsupported encoding %q", ErrCodec, encoding)
	}
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo,
// which is downmixed to mono.
func DecodeMP3(data []byte) ([]int16, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty mp3 buffer", ErrCodec)
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: mp3 decoder: %v", ErrCodec, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: mp3 read: %v", ErrCodec, err)
	}
	samples, err := PCMFromBytes(raw[:len(raw)-len(raw)%4])
	if err != nil {
		return nil, 0, err
	}
	return downmix(samples, 2), dec.SampleRate(), nil
}
