// Package audio converts between the telephony narrowband codec (8 kHz
// G.711 mu-law) and wideband linear PCM (16 kHz, 16-bit little endian).
// Every function is pure and safe to share across sessions.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	NarrowbandRate = 8000
	WidebandRate   = 16000

	// FrameDuration is the telephony packetization interval.
	FrameDuration = 20 * time.Millisecond
	// FrameSize is the mu-law payload size of one FrameDuration at NarrowbandRate.
	FrameSize = NarrowbandRate / 1000 * 20

	// SilenceByte is mu-law zero.
	SilenceByte byte = 0xFF

	muLawBias = 0x84
	muLawClip = 32635
)

// ErrCodec marks a malformed or unusable audio buffer. Callers drop the frame.
var ErrCodec = errors.New("audio codec error")

// DecodeMuLaw expands mu-law bytes into linear PCM16 samples.
func DecodeMuLaw(data []byte) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty mu-law buffer", ErrCodec)
	}
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = muLawToLinear(b)
	}
	return out, nil
}

// EncodeMuLaw compands linear PCM16 samples into mu-law bytes.
func EncodeMuLaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMuLaw(s)
	}
	return out
}

func muLawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	sample := (int32(mantissa)<<3 + muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

func linearToMuLaw(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// PCMFromBytes reads little endian PCM16 samples.
func PCMFromBytes(data []byte) ([]int16, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty pcm buffer", ErrCodec)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: pcm16 buffer has odd length %d", ErrCodec, len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out, nil
}

// PCMToBytes writes samples as little endian PCM16.
func PCMToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ApplyGain scales samples and clips to the int16 range.
func ApplyGain(samples []int16, gain float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clip(float64(s) * gain)
	}
	return out
}

func clip(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	case v >= 0:
		return int16(v + 0.5)
	default:
		return int16(v - 0.5)
	}
}
