package audio

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestMuLawRoundTripErrorIsBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOfN(rapid.Int16(), 1, 320).Draw(t, "samples")

		decoded, err := DecodeMuLaw(EncodeMuLaw(samples))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(decoded) != len(samples) {
			t.Fatalf("length changed: %d -> %d", len(samples), len(decoded))
		}
		for i, s := range samples {
			in := int32(s)
			tolerance := (abs32(in)+muLawBias)/32 + 1
			if abs32(in) > muLawClip {
				tolerance = 700
			}
			if diff := abs32(in - int32(decoded[i])); diff > tolerance {
				t.Fatalf("sample %d: %d decoded as %d (diff %d > %d)", i, s, decoded[i], diff, tolerance)
			}
		}
	})
}

func TestMuLawKnownValues(t *testing.T) {
	assert.Equal(t, SilenceByte, EncodeMuLaw([]int16{0})[0])

	decoded, err := DecodeMuLaw([]byte{SilenceByte, 0x7F})
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 0}, decoded)
}

func TestDecodeMuLawRejectsEmpty(t *testing.T) {
	_, err := DecodeMuLaw(nil)
	assert.True(t, errors.Is(err, ErrCodec))
}

func TestResampleRoundTripPreservesLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frames := rapid.IntRange(1, 10).Draw(t, "frames")
		samples := rapid.SliceOfN(rapid.Int16(), frames*FrameSize, frames*FrameSize).Draw(t, "samples")

		wide, err := Resample(samples, NarrowbandRate, WidebandRate)
		if err != nil {
			t.Fatal(err)
		}
		if len(wide) != 2*len(samples) {
			t.Fatalf("upsample length %d, want %d", len(wide), 2*len(samples))
		}
		narrow, err := Resample(wide, WidebandRate, NarrowbandRate)
		if err != nil {
			t.Fatal(err)
		}
		for f := 0; f < frames; f++ {
			got := len(narrow) - f*FrameSize
			if got > FrameSize {
				got = FrameSize
			}
			if d := got - FrameSize; d < -1 || d > 1 {
				t.Fatalf("frame %d has %d samples", f, got)
			}
		}
	})
}

func TestUpsampleSmoothing(t *testing.T) {
	out := Upsample([]int16{100, 200})
	// doubled: 100 100 200 200, kernel 0.25 0.5 0.25, zero padded
	assert.Equal(t, []int16{75, 125, 175, 150}, out)
}

func TestDownsampleAveragesPairs(t *testing.T) {
	assert.Equal(t, []int16{150, 350, 500}, Downsample([]int16{100, 200, 300, 400, 500}))
}

func TestResampleLinearRatio(t *testing.T) {
	out, err := Resample(make([]int16, 2205), 22050, 8000)
	require.NoError(t, err)
	assert.Equal(t, 800, len(out))

	_, err = Resample([]int16{1}, 0, 8000)
	assert.ErrorIs(t, err, ErrCodec)
}

func TestPCMBytes(t *testing.T) {
	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	decoded, err := PCMFromBytes(PCMToBytes(samples))
	require.NoError(t, err)
	assert.Equal(t, samples, decoded)

	_, err = PCMFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCodec)
}

func TestApplyGainClips(t *testing.T) {
	assert.Equal(t, []int16{200, -200, 32767, -32768}, ApplyGain([]int16{100, -100, 20000, -20000}, 2.0))
}

func TestDecodeTelephonyPayload(t *testing.T) {
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = SilenceByte
	}
	pcm, err := DecodeTelephonyPayload(base64.StdEncoding.EncodeToString(frame))
	require.NoError(t, err)
	assert.Len(t, pcm, 2*FrameSize)

	_, err = DecodeTelephonyPayload("!!not base64!!")
	assert.ErrorIs(t, err, ErrCodec)

	_, err = DecodeTelephonyPayload("")
	assert.ErrorIs(t, err, ErrCodec)
}

func TestEncodeTelephonyFramesPadsTail(t *testing.T) {
	// 500 samples at 16 kHz become 250 at 8 kHz: one full frame plus a padded one
	frames, err := EncodeTelephonyFrames(make([]int16, 500), WidebandRate)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Len(t, f, FrameSize)
	}
	assert.Equal(t, SilenceByte, frames[1][FrameSize-1])

	_, err = EncodeTelephonyFrames(nil, WidebandRate)
	assert.ErrorIs(t, err, ErrCodec)
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{1, -2, 3, -4, 5}
	decoded, rate, err := DecodeWAV(EncodeWAV(samples, WidebandRate))
	require.NoError(t, err)
	assert.Equal(t, WidebandRate, rate)
	assert.Equal(t, samples, decoded)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV([]byte("definitely not a wav file"))
	assert.ErrorIs(t, err, ErrCodec)
}

func TestDecodeToPCM(t *testing.T) {
	samples, rate, err := DecodeToPCM(EncodingPCM16, PCMToBytes([]int16{7, 8}), 22050)
	require.NoError(t, err)
	assert.Equal(t, 22050, rate)
	assert.Equal(t, []int16{7, 8}, samples)

	_, rate, err = DecodeToPCM(EncodingMuLaw, []byte{SilenceByte}, 0)
	require.NoError(t, err)
	assert.Equal(t, NarrowbandRate, rate)

	_, _, err = DecodeToPCM("ogg", []byte{1}, 0)
	assert.ErrorIs(t, err, ErrCodec)

	_, _, err = DecodeToPCM(EncodingMP3, nil, 0)
	assert.ErrorIs(t, err, ErrCodec)
}
