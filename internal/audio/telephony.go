package audio

import (
	"encoding/base64"
	"fmt"
)

// DecodeTelephonyPayload turns a base64 mu-law media payload into
// 16 kHz PCM16 samples.
func DecodeTelephonyPayload(payload string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", ErrCodec, err)
	}
	narrow, err := DecodeMuLaw(raw)
	if err != nil {
		return nil, err
	}
	return Upsample(narrow), nil
}

// EncodeTelephonyFrames converts PCM at sampleRate into 8 kHz mu-law
// frames of FrameSize bytes. A short tail is padded with silence.
func EncodeTelephonyFrames(samples []int16, sampleRate int) ([][]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to encode", ErrCodec)
	}
	narrow, err := Resample(samples, sampleRate, NarrowbandRate)
	if err != nil {
		return nil, err
	}
	return Frames(EncodeMuLaw(narrow)), nil
}

// Frames splits a mu-law buffer into FrameSize chunks.
func Frames(ulaw []byte) [][]byte {
	frames := make([][]byte, 0, (len(ulaw)+FrameSize-1)/FrameSize)
	for start := 0; start < len(ulaw); start += FrameSize {
		frame := make([]byte, FrameSize)
		n := copy(frame, ulaw[start:])
		for i := n; i < FrameSize; i++ {
			frame[i] = SilenceByte
		}
		frames = append(frames, frame)
	}
	return frames
}

// EncodePayload base64 encodes a frame for the media stream envelope.
func EncodePayload(frame []byte) string {
	return base64.StdEncoding.EncodeToString(frame)
}
