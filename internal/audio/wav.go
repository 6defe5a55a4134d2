package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps mono PCM16 samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(PCMToBytes(samples))
	return buf.Bytes()
}

// DecodeWAV reads a 16-bit PCM WAV file and downmixes it to mono.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE buffer", ErrCodec)
	}

	var (
		channels   int
		sampleRate int
		bits       int
		pcm        []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			// some encoders write a bogus size on the trailing data chunk
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrCodec)
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, 0, fmt.Errorf("%w: unsupported wav format %d", ErrCodec, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size + size%2
	}

	if channels == 0 || sampleRate == 0 {
		return nil, 0, fmt.Errorf("%w: missing fmt chunk", ErrCodec)
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("%w: unsupported bit depth %d", ErrCodec, bits)
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("%w: missing data chunk", ErrCodec)
	}

	samples, err := PCMFromBytes(pcm[:len(pcm)-len(pcm)%2])
	if err != nil {
		return nil, 0, err
	}
	return downmix(samples, channels), sampleRate, nil
}

func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var acc int32
		for c := 0; c < channels; c++ {
			acc += int32(samples[i*channels+c])
		}
		out[i] = int16(acc / int32(channels))
	}
	return out
}
