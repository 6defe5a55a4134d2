package audio

import "fmt"

var smoothingKernel = [3]float64{0.25, 0.5, 0.25}

// Resample converts samples between rates. Doubling uses sample
// duplication plus 3-tap smoothing, halving averages sample pairs, any
// other ratio falls back to linear interpolation.
func Resample(samples []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("%w: invalid rate %d -> %d", ErrCodec, fromRate, toRate)
	}
	switch {
	case len(samples) == 0:
		return []int16{}, nil
	case fromRate == toRate:
		out := make([]int16, len(samples))
		copy(out, samples)
		return out, nil
	case toRate == fromRate*2:
		return upsample2x(samples), nil
	case fromRate == toRate*2:
		return downsample2x(samples), nil
	default:
		return resampleLinear(samples, fromRate, toRate), nil
	}
}

// Upsample converts 8 kHz PCM to 16 kHz.
func Upsample(samples []int16) []int16 {
	return upsample2x(samples)
}

// Downsample converts 16 kHz PCM to 8 kHz.
func Downsample(samples []int16) []int16 {
	return downsample2x(samples)
}

func upsample2x(samples []int16) []int16 {
	doubled := make([]float64, len(samples)*2)
	for i, s := range samples {
		doubled[2*i] = float64(s)
		doubled[2*i+1] = float64(s)
	}

	// 'same' convolution with zero padding at both edges
	out := make([]int16, len(doubled))
	for i := range doubled {
		acc := smoothingKernel[1] * doubled[i]
		if i > 0 {
			acc += smoothingKernel[0] * doubled[i-1]
		}
		if i+1 < len(doubled) {
			acc += smoothingKernel[2] * doubled[i+1]
		}
		out[i] = clip(acc)
	}
	return out
}

func downsample2x(samples []int16) []int16 {
	out := make([]int16, (len(samples)+1)/2)
	for i := range out {
		a := int32(samples[2*i])
		if 2*i+1 < len(samples) {
			out[i] = int16((a + int32(samples[2*i+1])) / 2)
			continue
		}
		out[i] = int16(a)
	}
	return out
}

func resampleLinear(samples []int16, fromRate, toRate int) []int16 {
	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if n == 0 {
		n = 1
	}
	out := make([]int16, n)
	step := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = clip(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}
