package dsp

import "math"

// Buffer holds decoded PCM audio as per-channel float64 sample slices.
// All channels have equal length. Sample values are nominally in [-1, 1]
// but may exceed full scale before normalization or limiting.
type Buffer struct {
	Channels [][]float64
	Rate     int
}

// NewBuffer allocates a zeroed buffer of the given shape.
func NewBuffer(channels, frames, rate int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	chs := make([][]float64, channels)
	for i := range chs {
		chs[i] = make([]float64, frames)
	}
	return &Buffer{Channels: chs, Rate: rate}
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// ApplyGain scales every sample by a linear factor in place.
func (b *Buffer) ApplyGain(gain float64) {
	if gain == 1 {
		return
	}
	for _, ch := range b.Channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
}

// ApplyPan applies an equal-power pan to a stereo buffer. pan is in
// [-1, 1]; mono and multichannel buffers are left untouched.
func (b *Buffer) ApplyPan(pan float64) {
	if len(b.Channels) != 2 || pan == 0 {
		return
	}
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	// Equal-power law: unity at centre, -3 dB per side at the extremes.
	angle := (pan + 1) * math.Pi / 4
	gl := math.Cos(angle) * math.Sqrt2
	gr := math.Sin(angle) * math.Sqrt2
	if gl > 1 {
		gl = 1
	}
	if gr > 1 {
		gr = 1
	}
	left, right := b.Channels[0], b.Channels[1]
	for i := range left {
		left[i] *= gl
		right[i] *= gr
	}
}

// ToStereo returns a two-channel view of the buffer: mono is duplicated
// to both sides, extra channels beyond the first two are dropped.
func (b *Buffer) ToStereo() *Buffer {
	switch len(b.Channels) {
	case 0:
		return NewBuffer(2, 0, b.Rate)
	case 1:
		out := NewBuffer(2, b.Frames(), b.Rate)
		copy(out.Channels[0], b.Channels[0])
		copy(out.Channels[1], b.Channels[0])
		return out
	case 2:
		return b
	default:
		return &Buffer{Channels: b.Channels[:2], Rate: b.Rate}
	}
}

// Interleave flattens the buffer to a single interleaved sample slice.
func (b *Buffer) Interleave() []float64 {
	n := b.Frames()
	ch := len(b.Channels)
	out := make([]float64, n*ch)
	for c, samples := range b.Channels {
		for i, s := range samples {
			out[i*ch+c] = s
		}
	}
	return out
}

// Deinterleave builds a Buffer from an interleaved sample slice.
func Deinterleave(samples []float64, channels, rate int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	b := NewBuffer(channels, frames, rate)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			b.Channels[c][i] = samples[i*channels+c]
		}
	}
	return b
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Channels: make([][]float64, len(b.Channels)), Rate: b.Rate}
	for i, ch := range b.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return out
}
