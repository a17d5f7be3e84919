package dsp

import "math"

// K-weighting filter parameters per ITU-R BS.1770: a high-shelf boost
// around 1.68 kHz modelling head diffraction, cascaded with a high-pass
// near 38 Hz modelling reduced low-frequency sensitivity.
const (
	kShelfFreq = 1681.97
	kShelfGain = 4.0
	kShelfQ    = 0.7071752
	kHighFreq  = 38.13547
	kHighQ     = 0.5003270
)

// biquad is one second-order IIR section with two-sample delay history.
// State persists across Apply calls so a continuous stream is filtered
// without edge artifacts at buffer boundaries.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) process(samples []float64) {
	for i, x := range samples {
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		samples[i] = y
	}
}

func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// highShelfCoeffs fills f with RBJ high-shelf coefficients.
func (f *biquad) highShelfCoeffs(rate float64, freq, gainDB, q float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / rate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cosw + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw)
	b2 := a * ((a + 1) + (a-1)*cosw - beta)
	a0 := (a + 1) - (a-1)*cosw + beta
	a1 := 2 * ((a - 1) - (a+1)*cosw)
	a2 := (a + 1) - (a-1)*cosw - beta

	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

// highPassCoeffs fills f with RBJ high-pass coefficients.
func (f *biquad) highPassCoeffs(rate float64, freq, q float64) {
	w0 := 2 * math.Pi * freq / rate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)

	b0 := (1 + cosw) / 2
	b1 := -(1 + cosw)
	b2 := (1 + cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

// kChannel is the two-stage cascade for one audio channel.
type kChannel struct {
	shelf    biquad
	highpass biquad
}

// KWeighting applies the K-weighting pre-filter ahead of loudness
// measurement. One instance owns per-channel filter state; feed it the
// same continuous stream channel by channel. Enabled toggles bypass at
// runtime without disturbing coefficients.
type KWeighting struct {
	Enabled  bool
	rate     int
	channels []kChannel
}

// NewKWeighting returns an enabled filter for the given channel count.
func NewKWeighting(channels int) *KWeighting {
	if channels < 1 {
		channels = 1
	}
	return &KWeighting{Enabled: true, channels: make([]kChannel, channels)}
}

// configure recomputes coefficients; only called when the rate changes.
func (k *KWeighting) configure(rate int) {
	for i := range k.channels {
		k.channels[i].shelf.highShelfCoeffs(float64(rate), kShelfFreq, kShelfGain, kShelfQ)
		k.channels[i].highpass.highPassCoeffs(float64(rate), kHighFreq, kHighQ)
		k.channels[i].shelf.reset()
		k.channels[i].highpass.reset()
	}
	k.rate = rate
}

// Apply filters one channel's samples in place and returns the slice.
// Length is preserved. When disabled the buffer passes through unchanged.
func (k *KWeighting) Apply(channel int, samples []float64, rate int) []float64 {
	if !k.Enabled || channel < 0 || channel >= len(k.channels) || rate <= 0 {
		return samples
	}
	if rate != k.rate {
		k.configure(rate)
	}
	k.channels[channel].shelf.process(samples)
	k.channels[channel].highpass.process(samples)
	return samples
}

// Reset clears all delay history, e.g. when the stream is rerouted.
func (k *KWeighting) Reset() {
	for i := range k.channels {
		k.channels[i].shelf.reset()
		k.channels[i].highpass.reset()
	}
}
