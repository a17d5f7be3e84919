package dsp

import "math"

// LUFSMin is the loudness display floor. The integrated-loudness gate
// sits 10 LU above it, a simplified absolute gate (the full EBU R128
// relative-gate pass is intentionally not implemented).
const (
	LUFSMin       = -60.0
	LUFSGate      = LUFSMin + 10
	lufsOffset    = -0.691
	lufsBlockSecs = 0.4
)

// loudnessFromMeanSquare converts a summed per-channel mean-square power
// to LUFS, clamped to the display window.
func loudnessFromMeanSquare(power float64) float64 {
	if power <= 0 {
		return LUFSMin
	}
	l := lufsOffset + 10*math.Log10(power)
	if l < LUFSMin {
		return LUFSMin
	}
	if l > 0 {
		return 0
	}
	return l
}

// meanSquare returns the average squared sample value.
func meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum / float64(len(samples))
}

// MomentaryLoudness computes the K-weighted loudness of one buffer of
// per-channel samples. The caller owns the KWeighting instance so filter
// state carries across successive buffers of the same stream. Input
// slices are not modified.
func MomentaryLoudness(kw *KWeighting, channels [][]float64, rate int) float64 {
	var power float64
	for c, ch := range channels {
		if len(ch) == 0 {
			continue
		}
		weighted := append([]float64(nil), ch...)
		kw.Apply(c, weighted, rate)
		power += meanSquare(weighted)
	}
	return loudnessFromMeanSquare(power)
}

// MeasureIntegratedLUFS measures the gated integrated loudness of a whole
// buffer: 400 ms K-weighted blocks, blocks quieter than the gate
// excluded, remaining block powers averaged in the energy domain.
// Returns LUFSMin for silence or empty input.
func MeasureIntegratedLUFS(buf *Buffer) float64 {
	if buf == nil || buf.Frames() == 0 || buf.Rate <= 0 {
		return LUFSMin
	}
	kw := NewKWeighting(len(buf.Channels))
	block := int(lufsBlockSecs * float64(buf.Rate))
	if block < 1 {
		block = 1
	}

	var gatedPower float64
	var gatedCount int
	frames := buf.Frames()
	for start := 0; start < frames; start += block {
		end := start + block
		if end > frames {
			end = frames
		}
		var power float64
		for c, ch := range buf.Channels {
			weighted := append([]float64(nil), ch[start:end]...)
			kw.Apply(c, weighted, buf.Rate)
			power += meanSquare(weighted)
		}
		if loudnessFromMeanSquare(power) > LUFSGate {
			gatedPower += power
			gatedCount++
		}
	}
	if gatedCount == 0 {
		return LUFSMin
	}
	return loudnessFromMeanSquare(gatedPower / float64(gatedCount))
}
