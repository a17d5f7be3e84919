// Package dsp implements the signal-processing core: sample buffer
// measurements, K-weighting, and the real-time metering engine.
package dsp

import "math"

// Metering dB bounds. Values outside this window are clamped before they
// reach a snapshot so displays never see NaN or -Inf.
const (
	DBMin = -60.0
	DBMax = 6.0
)

// RMS returns the root-mean-square amplitude of a mono sample buffer.
// An empty buffer measures as silence (0).
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the maximum absolute sample value.
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// TruePeak estimates the inter-sample peak using a 3-point interpolation
// of each interior sample alongside the raw sample values. This
// approximates oversampled true-peak detection without a polyphase
// upsampler; it is a known deviation from BS.1770 4x oversampling.
func TruePeak(samples []float64) float64 {
	var peak float64
	for i, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
		if i > 0 && i < len(samples)-1 {
			interp := (samples[i-1] + 2*s + samples[i+1]) / 4
			if a := math.Abs(interp); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// LinearToDB converts a linear amplitude to decibels, clamped to
// [DBMin, DBMax]. Non-positive input maps to the floor.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return DBMin
	}
	db := 20 * math.Log10(linear)
	if db < DBMin {
		return DBMin
	}
	if db > DBMax {
		return DBMax
	}
	return db
}

// DBToLinear converts decibels to a linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// StereoCorrelation returns the normalized cross-correlation of two
// channels in [-1, 1]. When either channel carries no energy the signal
// is treated as mono-compatible and 1 is returned.
func StereoCorrelation(left, right []float64) float64 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	if n == 0 {
		return 1
	}
	var cross, energyL, energyR float64
	for i := 0; i < n; i++ {
		cross += left[i] * right[i]
		energyL += left[i] * left[i]
		energyR += right[i] * right[i]
	}
	if energyL == 0 || energyR == 0 {
		return 1
	}
	corr := cross / math.Sqrt(energyL*energyR)
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}
