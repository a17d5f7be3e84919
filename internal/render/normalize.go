package render

import (
	"math"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// Normalization constants. The true-peak ceiling leaves headroom against
// inter-sample overshoot after lossy encoding; frame/filter sizes follow
// the dynamics-normalization tuning validated for programme material.
const (
	TruePeakCeilingDB = -1.5
	MaxLoudnessRange  = 11.0 // LU, loudness-range constraint for LUFS mode

	dynFrameSeconds = 0.5
	dynFilterSize   = 31
	dynMaxGain      = 10.0
	dynSilenceDB    = -50.0
)

// NormalizeOptions selects the post-mix loudness strategy.
// TargetLevel is dBFS for peak/rms and LUFS for lufs.
type NormalizeOptions struct {
	Type        domain.NormalizationType
	TargetLevel float64
}

// DefaultTargetLevel returns the conventional target for a strategy,
// used when a request leaves the level unset.
func DefaultTargetLevel(t domain.NormalizationType) float64 {
	switch t {
	case domain.NormalizePeak:
		return -1.0
	case domain.NormalizeRMS:
		return -18.0
	case domain.NormalizeLUFS:
		return -14.0
	}
	return 0
}

// Normalize adjusts the buffer toward the requested level in place.
// NormalizeNone is a full bypass. Every strategy finishes under the
// true-peak ceiling.
func Normalize(buf *dsp.Buffer, opts NormalizeOptions) {
	if buf == nil || buf.Frames() == 0 {
		return
	}
	switch opts.Type {
	case domain.NormalizePeak:
		normalizePeak(buf, opts.TargetLevel)
	case domain.NormalizeRMS:
		normalizeDynamic(buf, opts.TargetLevel)
		applyTruePeakCeiling(buf)
	case domain.NormalizeLUFS:
		normalizeLoudness(buf, opts.TargetLevel)
		applyTruePeakCeiling(buf)
	case domain.NormalizeNone, "":
		return
	}
}

// normalizePeak applies a scalar gain so the sample peak lands on the
// target dBFS. Silence stays silence.
func normalizePeak(buf *dsp.Buffer, targetDB float64) {
	var peak float64
	for _, ch := range buf.Channels {
		if p := dsp.Peak(ch); p > peak {
			peak = p
		}
	}
	if peak == 0 {
		return
	}
	buf.ApplyGain(dsp.DBToLinear(targetDB) / peak)
}

// normalizeDynamic runs a frame-based dynamics normalization: per-frame
// RMS gains toward the target, Gaussian-smoothed so neighbouring frames
// transition without pumping, capped at dynMaxGain. Frames below the
// silence floor keep unity gain instead of boosting noise.
func normalizeDynamic(buf *dsp.Buffer, targetDB float64) {
	frames := buf.Frames()
	frameLen := int(dynFrameSeconds * float64(buf.Rate))
	if frameLen < 1 {
		frameLen = frames
	}
	nFrames := (frames + frameLen - 1) / frameLen
	if nFrames == 0 {
		return
	}

	targetLin := dsp.DBToLinear(targetDB)
	silenceLin := dsp.DBToLinear(dynSilenceDB)
	gains := make([]float64, nFrames)
	for i := range gains {
		start := i * frameLen
		end := start + frameLen
		if end > frames {
			end = frames
		}
		var power float64
		var count int
		for _, ch := range buf.Channels {
			seg := ch[start:end]
			r := dsp.RMS(seg)
			power += r * r
			count++
		}
		rms := math.Sqrt(power / float64(count))
		if rms < silenceLin {
			gains[i] = 1
			continue
		}
		g := targetLin / rms
		if g > dynMaxGain {
			g = dynMaxGain
		}
		gains[i] = g
	}

	smoothed := gaussianSmooth(gains, dynFilterSize)
	applyFrameGains(buf, smoothed, frameLen)
}

// normalizeLoudness applies a scalar gain toward the integrated LUFS
// target, then constrains the loudness range so no 3-second region sits
// further than MaxLoudnessRange/2 from the target.
func normalizeLoudness(buf *dsp.Buffer, targetLUFS float64) {
	measured := dsp.MeasureIntegratedLUFS(buf)
	if measured <= dsp.LUFSMin {
		return // silence: nothing to normalize
	}
	buf.ApplyGain(dsp.DBToLinear(targetLUFS - measured))
	constrainLoudnessRange(buf, targetLUFS, MaxLoudnessRange)
}

// constrainLoudnessRange measures 3 s loudness blocks and pulls outliers
// back inside the allowed range with a smoothed per-block gain curve.
func constrainLoudnessRange(buf *dsp.Buffer, targetLUFS, maxLRA float64) {
	blockLen := 3 * buf.Rate
	frames := buf.Frames()
	if blockLen < 1 || frames <= blockLen {
		return
	}
	nBlocks := (frames + blockLen - 1) / blockLen
	half := maxLRA / 2

	gains := make([]float64, nBlocks)
	for i := range gains {
		start := i * blockLen
		end := start + blockLen
		if end > frames {
			end = frames
		}
		sub := &dsp.Buffer{Rate: buf.Rate, Channels: make([][]float64, len(buf.Channels))}
		for c, ch := range buf.Channels {
			sub.Channels[c] = ch[start:end]
		}
		loudness := dsp.MeasureIntegratedLUFS(sub)
		gains[i] = 1
		if loudness <= dsp.LUFSMin {
			continue // gated silence is left alone
		}
		if loudness > targetLUFS+half {
			gains[i] = dsp.DBToLinear(targetLUFS + half - loudness)
		} else if loudness < targetLUFS-half {
			g := dsp.DBToLinear(targetLUFS - half - loudness)
			if g > dynMaxGain {
				g = dynMaxGain
			}
			gains[i] = g
		}
	}

	smoothed := gaussianSmooth(gains, dynFilterSize)
	applyFrameGains(buf, smoothed, blockLen)
}

// applyTruePeakCeiling scales the whole buffer down when the estimated
// true peak exceeds the ceiling. Gain-only: no clipping, no waveshaping.
func applyTruePeakCeiling(buf *dsp.Buffer) {
	var tp float64
	for _, ch := range buf.Channels {
		if p := dsp.TruePeak(ch); p > tp {
			tp = p
		}
	}
	ceiling := dsp.DBToLinear(TruePeakCeilingDB)
	if tp > ceiling {
		buf.ApplyGain(ceiling / tp)
	}
}

// gaussianSmooth convolves the gain curve with a Gaussian kernel. The
// kernel is normalized and truncated at the curve edges.
func gaussianSmooth(values []float64, size int) []float64 {
	if len(values) < 2 || size < 3 {
		return values
	}
	if size%2 == 0 {
		size++
	}
	half := size / 2
	sigma := float64(size) / 6
	kernel := make([]float64, size)
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]float64, len(values))
	for i := range values {
		var acc, weight float64
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 || j >= len(values) {
				continue
			}
			w := kernel[k+half]
			acc += values[j] * w
			weight += w
		}
		out[i] = acc / weight
	}
	return out
}

// applyFrameGains applies per-frame gains with a linear ramp between
// adjacent frames so gain steps never produce audible discontinuities.
func applyFrameGains(buf *dsp.Buffer, gains []float64, frameLen int) {
	frames := buf.Frames()
	for _, ch := range buf.Channels {
		for i := 0; i < frames; i++ {
			fi := i / frameLen
			if fi >= len(gains) {
				fi = len(gains) - 1
			}
			g := gains[fi]
			if fi+1 < len(gains) {
				frac := float64(i%frameLen) / float64(frameLen)
				g = gains[fi]*(1-frac) + gains[fi+1]*frac
			}
			ch[i] *= g
		}
	}
}
