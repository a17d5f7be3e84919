// Package render implements the offline rendering pipeline: timeline
// mixing, sample-rate conversion, normalization, and the track/master
// renderers that feed the export orchestrator.
package render

import "github.com/calliope-audio/stemforge/internal/dsp"

// Resample converts a buffer to the target rate using linear
// interpolation per channel. Returns the input unchanged when the rates
// already match. Linear interpolation is adequate here because the
// FFmpeg-backed codec path performs its own high-quality conversion;
// this covers the pure-Go path.
func Resample(buf *dsp.Buffer, targetRate int) *dsp.Buffer {
	if buf == nil || targetRate <= 0 || buf.Rate == targetRate || buf.Rate <= 0 {
		return buf
	}
	srcFrames := buf.Frames()
	if srcFrames == 0 {
		return &dsp.Buffer{Channels: buf.Channels, Rate: targetRate}
	}
	ratio := float64(buf.Rate) / float64(targetRate)
	dstFrames := int(float64(srcFrames) * float64(targetRate) / float64(buf.Rate))
	if dstFrames < 1 {
		dstFrames = 1
	}

	out := dsp.NewBuffer(len(buf.Channels), dstFrames, targetRate)
	for c, src := range buf.Channels {
		dst := out.Channels[c]
		for i := range dst {
			pos := float64(i) * ratio
			idx := int(pos)
			if idx >= srcFrames-1 {
				dst[i] = src[srcFrames-1]
				continue
			}
			frac := pos - float64(idx)
			dst[i] = src[idx]*(1-frac) + src[idx+1]*frac
		}
	}
	return out
}
