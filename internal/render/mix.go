package render

import "github.com/calliope-audio/stemforge/internal/dsp"

// PlacedClip is a decoded clip positioned on the track timeline. Buffer
// must already be at the mix sample rate and stereo.
type PlacedClip struct {
	Buffer    *dsp.Buffer
	StartTime float64 // seconds from timeline zero
	Gain      float64 // linear, 1.0 = unity
}

// MixTimeline sums clips onto a continuous timeline at the given rate.
// Overlapping regions add; clips never truncate each other, so the mix
// length is the longest contributor's end. Clips may start anywhere >= 0
// with no global bound. An additive equal-weight mix: no implicit
// normalization is applied here.
func MixTimeline(clips []PlacedClip, rate int) *dsp.Buffer {
	totalFrames := 0
	for _, c := range clips {
		if c.Buffer == nil {
			continue
		}
		start := framesAt(c.StartTime, rate)
		if end := start + c.Buffer.Frames(); end > totalFrames {
			totalFrames = end
		}
	}
	out := dsp.NewBuffer(2, totalFrames, rate)
	for _, c := range clips {
		if c.Buffer == nil {
			continue
		}
		gain := c.Gain
		if gain == 0 {
			gain = 1
		}
		start := framesAt(c.StartTime, rate)
		src := c.Buffer.ToStereo()
		for ch := 0; ch < 2; ch++ {
			dst := out.Channels[ch][start:]
			for i, s := range src.Channels[ch] {
				dst[i] += s * gain
			}
		}
	}
	return out
}

// MixWeighted sums already-aligned stereo sources scaled by per-source
// gains, amix-style: duration is the longest contributor and no
// normalization happens during the mix itself.
func MixWeighted(sources []*dsp.Buffer, gains []float64, rate int) *dsp.Buffer {
	totalFrames := 0
	for _, s := range sources {
		if s != nil && s.Frames() > totalFrames {
			totalFrames = s.Frames()
		}
	}
	out := dsp.NewBuffer(2, totalFrames, rate)
	for i, s := range sources {
		if s == nil {
			continue
		}
		gain := 1.0
		if i < len(gains) {
			gain = gains[i]
		}
		st := s.ToStereo()
		for ch := 0; ch < 2; ch++ {
			dst := out.Channels[ch]
			for j, v := range st.Channels[ch] {
				dst[j] += v * gain
			}
		}
	}
	return out
}

func framesAt(seconds float64, rate int) int {
	if seconds < 0 {
		return 0
	}
	return int(seconds * float64(rate))
}
