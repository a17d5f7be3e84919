package render

import (
	"math"
	"testing"

	"github.com/calliope-audio/stemforge/internal/dsp"
)

func constantBuffer(value float64, frames, rate int) *dsp.Buffer {
	buf := dsp.NewBuffer(2, frames, rate)
	for _, ch := range buf.Channels {
		for i := range ch {
			ch[i] = value
		}
	}
	return buf
}

func TestMixTimeline(t *testing.T) {
	const rate = 48000

	t.Run("duration is the longest contributor", func(t *testing.T) {
		clips := []PlacedClip{
			{Buffer: constantBuffer(0.1, rate, rate), StartTime: 0},       // 1s at 0
			{Buffer: constantBuffer(0.1, rate/2, rate), StartTime: 2.0},   // 0.5s at 2s
			{Buffer: constantBuffer(0.1, rate*2, rate), StartTime: 0.25},  // 2s at 0.25s
		}
		out := MixTimeline(clips, rate)
		wantFrames := framesAt(0.25, rate) + rate*2
		if got := out.Frames(); got != wantFrames {
			t.Fatalf("frames: got %d, want %d", got, wantFrames)
		}
	})

	t.Run("overlapping regions sum additively", func(t *testing.T) {
		clips := []PlacedClip{
			{Buffer: constantBuffer(0.25, 100, rate), StartTime: 0},
			{Buffer: constantBuffer(0.25, 100, rate), StartTime: 0},
		}
		out := MixTimeline(clips, rate)
		if got := out.Channels[0][50]; math.Abs(got-0.5) > 1e-12 {
			t.Fatalf("overlap sum: got %v, want 0.5", got)
		}
	})

	t.Run("start offset places silence before the clip", func(t *testing.T) {
		clips := []PlacedClip{
			{Buffer: constantBuffer(0.5, 100, rate), StartTime: 0.5},
		}
		out := MixTimeline(clips, rate)
		offset := framesAt(0.5, rate)
		if out.Channels[0][offset-1] != 0 {
			t.Fatalf("expected silence before the clip start")
		}
		if out.Channels[0][offset] != 0.5 {
			t.Fatalf("clip not placed at its start: got %v", out.Channels[0][offset])
		}
	})

	t.Run("clip gain scales its contribution", func(t *testing.T) {
		clips := []PlacedClip{
			{Buffer: constantBuffer(0.5, 10, rate), Gain: 0.5},
		}
		out := MixTimeline(clips, rate)
		if got := out.Channels[0][0]; math.Abs(got-0.25) > 1e-12 {
			t.Fatalf("gain: got %v, want 0.25", got)
		}
	})

	t.Run("zero gain means unity", func(t *testing.T) {
		clips := []PlacedClip{
			{Buffer: constantBuffer(0.5, 10, rate)},
		}
		out := MixTimeline(clips, rate)
		if got := out.Channels[0][0]; got != 0.5 {
			t.Fatalf("unset gain: got %v, want 0.5", got)
		}
	})

	t.Run("no clips yields an empty buffer", func(t *testing.T) {
		out := MixTimeline(nil, rate)
		if out.Frames() != 0 {
			t.Fatalf("frames: got %d, want 0", out.Frames())
		}
	})
}

func TestMixWeighted(t *testing.T) {
	const rate = 48000

	t.Run("sources sum at their volumes", func(t *testing.T) {
		a := constantBuffer(0.5, 100, rate)
		b := constantBuffer(0.5, 100, rate)
		out := MixWeighted([]*dsp.Buffer{a, b}, []float64{1.0, 0.5}, rate)
		if got := out.Channels[0][0]; math.Abs(got-0.75) > 1e-12 {
			t.Fatalf("weighted sum: got %v, want 0.75", got)
		}
	})

	t.Run("no auto normalization during the mix", func(t *testing.T) {
		a := constantBuffer(0.8, 10, rate)
		b := constantBuffer(0.8, 10, rate)
		out := MixWeighted([]*dsp.Buffer{a, b}, []float64{1, 1}, rate)
		if got := out.Channels[0][0]; math.Abs(got-1.6) > 1e-12 {
			t.Fatalf("mix was scaled: got %v, want 1.6", got)
		}
	})

	t.Run("duration is the longest source", func(t *testing.T) {
		a := constantBuffer(0.1, 100, rate)
		b := constantBuffer(0.1, 300, rate)
		out := MixWeighted([]*dsp.Buffer{a, b}, []float64{1, 1}, rate)
		if out.Frames() != 300 {
			t.Fatalf("frames: got %d, want 300", out.Frames())
		}
	})

	t.Run("nil sources are skipped", func(t *testing.T) {
		out := MixWeighted([]*dsp.Buffer{nil, constantBuffer(0.3, 10, rate)}, []float64{1, 1}, rate)
		if got := out.Channels[0][0]; got != 0.3 {
			t.Fatalf("got %v, want 0.3", got)
		}
	})
}
