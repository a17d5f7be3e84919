package dsp

import (
	"math"
	"testing"
)

func TestMeasureIntegratedLUFS(t *testing.T) {
	t.Run("silence measures at the floor", func(t *testing.T) {
		if got := MeasureIntegratedLUFS(NewBuffer(2, 48000, 48000)); got != LUFSMin {
			t.Fatalf("got %v, want %v", got, LUFSMin)
		}
	})

	t.Run("empty buffer measures at the floor", func(t *testing.T) {
		if got := MeasureIntegratedLUFS(NewBuffer(2, 0, 48000)); got != LUFSMin {
			t.Fatalf("got %v, want %v", got, LUFSMin)
		}
	})

	t.Run("gain raises loudness by the same dB", func(t *testing.T) {
		quiet := &Buffer{Rate: 48000, Channels: [][]float64{
			sine(997, 0.1, 48000, 96000),
			sine(997, 0.1, 48000, 96000),
		}}
		loud := quiet.Clone()
		loud.ApplyGain(2) // +6.02 dB

		lq := MeasureIntegratedLUFS(quiet)
		ll := MeasureIntegratedLUFS(loud)
		if diff := ll - lq; math.Abs(diff-20*math.Log10(2)) > 0.1 {
			t.Fatalf("loudness delta: got %v, want ~6.02", diff)
		}
	})

	t.Run("gated blocks do not drag the measurement down", func(t *testing.T) {
		// Loud first half, near-silent second half: the quiet blocks sit
		// under the gate and the result stays close to the loud-only value.
		loudHalf := sine(997, 0.3, 48000, 48000)
		quietHalf := sine(997, 1e-5, 48000, 48000)
		mixed := &Buffer{Rate: 48000, Channels: [][]float64{
			append(append([]float64(nil), loudHalf...), quietHalf...),
			append(append([]float64(nil), loudHalf...), quietHalf...),
		}}
		loudOnly := &Buffer{Rate: 48000, Channels: [][]float64{
			append([]float64(nil), loudHalf...),
			append([]float64(nil), loudHalf...),
		}}

		if got, want := MeasureIntegratedLUFS(mixed), MeasureIntegratedLUFS(loudOnly); math.Abs(got-want) > 0.5 {
			t.Fatalf("gating: got %v, want ~%v", got, want)
		}
	})
}

func TestMomentaryLoudness(t *testing.T) {
	kw := NewKWeighting(2)
	signal := sine(997, 0.25, 48000, 19200)
	loudness := MomentaryLoudness(kw, [][]float64{signal, signal}, 48000)
	if loudness <= LUFSMin || loudness > 0 {
		t.Fatalf("loudness out of range: %v", loudness)
	}

	// Input buffers are not modified.
	if signal[100] != sine(997, 0.25, 48000, 19200)[100] {
		t.Fatal("MomentaryLoudness modified its input")
	}
}

func TestLoudnessFromMeanSquareClamps(t *testing.T) {
	if got := loudnessFromMeanSquare(0); got != LUFSMin {
		t.Fatalf("zero power: got %v, want %v", got, LUFSMin)
	}
	if got := loudnessFromMeanSquare(1e-12); got != LUFSMin {
		t.Fatalf("tiny power: got %v, want %v", got, LUFSMin)
	}
	if got := loudnessFromMeanSquare(1e6); got != 0 {
		t.Fatalf("huge power: got %v, want 0", got)
	}
}
