package dsp

import (
	"math"
	"testing"
)

func TestKWeightingPreservesLength(t *testing.T) {
	kw := NewKWeighting(2)
	in := sine(440, 0.5, 48000, 4800)
	out := kw.Apply(0, in, 48000)
	if len(out) != 4800 {
		t.Fatalf("length changed: got %d, want 4800", len(out))
	}
}

func TestKWeightingBypass(t *testing.T) {
	kw := NewKWeighting(1)
	kw.Enabled = false
	in := sine(440, 0.5, 48000, 256)
	want := append([]float64(nil), in...)
	kw.Apply(0, in, 48000)
	for i := range in {
		if in[i] != want[i] {
			t.Fatalf("bypass modified sample %d: got %v, want %v", i, in[i], want[i])
		}
	}
}

// Filtering one continuous stream in two halves must match filtering it
// whole: delay state persists across calls, so buffer boundaries add no
// edge artifacts.
func TestKWeightingStateContinuity(t *testing.T) {
	signal := sine(1000, 0.8, 48000, 9600)

	whole := append([]float64(nil), signal...)
	NewKWeighting(1).Apply(0, whole, 48000)

	split := NewKWeighting(1)
	first := append([]float64(nil), signal[:4800]...)
	second := append([]float64(nil), signal[4800:]...)
	split.Apply(0, first, 48000)
	split.Apply(0, second, 48000)

	for i := range first {
		if math.Abs(first[i]-whole[i]) > 1e-12 {
			t.Fatalf("first half diverged at %d: got %v, want %v", i, first[i], whole[i])
		}
	}
	for i := range second {
		if math.Abs(second[i]-whole[4800+i]) > 1e-12 {
			t.Fatalf("second half diverged at %d: got %v, want %v", i, second[i], whole[4800+i])
		}
	}
}

func TestKWeightingAttenuatesLowFrequencies(t *testing.T) {
	kw := NewKWeighting(1)
	low := sine(20, 0.5, 48000, 48000)
	kw.Apply(0, low, 48000)
	// Settle past the filter transient before measuring.
	if got := RMS(low[24000:]); got > 0.1 {
		t.Fatalf("20 Hz not attenuated: rms %v", got)
	}
}

func TestKWeightingBoostsHighShelf(t *testing.T) {
	kw := NewKWeighting(1)
	high := sine(8000, 0.5, 48000, 48000)
	before := RMS(high)
	kw.Apply(0, high, 48000)
	if got := RMS(high[24000:]); got <= before {
		t.Fatalf("8 kHz not boosted: rms %v, source %v", got, before)
	}
}

func TestKWeightingResetClearsHistory(t *testing.T) {
	kw := NewKWeighting(1)
	kw.Apply(0, sine(1000, 0.9, 48000, 4800), 48000)
	kw.Reset()

	fresh := NewKWeighting(1)
	a := sine(1000, 0.5, 48000, 480)
	b := append([]float64(nil), a...)
	kw.Apply(0, a, 48000)
	fresh.Apply(0, b, 48000)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Fatalf("reset filter diverged from fresh filter at %d", i)
		}
	}
}
