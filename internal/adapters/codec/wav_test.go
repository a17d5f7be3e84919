package codec

import (
	"context"
	"math"
	"testing"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

func testTone(frames, rate int) *dsp.Buffer {
	buf := dsp.NewBuffer(2, frames, rate)
	for c, ch := range buf.Channels {
		for i := range ch {
			ch[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)+float64(c))
		}
	}
	return buf
}

func TestWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		tol      float64
	}{
		{name: "16-bit pcm", bitDepth: 16, tol: 1.0 / 32768 * 2},
		{name: "24-bit pcm", bitDepth: 24, tol: 1.0 / 8388608 * 2},
		{name: "32-bit float", bitDepth: 32, tol: 1e-7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testTone(4800, 48000)
			data, err := encodeWAV(src, tt.bitDepth)
			if err != nil {
				t.Fatalf("encodeWAV: %v", err)
			}

			back, err := decodeWAV(data)
			if err != nil {
				t.Fatalf("decodeWAV: %v", err)
			}
			if back.Rate != 48000 {
				t.Fatalf("rate: got %d, want 48000", back.Rate)
			}
			if back.Frames() != src.Frames() {
				t.Fatalf("frames: got %d, want %d", back.Frames(), src.Frames())
			}
			for c := range src.Channels {
				for i := range src.Channels[c] {
					if diff := math.Abs(back.Channels[c][i] - src.Channels[c][i]); diff > tt.tol {
						t.Fatalf("sample %d/%d drifted by %v (depth %d)", c, i, diff, tt.bitDepth)
					}
				}
			}
		})
	}
}

func TestEncodeWAVClampsOverScale(t *testing.T) {
	buf := &dsp.Buffer{Rate: 48000, Channels: [][]float64{{1.5, -1.5}}}
	data, err := encodeWAV(buf, 16)
	if err != nil {
		t.Fatalf("encodeWAV: %v", err)
	}
	back, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	for _, s := range back.Channels[0] {
		if s > 1 || s < -1 {
			t.Fatalf("sample %v outside full scale", s)
		}
	}
}

func TestEncodeWAVRejectsBadDepth(t *testing.T) {
	if _, err := encodeWAV(dsp.NewBuffer(2, 10, 48000), 12); err == nil {
		t.Fatal("expected error for 12-bit depth")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := decodeWAV([]byte("definitely not a wav file, nowhere near")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestLooksLikeMP3(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "id3 tag", data: []byte("ID3\x04\x00"), want: true},
		{name: "frame sync", data: []byte{0xFF, 0xFB, 0x90}, want: true},
		{name: "riff header", data: []byte("RIFFxxxxWAVE"), want: false},
		{name: "too short", data: []byte{0xFF}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeMP3(tt.data); got != tt.want {
				t.Fatalf("looksLikeMP3: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcherNativeWAV(t *testing.T) {
	// Point at a nonexistent binary so only the native path is in play.
	d := NewDispatcher("/nonexistent/ffmpeg")

	if !d.Available(domain.FormatWAV) {
		t.Fatal("wav must always be encodable")
	}
	if d.Available(domain.FormatFLAC) || d.Available(domain.FormatMP3) || d.Available(domain.FormatAAC) {
		t.Fatal("lossy/flac formats reported available without ffmpeg")
	}

	src := testTone(4800, 48000)
	data, err := d.Encode(context.Background(), src, ports.EncodeOptions{
		Format: domain.FormatWAV, SampleRate: 48000, BitDepth: 16,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	back, err := d.Decode(context.Background(), data, "tone.wav")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Frames() != src.Frames() {
		t.Fatalf("frames: got %d, want %d", back.Frames(), src.Frames())
	}
}

func TestDispatcherEncodeResamples(t *testing.T) {
	d := NewDispatcher("/nonexistent/ffmpeg")
	src := testTone(44100, 44100) // 1 second

	data, err := d.Encode(context.Background(), src, ports.EncodeOptions{
		Format: domain.FormatWAV, SampleRate: 48000, BitDepth: 16,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := d.Decode(context.Background(), data, "tone.wav")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Rate != 48000 {
		t.Fatalf("rate: got %d, want 48000", back.Rate)
	}
	if diff := back.Frames() - 48000; diff < -1 || diff > 1 {
		t.Fatalf("frames: got %d, want 48000±1", back.Frames())
	}
}

func TestDispatcherRejectsUnknownFormat(t *testing.T) {
	d := NewDispatcher("/nonexistent/ffmpeg")
	_, err := d.Encode(context.Background(), testTone(100, 48000), ports.EncodeOptions{
		Format: "ogg", SampleRate: 48000,
	})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDispatcherRejectsUnavailableEncoder(t *testing.T) {
	d := NewDispatcher("/nonexistent/ffmpeg")
	_, err := d.Encode(context.Background(), testTone(100, 48000), ports.EncodeOptions{
		Format: domain.FormatMP3, SampleRate: 48000, BitrateKbps: 320,
	})
	if err == nil {
		t.Fatal("expected error for mp3 without ffmpeg")
	}
}

func TestDispatcherDecodeEmptySource(t *testing.T) {
	d := NewDispatcher("/nonexistent/ffmpeg")
	if _, err := d.Decode(context.Background(), nil, "empty.wav"); err == nil {
		t.Fatal("expected error for empty source")
	}
}
