package codec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
)

func TestCodecArgs(t *testing.T) {
	tests := []struct {
		name string
		opts ports.EncodeOptions
		want string
	}{
		{
			name: "wav 16-bit",
			opts: ports.EncodeOptions{Format: domain.FormatWAV, BitDepth: 16},
			want: "-acodec pcm_s16le",
		},
		{
			name: "wav 24-bit",
			opts: ports.EncodeOptions{Format: domain.FormatWAV, BitDepth: 24},
			want: "-acodec pcm_s24le",
		},
		{
			name: "wav 32-bit float",
			opts: ports.EncodeOptions{Format: domain.FormatWAV, BitDepth: 32},
			want: "-acodec pcm_f32le",
		},
		{
			name: "flac 16-bit",
			opts: ports.EncodeOptions{Format: domain.FormatFLAC, BitDepth: 16},
			want: "-acodec flac -sample_fmt s16",
		},
		{
			// The flac encoder has no s24 sample format; 24-bit rides on
			// s32 with the raw sample width capped.
			name: "flac 24-bit",
			opts: ports.EncodeOptions{Format: domain.FormatFLAC, BitDepth: 24},
			want: "-acodec flac -sample_fmt s32 -bits_per_raw_sample 24",
		},
		{
			name: "flac 32-bit capped to 24",
			opts: ports.EncodeOptions{Format: domain.FormatFLAC, BitDepth: 32},
			want: "-acodec flac -sample_fmt s32 -bits_per_raw_sample 24",
		},
		{
			name: "mp3 default bitrate",
			opts: ports.EncodeOptions{Format: domain.FormatMP3},
			want: "-acodec libmp3lame -b:a 320k",
		},
		{
			name: "mp3 explicit bitrate",
			opts: ports.EncodeOptions{Format: domain.FormatMP3, BitrateKbps: 192},
			want: "-acodec libmp3lame -b:a 192k",
		},
		{
			name: "aac default bitrate",
			opts: ports.EncodeOptions{Format: domain.FormatAAC},
			want: "-acodec aac -b:a 256k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(codecArgs(tt.opts), " ")
			if got != tt.want {
				t.Fatalf("codecArgs: got %q, want %q", got, tt.want)
			}
			// s24 is not a sample format libavutil knows about.
			if strings.Contains(got, "s24") && !strings.Contains(got, "pcm_s24le") {
				t.Fatalf("codecArgs built an invalid sample format: %q", got)
			}
		})
	}
}

func writeFakeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewFFmpegRequiresProbe(t *testing.T) {
	t.Run("ffmpeg without ffprobe is unavailable", func(t *testing.T) {
		dir := t.TempDir()
		bin := writeFakeBinary(t, dir, "ffmpeg")
		t.Setenv("PATH", dir) // no ffprobe reachable anywhere

		if NewFFmpeg(bin).Available(domain.FormatFLAC) {
			t.Fatal("backend reported available without ffprobe")
		}
	})

	t.Run("ffmpeg with sibling ffprobe is available", func(t *testing.T) {
		dir := t.TempDir()
		bin := writeFakeBinary(t, dir, "ffmpeg")
		writeFakeBinary(t, dir, "ffprobe")

		if !NewFFmpeg(bin).Available(domain.FormatFLAC) {
			t.Fatal("backend unavailable despite ffmpeg and ffprobe present")
		}
	})

	t.Run("missing ffmpeg binary", func(t *testing.T) {
		if NewFFmpeg("/nonexistent/ffmpeg").Available(domain.FormatFLAC) {
			t.Fatal("backend reported available without ffmpeg")
		}
	})
}
