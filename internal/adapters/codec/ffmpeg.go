package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// FFmpeg shells out to the ffmpeg binary for formats the native path
// cannot handle: FLAC/MP3/AAC encoding and decoding of arbitrary
// containers, with sample-rate conversion done by ffmpeg's resampler.
type FFmpeg struct {
	bin      string
	probeBin string
}

// NewFFmpeg locates the ffmpeg and ffprobe binaries. path overrides the
// ffmpeg lookup; empty means search PATH. Decoding needs ffprobe for the
// stream's true rate and channel count, so a missing ffprobe makes the
// whole backend unavailable up front rather than mislabeling decoded
// audio later.
func NewFFmpeg(path string) *FFmpeg {
	bin := path
	if bin == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return &FFmpeg{}
		}
		bin = found
	} else if _, err := os.Stat(bin); err != nil {
		return &FFmpeg{}
	}

	// ffprobe usually ships alongside ffmpeg; fall back to PATH.
	probe := filepath.Join(filepath.Dir(bin), "ffprobe")
	if _, err := os.Stat(probe); err != nil {
		found, lookErr := exec.LookPath("ffprobe")
		if lookErr != nil {
			return &FFmpeg{}
		}
		probe = found
	}
	return &FFmpeg{bin: bin, probeBin: probe}
}

// Available reports whether ffmpeg can service the format. With a
// binary present every supported container works.
func (f *FFmpeg) Available(domain.Format) bool {
	return f.bin != ""
}

// Decode converts any ffmpeg-readable source to PCM float64 at its
// native sample rate and channel count.
func (f *FFmpeg) Decode(ctx context.Context, src []byte, nameHint string) (*dsp.Buffer, error) {
	if f.bin == "" {
		return nil, fmt.Errorf("codec: ffmpeg unavailable")
	}

	// ffmpeg needs a seekable input for some containers, so stage the
	// bytes in a scratch file rather than piping stdin.
	in, err := stageInput(src, nameHint)
	if err != nil {
		return nil, err
	}
	defer os.Remove(in)

	rate, channels, err := f.probe(ctx, in)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.bin,
		"-i", in,
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("codec: ffmpeg decode: %w (%s)", err, stderr.String())
	}

	n := len(out) / 8
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(out[i*8 : i*8+8]))
	}
	return dsp.Deinterleave(samples, channels, rate), nil
}

// Encode converts PCM to the requested container. Bit depth maps to the
// PCM/FLAC sample format; bitrate to the lossy encoder setting.
func (f *FFmpeg) Encode(ctx context.Context, buf *dsp.Buffer, opts ports.EncodeOptions) ([]byte, error) {
	if f.bin == "" {
		return nil, fmt.Errorf("codec: ffmpeg unavailable")
	}

	tmpDir, err := os.MkdirTemp("", "stemforge-enc-")
	if err != nil {
		return nil, fmt.Errorf("codec: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "out."+opts.Format.Extension())
	channels := len(buf.Channels)

	args := []string{
		"-f", "f64le",
		"-ar", strconv.Itoa(buf.Rate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-ar", strconv.Itoa(opts.SampleRate),
	}
	args = append(args, codecArgs(opts)...)
	args = append(args, "-loglevel", "error", "-y", outPath)

	cmd := exec.CommandContext(ctx, f.bin, args...)
	cmd.Stdin = bytes.NewReader(interleaveF64LE(buf))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("codec: ffmpeg encode %s: %w (%s)", opts.Format, err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("codec: read encoded output: %w", err)
	}
	return data, nil
}

// codecArgs maps format + options to encoder arguments. The inapplicable
// knob (depth for lossy, bitrate for lossless) is ignored by design.
func codecArgs(opts ports.EncodeOptions) []string {
	switch opts.Format {
	case domain.FormatWAV:
		return []string{"-acodec", pcmCodecName(opts.BitDepth)}
	case domain.FormatFLAC:
		// The flac encoder accepts only s16 and s32 sample formats;
		// 24-bit output is s32 with the raw sample width capped. Depths
		// above 24 are capped too, since FLAC tops out at 24-bit.
		if opts.BitDepth == 16 {
			return []string{"-acodec", "flac", "-sample_fmt", "s16"}
		}
		return []string{"-acodec", "flac", "-sample_fmt", "s32", "-bits_per_raw_sample", "24"}
	case domain.FormatMP3:
		return []string{"-acodec", "libmp3lame", "-b:a", bitrateArg(opts.BitrateKbps, 320)}
	case domain.FormatAAC:
		return []string{"-acodec", "aac", "-b:a", bitrateArg(opts.BitrateKbps, 256)}
	}
	return nil
}

func pcmCodecName(bitDepth int) string {
	switch bitDepth {
	case 24:
		return "pcm_s24le"
	case 32:
		return "pcm_f32le"
	default:
		return "pcm_s16le"
	}
}

func bitrateArg(kbps, fallback int) string {
	if kbps <= 0 {
		kbps = fallback
	}
	return strconv.Itoa(kbps) + "k"
}

// probe reads the stream's sample rate and channel count. A probe
// failure is fatal to the decode: guessing the rate would mislabel the
// PCM and pitch-shift the audio downstream.
func (f *FFmpeg) probe(ctx context.Context, path string) (rate, channels int, err error) {
	if f.probeBin == "" {
		return 0, 0, fmt.Errorf("codec: ffprobe unavailable")
	}

	cmd := exec.CommandContext(ctx, f.probeBin,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("codec: ffprobe: %w", err)
	}
	if _, scanErr := fmt.Sscanf(string(bytes.TrimSpace(out)), "%d,%d", &rate, &channels); scanErr != nil {
		return 0, 0, fmt.Errorf("codec: ffprobe output %q: %w", out, scanErr)
	}
	if channels < 1 {
		channels = 1
	}
	return rate, channels, nil
}

func stageInput(src []byte, nameHint string) (string, error) {
	ext := filepath.Ext(nameHint)
	if ext == "" {
		ext = ".bin"
	}
	tmp, err := os.CreateTemp("", "stemforge-src-*"+ext)
	if err != nil {
		return "", fmt.Errorf("codec: stage input: %w", err)
	}
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("codec: stage input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("codec: stage input: %w", err)
	}
	return tmp.Name(), nil
}

func interleaveF64LE(buf *dsp.Buffer) []byte {
	frames := buf.Frames()
	channels := len(buf.Channels)
	out := make([]byte, frames*channels*8)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			bits := math.Float64bits(buf.Channels[c][i])
			binary.LittleEndian.PutUint64(out[(i*channels+c)*8:], bits)
		}
	}
	return out
}
