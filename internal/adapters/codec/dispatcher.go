package codec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/dsp"
	"github.com/calliope-audio/stemforge/internal/render"
)

// Dispatcher implements ports.Codec by routing between the native Go
// path (WAV encode/decode, MP3 decode) and the FFmpeg CLI. Capability is
// decided here, once, so the orchestrator can reject an unavailable
// format during validation instead of discovering it mid-pipeline.
type Dispatcher struct {
	ffmpeg *FFmpeg
}

// NewDispatcher builds the codec stack. ffmpegPath may be empty to
// search PATH; the FFmpeg backend simply reports unavailable when the
// binary is absent.
func NewDispatcher(ffmpegPath string) *Dispatcher {
	return &Dispatcher{ffmpeg: NewFFmpeg(ffmpegPath)}
}

// Available reports whether the format can be encoded. WAV always can
// (native path); FLAC/MP3/AAC need the ffmpeg binary.
func (d *Dispatcher) Available(f domain.Format) bool {
	if f == domain.FormatWAV {
		return true
	}
	return d.ffmpeg.Available(f)
}

// Formats lists the currently encodable formats, for startup logging.
func (d *Dispatcher) Formats() []domain.Format {
	all := []domain.Format{domain.FormatWAV, domain.FormatFLAC, domain.FormatMP3, domain.FormatAAC}
	out := make([]domain.Format, 0, len(all))
	for _, f := range all {
		if d.Available(f) {
			out = append(out, f)
		}
	}
	return out
}

// Decode sniffs the payload and picks a decoder: native WAV, native MP3,
// then FFmpeg for everything else.
func (d *Dispatcher) Decode(ctx context.Context, src []byte, nameHint string) (*dsp.Buffer, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("codec: empty source %q", nameHint)
	}

	if len(src) >= 12 && string(src[0:4]) == "RIFF" && string(src[8:12]) == "WAVE" {
		return decodeWAV(src)
	}
	if strings.EqualFold(filepath.Ext(nameHint), ".mp3") || looksLikeMP3(src) {
		if buf, err := decodeMP3(src); err == nil {
			return buf, nil
		}
		// Sniffing can false-positive on a frame sync; let ffmpeg retry.
	}
	if d.ffmpeg.Available("") {
		return d.ffmpeg.Decode(ctx, src, nameHint)
	}
	return nil, fmt.Errorf("codec: no decoder for %q (ffmpeg unavailable)", nameHint)
}

// Encode converts and containers the buffer. WAV is handled natively,
// including the sample-rate conversion; other formats go through ffmpeg.
func (d *Dispatcher) Encode(ctx context.Context, buf *dsp.Buffer, opts ports.EncodeOptions) ([]byte, error) {
	if _, err := domain.ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Format == domain.FormatWAV {
		converted := buf
		if opts.SampleRate > 0 && opts.SampleRate != buf.Rate {
			converted = render.Resample(buf, opts.SampleRate)
		}
		return encodeWAV(converted, opts.BitDepth)
	}
	if !d.ffmpeg.Available(opts.Format) {
		return nil, fmt.Errorf("codec: %s encoder unavailable", opts.Format)
	}
	return d.ffmpeg.Encode(ctx, buf, opts)
}
