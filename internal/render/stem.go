package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// silencePlaceholderSecs is the length of the file rendered for a track
// with no clips, so every requested track yields an output and the
// archive manifest stays uniform.
const silencePlaceholderSecs = 1.0

// StemRenderer turns one track's clip list into a rendered, uploaded
// audio file.
type StemRenderer struct {
	codec   ports.Codec
	storage ports.Storage
}

// NewStemRenderer constructs a StemRenderer.
func NewStemRenderer(codec ports.Codec, storage ports.Storage) *StemRenderer {
	return &StemRenderer{codec: codec, storage: storage}
}

// RenderTrack renders a track per the export request and uploads the
// result. The returned buffer is the post-mix, pre-encode audio so the
// master bus can reuse it without re-decoding. Errors are scoped to this
// track; the orchestrator logs and continues with the rest of the batch.
func (r *StemRenderer) RenderTrack(ctx context.Context, track domain.Track, req domain.ExportRequest) (domain.FileDescriptor, *dsp.Buffer, error) {
	buf, err := r.mixTrack(ctx, track, req)
	if err != nil {
		return domain.FileDescriptor{}, nil, err
	}

	if req.Normalize && req.NormalizationType != domain.NormalizeNone {
		Normalize(buf, NormalizeOptions{Type: req.NormalizationType, TargetLevel: req.TargetLevel})
	}

	desc, err := r.encodeAndStore(ctx, buf, trackFileName(track.Name, req.Format), "stems", req)
	if err != nil {
		return domain.FileDescriptor{}, nil, err
	}
	desc.TrackID = track.ID
	return desc, buf, nil
}

// mixTrack decodes and assembles the track timeline at the target rate.
func (r *StemRenderer) mixTrack(ctx context.Context, track domain.Track, req domain.ExportRequest) (*dsp.Buffer, error) {
	var buf *dsp.Buffer
	switch len(track.Clips) {
	case 0:
		// Silent placeholder: an explicit "no audio" signal beats an
		// omitted file downstream.
		buf = dsp.NewBuffer(2, int(silencePlaceholderSecs*float64(req.SampleRate)), req.SampleRate)
	case 1:
		decoded, err := r.decodeClip(ctx, track.Clips[0], req.SampleRate)
		if err != nil {
			return nil, err
		}
		buf = decoded.Buffer.ToStereo()
		if decoded.Gain != 1 {
			buf.ApplyGain(decoded.Gain)
		}
	default:
		clips := make([]PlacedClip, 0, len(track.Clips))
		for _, c := range track.Clips {
			decoded, err := r.decodeClip(ctx, c, req.SampleRate)
			if err != nil {
				return nil, err
			}
			clips = append(clips, decoded)
		}
		buf = MixTimeline(clips, req.SampleRate)
	}

	if track.Volume != 1 && track.Volume != 0 {
		buf.ApplyGain(track.Volume)
	}
	buf.ApplyPan(track.Pan)
	return buf, nil
}

// decodeClip downloads and decodes one clip, converts it to the mix rate
// and stereo, and trims it to the clip's stated duration when the source
// runs longer.
func (r *StemRenderer) decodeClip(ctx context.Context, clip domain.AudioClip, rate int) (PlacedClip, error) {
	data, err := r.storage.Download(ctx, clip.FileReference)
	if err != nil {
		return PlacedClip{}, ports.SourceUnavailableError{Ref: clip.FileReference, Err: err}
	}
	decoded, err := r.codec.Decode(ctx, data, clip.FileReference)
	if err != nil {
		return PlacedClip{}, ports.SourceUnavailableError{Ref: clip.FileReference, Err: err}
	}
	buf := Resample(decoded, rate).ToStereo()
	if clip.Duration > 0 {
		if max := int(clip.Duration * float64(rate)); buf.Frames() > max {
			for c := range buf.Channels {
				buf.Channels[c] = buf.Channels[c][:max]
			}
		}
	}
	gain := clip.Gain
	if gain == 0 {
		gain = 1
	}
	return PlacedClip{Buffer: buf, StartTime: clip.StartTime, Gain: gain}, nil
}

// encodeAndStore encodes the buffer and uploads the bytes, filling a
// descriptor with size, duration, and measured loudness stats.
func (r *StemRenderer) encodeAndStore(ctx context.Context, buf *dsp.Buffer, fileName, category string, req domain.ExportRequest) (domain.FileDescriptor, error) {
	opts := ports.EncodeOptions{Format: req.Format, SampleRate: req.SampleRate}
	if req.Format.Lossless() {
		opts.BitDepth = req.BitDepth
	} else {
		opts.BitrateKbps = req.BitrateKbps
	}

	data, err := r.codec.Encode(ctx, buf, opts)
	if err != nil {
		return domain.FileDescriptor{}, ports.EncodeError{Format: string(req.Format), Err: err}
	}

	key, err := r.storage.Upload(ctx, data, category, fileName, req.Format.ContentType())
	if err != nil {
		return domain.FileDescriptor{}, ports.StorageError{Op: "upload", Key: fileName, Err: err}
	}

	peakDB, lufs := analyzeRendered(buf)
	return domain.FileDescriptor{
		FileName:   fileName,
		StorageKey: key,
		Size:       int64(len(data)),
		Duration:   buf.Duration(),
		PeakDB:     peakDB,
		LUFS:       lufs,
	}, nil
}

// analyzeRendered runs the metering engine over the finished buffer in
// 100 ms ticks to report the stem's peak and integrated loudness.
func analyzeRendered(buf *dsp.Buffer) (peakDB, lufs float64) {
	st := buf.ToStereo()
	frames := st.Frames()
	if frames == 0 || st.Rate <= 0 {
		return dsp.DBMin, dsp.LUFSMin
	}
	meter := dsp.NewMeter(dsp.DefaultMeterConfig())
	tick := st.Rate / 10
	if tick < 1 {
		tick = frames
	}
	now := time.Unix(0, 0)
	step := 100 * time.Millisecond
	for start := 0; start < frames; start += tick {
		end := start + tick
		if end > frames {
			end = frames
		}
		meter.Process(st.Channels[0][start:end], st.Channels[1][start:end], st.Rate, now)
		now = now.Add(step)
	}
	snap := meter.Snapshot()
	peak := snap.PeakLeft
	if snap.PeakRight > peak {
		peak = snap.PeakRight
	}
	return peak, snap.LUFSIntegrated
}

// trackFileName builds a collision-safe output name from the track name.
func trackFileName(name string, format domain.Format) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = "Track"
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == ' ':
			return r
		}
		return '_'
	}, base)
	return fmt.Sprintf("%s-%s.%s", base, uuid.NewString()[:8], format.Extension())
}
