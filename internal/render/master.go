package render

import (
	"context"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// MasterInput is one track's contribution to the master bus: its
// already-rendered stem buffer and the track volume to mix it at.
type MasterInput struct {
	Buffer *dsp.Buffer
	Volume float64
}

// MasterRenderer mixes rendered stems into one master file.
type MasterRenderer struct {
	stems *StemRenderer
}

// NewMasterRenderer constructs a MasterRenderer sharing the stem
// renderer's encode/upload pipeline.
func NewMasterRenderer(stems *StemRenderer) *MasterRenderer {
	return &MasterRenderer{stems: stems}
}

// RenderMaster sums the inputs at their track volumes (additive, no
// implicit normalization during the mix), then runs the same
// normalize/encode/upload steps as a stem. Returns ok=false when no
// input carries usable audio; that is not an error and does not fail
// the job.
func (r *MasterRenderer) RenderMaster(ctx context.Context, inputs []MasterInput, req domain.ExportRequest) (domain.FileDescriptor, bool, error) {
	sources := make([]*dsp.Buffer, 0, len(inputs))
	gains := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		if in.Buffer == nil || in.Buffer.Frames() == 0 {
			continue
		}
		sources = append(sources, in.Buffer)
		gains = append(gains, in.Volume)
	}
	if len(sources) == 0 {
		return domain.FileDescriptor{}, false, nil
	}

	mix := MixWeighted(sources, gains, req.SampleRate)
	if req.Normalize && req.NormalizationType != domain.NormalizeNone {
		Normalize(mix, NormalizeOptions{Type: req.NormalizationType, TargetLevel: req.TargetLevel})
	}

	desc, err := r.stems.encodeAndStore(ctx, mix, trackFileName("Master", req.Format), "masters", req)
	if err != nil {
		return domain.FileDescriptor{}, false, err
	}
	desc.TrackID = "master"
	return desc, true, nil
}
