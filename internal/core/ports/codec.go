package ports

import (
	"context"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// EncodeOptions selects the target container and conversion parameters.
// BitDepth is honoured for lossless formats, BitrateKbps for lossy ones;
// the inapplicable field is ignored by implementations.
type EncodeOptions struct {
	Format      domain.Format
	SampleRate  int
	BitDepth    int
	BitrateKbps int
}

// Codec is the audio decode/encode backend. Decode produces PCM floats
// at the source's native rate; Encode converts and writes the requested
// container. Available is the capability check the orchestrator runs at
// validation time so an absent backend fails fast instead of mid-pipeline.
type Codec interface {
	Decode(ctx context.Context, src []byte, nameHint string) (*dsp.Buffer, error)
	Encode(ctx context.Context, buf *dsp.Buffer, opts EncodeOptions) ([]byte, error)
	Available(f domain.Format) bool
}
