package domain

import "fmt"

// Format is the target container/codec for a rendered file.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatMP3  Format = "mp3"
	FormatAAC  Format = "aac"
)

// ParseFormat validates a format string against the closed set of
// supported containers. Unknown values are rejected here, at construction
// time, rather than at the point of use.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWAV, FormatFLAC, FormatMP3, FormatAAC:
		return Format(s), nil
	}
	return "", fmt.Errorf("domain: unsupported format %q", s)
}

// Lossless reports whether the format carries PCM at a configurable bit depth.
func (f Format) Lossless() bool {
	return f == FormatWAV || f == FormatFLAC
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type used when persisting rendered files.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatFLAC:
		return "audio/flac"
	case FormatMP3:
		return "audio/mpeg"
	case FormatAAC:
		return "audio/aac"
	}
	return "application/octet-stream"
}

// NormalizationType selects the post-mix loudness strategy.
type NormalizationType string

const (
	NormalizePeak NormalizationType = "peak"
	NormalizeRMS  NormalizationType = "rms"
	NormalizeLUFS NormalizationType = "lufs"
	NormalizeNone NormalizationType = "none"
)

// ParseNormalizationType validates a normalization strategy name.
func ParseNormalizationType(s string) (NormalizationType, error) {
	if s == "" {
		return NormalizeNone, nil
	}
	switch NormalizationType(s) {
	case NormalizePeak, NormalizeRMS, NormalizeLUFS, NormalizeNone:
		return NormalizationType(s), nil
	}
	return "", fmt.Errorf("domain: unsupported normalization type %q", s)
}

// SupportedSampleRates is the closed set of output sample rates.
var SupportedSampleRates = []int{44100, 48000, 88200, 96000, 176400, 192000}

// ValidSampleRate reports whether rate is one of the supported output rates.
func ValidSampleRate(rate int) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// ValidBitDepth reports whether depth is a supported PCM word size.
func ValidBitDepth(depth int) bool {
	return depth == 16 || depth == 24 || depth == 32
}

// ExportRequest is the immutable configuration for one export job.
// BitDepth applies to lossless formats only; BitrateKbps to lossy only.
type ExportRequest struct {
	ProjectID         string            `json:"projectId"`
	UserID            string            `json:"userId"`
	Format            Format            `json:"format"`
	SampleRate        int               `json:"sampleRate"`
	BitDepth          int               `json:"bitDepth,omitempty"`
	BitrateKbps       int               `json:"bitrate,omitempty"`
	Normalize         bool              `json:"normalize"`
	NormalizationType NormalizationType `json:"normalizationType,omitempty"`
	TargetLevel       float64           `json:"targetLevel,omitempty"`
	IncludeEffects    bool              `json:"includeEffects"`
	IncludeMasterBus  bool              `json:"includeMasterBus"`
	TrackIDs          []string          `json:"trackIds,omitempty"`
}

// FileDescriptor records one rendered output file.
type FileDescriptor struct {
	TrackID    string  `json:"trackId"`
	FileName   string  `json:"fileName"`
	StorageKey string  `json:"storageKey"`
	Size       int64   `json:"size"`
	Duration   float64 `json:"duration"`
	PeakDB     float64 `json:"peakDb"`
	LUFS       float64 `json:"lufs"`
}
