// Package codec provides the audio decode/encode backends: a native Go
// path for WAV and MP3-decode, an FFmpeg CLI path for everything else,
// and a dispatcher that picks between them.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/calliope-audio/stemforge/internal/dsp"
)

const (
	waveFormatPCM   = 1
	waveFormatFloat = 3
)

var errNotWAV = errors.New("codec: not a RIFF/WAVE stream")

// decodeWAV parses a RIFF/WAVE byte stream into per-channel floats.
// Supports PCM 8/16/24/32-bit and IEEE float 32/64-bit sample formats.
func decodeWAV(data []byte) (*dsp.Buffer, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errNotWAV
	}

	var format, channels, bits int
	var rate int
	var pcm []byte

	// Walk the chunk list: fmt describes the layout, data carries samples.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("codec: wav fmt chunk too short (%d bytes)", size)
			}
			format = int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if channels < 1 || rate <= 0 || pcm == nil {
		return nil, fmt.Errorf("codec: wav missing fmt or data chunk")
	}

	bytesPer := bits / 8
	if bytesPer == 0 {
		return nil, fmt.Errorf("codec: wav invalid bit depth %d", bits)
	}
	frames := len(pcm) / (bytesPer * channels)
	buf := dsp.NewBuffer(channels, frames, rate)

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPer
			s, err := sampleToFloat(pcm[off:off+bytesPer], format, bits)
			if err != nil {
				return nil, err
			}
			buf.Channels[c][i] = s
		}
	}
	return buf, nil
}

func sampleToFloat(b []byte, format, bits int) (float64, error) {
	switch {
	case format == waveFormatPCM && bits == 8:
		return (float64(b[0]) - 128) / 128, nil
	case format == waveFormatPCM && bits == 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768, nil
	case format == waveFormatPCM && bits == 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF) // sign-extend
		}
		return float64(v) / 8388608, nil
	case format == waveFormatPCM && bits == 32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648, nil
	case format == waveFormatFloat && bits == 32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case format == waveFormatFloat && bits == 64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("codec: unsupported wav sample format %d/%d-bit", format, bits)
}

// encodeWAV writes a RIFF/WAVE stream. Depth 16 and 24 produce integer
// PCM; depth 32 produces IEEE float samples. Values are clamped to full
// scale before quantization.
func encodeWAV(buf *dsp.Buffer, bitDepth int) ([]byte, error) {
	if bitDepth == 0 {
		bitDepth = 16
	}
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("codec: unsupported wav bit depth %d", bitDepth)
	}

	channels := len(buf.Channels)
	frames := buf.Frames()
	bytesPer := bitDepth / 8
	dataSize := frames * channels * bytesPer

	format := waveFormatPCM
	if bitDepth == 32 {
		format = waveFormatFloat
	}

	out := make([]byte, 0, 44+dataSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataSize))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, uint16(format))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(buf.Rate))
	out = binary.LittleEndian.AppendUint32(out, uint32(buf.Rate*channels*bytesPer))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*bytesPer))
	out = binary.LittleEndian.AppendUint16(out, uint16(bitDepth))
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			s := clampSample(buf.Channels[c][i])
			switch bitDepth {
			case 16:
				out = binary.LittleEndian.AppendUint16(out, uint16(int16(s*32767)))
			case 24:
				v := int32(s * 8388607)
				out = append(out, byte(v), byte(v>>8), byte(v>>16))
			case 32:
				out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(s)))
			}
		}
	}
	return out, nil
}

func clampSample(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
