package codec

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/calliope-audio/stemforge/internal/dsp"
)

// decodeMP3 decodes an MP3 stream with go-mp3, which always yields
// 16-bit little-endian stereo at the source sample rate.
func decodeMP3(data []byte) (*dsp.Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec: mp3 decode: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("codec: mp3 read: %w", err)
	}

	frames := len(raw) / 4 // 2 channels x int16
	buf := dsp.NewBuffer(2, frames, dec.SampleRate())
	for i := 0; i < frames; i++ {
		l := int16(raw[i*4]) | int16(raw[i*4+1])<<8
		r := int16(raw[i*4+2]) | int16(raw[i*4+3])<<8
		buf.Channels[0][i] = float64(l) / 32768
		buf.Channels[1][i] = float64(r) / 32768
	}
	return buf, nil
}

// looksLikeMP3 sniffs for an ID3 tag or an MPEG frame sync word.
func looksLikeMP3(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
