package speech

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the size of a canonical RIFF/WAVE header with a single
// fmt and data chunk.
const wavHeaderSize = 44

// EncodeWAV wraps raw little-endian linear PCM samples in a RIFF/WAVE
// container. Byte rate, block alignment, and chunk sizes are computed from
// the parameters, so the output parses in any standard decoder as
// channels-channel, bitDepth-bit, sampleRate-Hz uncompressed audio.
//
// The function is pure: identical inputs produce byte-identical output of
// exactly 44+len(pcm) bytes.
func EncodeWAV(pcm []byte, sampleRate, channels, bitDepth int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEncodingFailure, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrEncodingFailure, channels)
	}
	if bitDepth <= 0 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("%w: invalid bit depth %d", ErrEncodingFailure, bitDepth)
	}

	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign
	dataLen := len(pcm)

	out := make([]byte, wavHeaderSize+dataLen)

	// RIFF chunk descriptor
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	// fmt subchunk: PCM format (1), 16 bytes
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitDepth))

	// data subchunk
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	copy(out[wavHeaderSize:], pcm)

	return out, nil
}
