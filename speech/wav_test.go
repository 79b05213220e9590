package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeWAV_HeaderFields(t *testing.T) {
	pcm := make([]byte, 440)
	out, err := EncodeWAV(pcm, 24000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(out) != 44+len(pcm) {
		t.Fatalf("container length = %d, want %d", len(out), 44+len(pcm))
	}

	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF chunk size = %d, want %d", got, 36+len(pcm))
	}
	if string(out[12:16]) != "fmt " {
		t.Error("missing fmt subchunk marker")
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	// byte rate = sampleRate * channels * bitDepth/8
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint16(out[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}
	if string(out[36:40]) != "data" {
		t.Error("missing data subchunk marker")
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data chunk size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Error("payload bytes differ from input PCM")
	}
}

func TestEncodeWAV_Idempotent(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	a, err := EncodeWAV(pcm, 24000, 1, 16)
	if err != nil {
		t.Fatalf("first encode failed: %v", err)
	}
	b, err := EncodeWAV(pcm, 24000, 1, 16)
	if err != nil {
		t.Fatalf("second encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical inputs produced different containers")
	}
}

func TestEncodeWAV_MultiChannelParameters(t *testing.T) {
	// Stereo 8-bit at 44100: block align 2, byte rate 88200.
	pcm := make([]byte, 100)
	out, err := EncodeWAV(pcm, 44100, 2, 8)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if got := binary.LittleEndian.Uint16(out[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 88200 {
		t.Errorf("byte rate = %d, want 88200", got)
	}
}

func TestEncodeWAV_EmptyPayload(t *testing.T) {
	out, err := EncodeWAV(nil, 24000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(out) != 44 {
		t.Errorf("container length = %d, want 44", len(out))
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 0 {
		t.Errorf("data chunk size = %d, want 0", got)
	}
}

func TestEncodeWAV_InvalidParameters(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		bitDepth   int
	}{
		{"zero sample rate", 0, 1, 16},
		{"negative sample rate", -24000, 1, 16},
		{"zero channels", 24000, 0, 16},
		{"zero bit depth", 24000, 1, 0},
		{"unaligned bit depth", 24000, 1, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeWAV([]byte{0x00}, tt.sampleRate, tt.channels, tt.bitDepth)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrEncodingFailure) {
				t.Errorf("error = %v, want ErrEncodingFailure", err)
			}
		})
	}
}
