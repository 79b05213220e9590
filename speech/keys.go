package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"strings"
)

// DeriveKey returns the content key for a (text, voice) pair: the SHA-256
// digest of the trimmed text and the voice id joined with "|", rendered as
// lowercase hex. The result is deterministic across processes and platforms;
// an empty voice id selects DefaultVoice.
//
// Callers are expected to reject text that trims to empty before calling.
func DeriveKey(text, voiceID string) string {
	if voiceID == "" {
		voiceID = DefaultVoice
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(text) + "|" + voiceID))
	return hex.EncodeToString(sum[:])
}

// ExtensionForMIME maps an audio mime type to the file extension used for
// stored artifacts. Unknown types fall back to "bin".
func ExtensionForMIME(mimeType string) string {
	base := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		base = parsed
	}
	switch strings.ToLower(base) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/aac":
		return "aac"
	case "audio/flac":
		return "flac"
	default:
		return "bin"
	}
}
