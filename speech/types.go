package speech

import (
	"context"
	"time"
)

// DefaultVoice is the voice id used when a caller does not specify one.
const DefaultVoice = "default"

// Default raw PCM parameters for providers that return unwrapped samples.
// These are the observed output format of the Gemini speech models, but the
// encoder takes them as parameters rather than constants since the upstream
// format can change.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// MaxProviderTextLen is the maximum number of characters sent to the
// synthesis provider in a single request. Truncation to this cap is a
// transport constraint applied inside the adapter; cache keys are always
// derived from the full trimmed text.
const MaxProviderTextLen = 4000

// ResultKind distinguishes the two shapes a provider response can take.
type ResultKind int

const (
	// KindEncoded means the provider returned a playable container
	// (MP3, OGG, WAV) that can be stored as-is.
	KindEncoded ResultKind = iota
	// KindRawPCM means the provider returned unwrapped linear PCM samples
	// that must be encoded into a container before storage.
	KindRawPCM
)

// String returns the string representation of the result kind.
func (k ResultKind) String() string {
	switch k {
	case KindEncoded:
		return "encoded"
	case KindRawPCM:
		return "raw_pcm"
	default:
		return "unknown"
	}
}

// SynthesisResult is the tagged union returned by a Synthesizer. Which
// fields are meaningful depends on Kind: encoded results carry MimeType,
// raw PCM results carry the format parameters.
type SynthesisResult struct {
	Kind  ResultKind
	Bytes []byte

	// Encoded results only.
	MimeType string

	// Raw PCM results only.
	SampleRate int
	Channels   int
	BitDepth   int
}

// Entry is a persisted cache record mapping a content key to a stored audio
// artifact. Entries are created once, on a cache miss, and never mutated.
type Entry struct {
	ContentKey  string    `json:"content_key"`
	VoiceID     string    `json:"voice_id"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Result is the outcome of a GetOrSynthesize call. A zero Result (empty
// Location) is the no-op response for blank input text.
type Result struct {
	Location string
	MimeType string
	Cached   bool
}

// Synthesizer is the single seam to the external speech provider. It is the
// only component permitted to perform network I/O and must not touch the
// cache store.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*SynthesisResult, error)
}

// Store is the durable key→artifact mapping backing the cache.
type Store interface {
	// Lookup returns the entry for key, or nil if absent. A non-nil error
	// means the store itself failed and must not be treated as a miss.
	Lookup(key string) (*Entry, error)

	// Put writes data to durable storage at a location derived from key and
	// records the entry. Concurrent puts for the same key are tolerated as
	// idempotent overwrites: content for a given key is identical by
	// construction.
	Put(key, voiceID string, data []byte, mimeType string) (*Entry, error)
}
