// Package speech implements a content-addressed text-to-speech cache.
//
// Synthesized audio is keyed by a deterministic digest of the input text and
// voice, so synthesis for a given input runs at most once for the lifetime of
// the backing store. The package holds the pure pieces (key derivation, WAV
// encoding) and the orchestration that ties a Store and a Synthesizer
// together; durable storage and the provider integration live behind
// interfaces.
package speech
