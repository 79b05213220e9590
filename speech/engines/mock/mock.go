// Package mock provides a synthesizer test double with call counting and
// failure injection.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/studify-ai/studify-speech/speech"
)

// Synthesizer implements speech.Synthesizer for tests. By default it returns
// silent raw PCM sized proportionally to the input text; tests can pin an
// exact result or force a failure.
type Synthesizer struct {
	mu sync.Mutex

	result *speech.SynthesisResult
	err    error
	delay  time.Duration

	calls int
}

// New creates a mock synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// SetResult pins the result returned by every subsequent Synthesize call.
func (m *Synthesizer) SetResult(r *speech.SynthesisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
	m.err = nil
}

// SetError makes every subsequent Synthesize call fail with err.
func (m *Synthesizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay simulates provider latency. Synthesize honors context
// cancellation while waiting.
func (m *Synthesizer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times Synthesize has been invoked.
func (m *Synthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Synthesize returns the configured result or failure.
func (m *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) (*speech.SynthesisResult, error) {
	m.mu.Lock()
	m.calls++
	result := m.result
	err := m.err
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	// Silence: roughly 50ms of audio per input character.
	samples := len(text) * speech.DefaultSampleRate / 20
	return &speech.SynthesisResult{
		Kind:       speech.KindRawPCM,
		Bytes:      make([]byte, samples*speech.DefaultBitDepth/8),
		SampleRate: speech.DefaultSampleRate,
		Channels:   speech.DefaultChannels,
		BitDepth:   speech.DefaultBitDepth,
	}, nil
}

var _ speech.Synthesizer = (*Synthesizer)(nil)
