package speech

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// BaseLocation is prepended to an entry's storage path to build the
	// location returned to callers (e.g. "/v1/audio").
	BaseLocation string

	// DefaultVoice overrides the package-level default voice id.
	DefaultVoice string

	// SynthesisTimeout bounds each provider call. The provider can hang;
	// a timed-out synthesis is reported as unavailable, never cached.
	SynthesisTimeout time.Duration

	// Logger for cache activity. Defaults to log.Default().
	Logger *log.Logger
}

// Service orchestrates the cache: derive key, look up, synthesize on miss,
// normalize to a playable container, store, return the location.
//
// Each call runs to completion independently; the only shared mutable
// resource is the Store, whose writes are idempotent per key. Concurrent
// misses for the same key are collapsed with singleflight so a given input
// is synthesized once even under racing callers, though correctness does not
// depend on it.
type Service struct {
	store        Store
	synth        Synthesizer
	baseLocation string
	defaultVoice string
	timeout      time.Duration
	logger       *log.Logger

	flight singleflight.Group
}

// NewService creates a Service over the given store and synthesizer.
func NewService(store Store, synth Synthesizer, cfg ServiceConfig) *Service {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultVoice
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Service{
		store:        store,
		synth:        synth,
		baseLocation: strings.TrimRight(cfg.BaseLocation, "/"),
		defaultVoice: cfg.DefaultVoice,
		timeout:      cfg.SynthesisTimeout,
		logger:       cfg.Logger,
	}
}

// GetOrSynthesize returns the location of the audio artifact for (text,
// voiceID), synthesizing and storing it if no entry exists yet.
//
// Text that trims to empty is a no-op: the zero Result is returned with a
// nil error. Failures in synthesis, encoding, or storage surface as errors
// wrapping ErrSynthesisUnavailable, ErrEncodingFailure, or ErrStorageFailure
// respectively; no partial entry is ever written.
func (s *Service) GetOrSynthesize(ctx context.Context, text, voiceID string) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Result{}, nil
	}
	if voiceID == "" {
		voiceID = s.defaultVoice
	}

	key := DeriveKey(trimmed, voiceID)

	entry, err := s.store.Lookup(key)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		s.logger.Debug("cache hit", "key", key, "voice", voiceID)
		return &Result{
			Location: s.locationFor(entry),
			MimeType: entry.MimeType,
			Cached:   true,
		}, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.synthesizeAndStore(ctx, trimmed, voiceID, key)
	})
	if err != nil {
		return nil, err
	}

	entry = v.(*Entry)
	return &Result{
		Location: s.locationFor(entry),
		MimeType: entry.MimeType,
		Cached:   false,
	}, nil
}

// synthesizeAndStore performs the miss path: provider call, normalization,
// durable write. The provider is never retried here; the caller owns retry
// policy.
func (s *Service) synthesizeAndStore(ctx context.Context, text, voiceID, key string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.synth.Synthesize(ctx, text, voiceID)
	if err != nil {
		s.logger.Warn("synthesis failed", "key", key, "voice", voiceID, "err", err)
		// Timeouts, cancellations, and any error the synthesizer did not
		// already classify all count as the provider being unavailable.
		if !errors.Is(err, ErrSynthesisUnavailable) && !errors.Is(err, ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", ErrSynthesisUnavailable, err)
		}
		return nil, err
	}

	data := result.Bytes
	mimeType := result.MimeType
	if result.Kind == KindRawPCM {
		data, err = EncodeWAV(result.Bytes, result.SampleRate, result.Channels, result.BitDepth)
		if err != nil {
			return nil, err
		}
		mimeType = "audio/wav"
	}

	entry, err := s.store.Put(key, voiceID, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}

	s.logger.Info("synthesized and cached",
		"key", key,
		"voice", voiceID,
		"mime", mimeType,
		"size", humanize.Bytes(uint64(len(data))),
		"took", time.Since(started).String(),
	)
	return entry, nil
}

// locationFor builds the resolvable location for a stored entry.
func (s *Service) locationFor(e *Entry) string {
	if s.baseLocation == "" {
		return e.StoragePath
	}
	return s.baseLocation + "/" + path.Base(e.StoragePath)
}
