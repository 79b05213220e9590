// Package gemini implements the speech.Synthesizer seam against the Gemini
// generative speech API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/studify-ai/studify-speech/speech"
)

// DefaultEndpoint is the Gemini REST base for model invocations.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultModel is the speech generation model used when none is configured.
const DefaultModel = "gemini-1.5-flash-speech"

// Config carries everything the adapter needs. Credentials are injected
// here, at construction, never read from the environment inside the client.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration

	// RequestsPerMinute rate-limits provider calls (defaults to 50).
	RequestsPerMinute int

	// Raw PCM parameters assumed when the provider returns unwrapped samples
	// without declaring a rate. Zero values fall back to the speech package
	// defaults (24000 Hz / 1 ch / 16 bit).
	SampleRate int
	Channels   int
	BitDepth   int
}

// Client calls the Gemini speech model over HTTPS. It performs no caching
// and never touches the store; orchestration composes the two.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New constructs a Client from cfg, applying defaults for unset fields.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: missing API key")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = speech.DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = speech.DefaultChannels
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = speech.DefaultBitDepth
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  logger,
	}, nil
}

// Request/response wire shapes for models/<model>:generateContent.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize sends text to the speech model and returns the audio payload.
// Text beyond speech.MaxProviderTextLen characters is truncated before the
// call; that cap is a transport constraint only and callers key the cache by
// the full text.
//
// Every failure mode (transport error, timeout, non-2xx status, response
// without audio) wraps speech.ErrSynthesisUnavailable.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (*speech.SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrInvalidInput
	}
	text = truncate(text, speech.MaxProviderTextLen)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", speech.ErrSynthesisUnavailable, err)
	}

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if voiceID != "" && voiceID != speech.DefaultVoice {
		payload.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voiceID},
			},
		}
	}

	body, err := json.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrSynthesisUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("gemini request completed",
		"status", resp.StatusCode, "took", time.Since(started).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: status %d: %s", speech.ErrSynthesisUnavailable, resp.StatusCode, msg)
	}

	var gr generateResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, 32<<20))
	if err := dec.Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", speech.ErrSynthesisUnavailable, err)
	}

	inline := firstInlineData(&gr)
	if inline == nil || inline.Data == "" {
		return nil, fmt.Errorf("%w: no audio in response", speech.ErrSynthesisUnavailable)
	}

	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode audio payload: %v", speech.ErrSynthesisUnavailable, err)
	}

	return c.classify(data, inline.MimeType), nil
}

// firstInlineData walks the strict response shape
// candidates[0].content.parts[0].inlineData; anything else is absent.
func firstInlineData(gr *generateResponse) *struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
} {
	if len(gr.Candidates) == 0 {
		return nil
	}
	parts := gr.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return nil
	}
	return parts[0].InlineData
}

// classify decides between the two result variants at the integration
// boundary. Linear-PCM mime types (audio/L16, audio/pcm) become raw results
// with the declared or configured rate; everything else is an encoded
// container stored as-is.
func (c *Client) classify(data []byte, mimeType string) *speech.SynthesisResult {
	base, params := splitMIME(mimeType)
	switch base {
	case "audio/l16", "audio/pcm":
		rateHz := c.cfg.SampleRate
		if r, ok := params["rate"]; ok {
			if n, err := strconv.Atoi(r); err == nil && n > 0 {
				rateHz = n
			}
		}
		return &speech.SynthesisResult{
			Kind:       speech.KindRawPCM,
			Bytes:      data,
			SampleRate: rateHz,
			Channels:   c.cfg.Channels,
			BitDepth:   c.cfg.BitDepth,
		}
	case "audio/mp3":
		// Normalize the provider's nonstandard mp3 label.
		base = "audio/mpeg"
	case "":
		base = "audio/mpeg"
	}
	return &speech.SynthesisResult{
		Kind:     speech.KindEncoded,
		Bytes:    data,
		MimeType: base,
	}
}

// splitMIME lowercases a mime type and separates its parameters, e.g.
// "audio/L16;codec=pcm;rate=24000".
func splitMIME(mimeType string) (string, map[string]string) {
	fields := strings.Split(mimeType, ";")
	base := strings.ToLower(strings.TrimSpace(fields[0]))
	params := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, "="); ok {
			params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return base, params
}

// truncate limits text to n runes without splitting a rune.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

var _ speech.Synthesizer = (*Client)(nil)
