// Package config holds the service configuration, parsed from the
// environment and optionally overlaid from a YAML config file.
package config

import (
	"fmt"
	"time"
)

// Config contains all service configuration options.
type Config struct {
	// Server settings
	ListenAddr string `yaml:"listen_addr" env:"STUDIFY_SPEECH_LISTEN_ADDR" envDefault:":8787"`
	BaseURL    string `yaml:"base_url" env:"STUDIFY_SPEECH_BASE_URL" envDefault:"/v1/audio"`
	Debug      bool   `yaml:"debug" env:"STUDIFY_SPEECH_DEBUG" envDefault:"false"`

	// Cache settings
	DataDir          string `yaml:"data_dir" env:"STUDIFY_SPEECH_DATA_DIR"`
	Compression      bool   `yaml:"compression" env:"STUDIFY_SPEECH_COMPRESSION" envDefault:"true"`
	CompressionLevel int    `yaml:"compression_level" env:"STUDIFY_SPEECH_COMPRESSION_LEVEL" envDefault:"3"`

	// Synthesis settings
	DefaultVoice     string        `yaml:"default_voice" env:"STUDIFY_SPEECH_DEFAULT_VOICE" envDefault:"default"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" env:"STUDIFY_SPEECH_SYNTHESIS_TIMEOUT" envDefault:"30s"`

	Gemini GeminiConfig `yaml:"gemini"`
}

// GeminiConfig contains Gemini speech provider settings.
type GeminiConfig struct {
	APIKey            string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	Endpoint          string        `yaml:"endpoint" env:"STUDIFY_SPEECH_GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta/models"`
	Model             string        `yaml:"model" env:"STUDIFY_SPEECH_GEMINI_MODEL" envDefault:"gemini-1.5-flash-speech"`
	Timeout           time.Duration `yaml:"timeout" env:"STUDIFY_SPEECH_GEMINI_TIMEOUT" envDefault:"30s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"STUDIFY_SPEECH_GEMINI_RPM" envDefault:"50"`

	// Raw PCM parameters assumed for unwrapped provider output.
	SampleRate int `yaml:"sample_rate" env:"STUDIFY_SPEECH_GEMINI_SAMPLE_RATE" envDefault:"24000"`
	Channels   int `yaml:"channels" env:"STUDIFY_SPEECH_GEMINI_CHANNELS" envDefault:"1"`
	BitDepth   int `yaml:"bit_depth" env:"STUDIFY_SPEECH_GEMINI_BIT_DEPTH" envDefault:"16"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if c.SynthesisTimeout < time.Second {
		return fmt.Errorf("synthesis_timeout must be at least 1 second, got %v", c.SynthesisTimeout)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression_level must be between 1 and 22, got %d", c.CompressionLevel)
	}
	if err := c.Gemini.Validate(); err != nil {
		return fmt.Errorf("gemini config: %w", err)
	}
	return nil
}

// Validate checks if the Gemini configuration is valid. The API key is
// intentionally not required here: a missing key is only an error when the
// gemini synthesizer is actually constructed.
func (c *GeminiConfig) Validate() error {
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BitDepth <= 0 || c.BitDepth%8 != 0 {
		return fmt.Errorf("bit_depth must be a positive multiple of 8, got %d", c.BitDepth)
	}
	return nil
}
