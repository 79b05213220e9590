package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# address to listen on
listen_addr: ":8787"
# public path prefix for stored audio artifacts
base_url: "/v1/audio"
# directory for cached audio and the index (default: platform data dir)
# data_dir: "/var/lib/studify-speech"
# voice id used when requests omit one
default_voice: "default"
# zstd-compress stored artifacts (transparent on read)
compression: true
compression_level: 3
# upper bound on a single synthesis call
synthesis_timeout: "30s"
# verbose logging
debug: false

# Gemini speech provider
gemini:
  # api_key: "your-api-key-here"   # or set GEMINI_API_KEY
  model: "gemini-1.5-flash-speech"
  endpoint: "https://generativelanguage.googleapis.com/v1beta/models"
  timeout: "30s"
  requests_per_minute: 50
  # raw PCM parameters assumed for unwrapped provider output
  sample_rate: 24000
  channels: 1
  bit_depth: 16
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the studify-speech config file",
	Long:    "\nEdit the studify-speech config file. We'll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.",
	Example: "studify-speech config\nstudify-speech config --config path/to/config.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("studify-speech", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	return nil
}
