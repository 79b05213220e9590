// Package main provides the entry point for the studify-speech service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studify-ai/studify-speech/internal/config"
	"github.com/studify-ai/studify-speech/internal/server"
	"github.com/studify-ai/studify-speech/internal/store"
	"github.com/studify-ai/studify-speech/speech"
	"github.com/studify-ai/studify-speech/speech/engines/gemini"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	listenAddr string
	dataDir    string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "studify-speech",
		Short: "Content-addressed text-to-speech cache for Studify",
		Long: "\nServe the Studify speech API: synthesized audio is cached by a" +
			" digest of its input text and voice, so each distinct input hits the" +
			" speech provider at most once.",
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
)

func loadConfig() (config.Config, error) {
	cfg, err := env.ParseAs[config.Config]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}

	// Config file and CLI flags layer on top of environment values.
	if v := viper.GetString("listen_addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("base_url"); v != "" {
		cfg.BaseURL = v
	}
	if v := viper.GetString("default_voice"); v != "" {
		cfg.DefaultVoice = v
	}
	if viper.IsSet("compression") {
		cfg.Compression = viper.GetBool("compression")
	}
	if viper.IsSet("compression_level") {
		cfg.CompressionLevel = viper.GetInt("compression_level")
	}
	if viper.IsSet("synthesis_timeout") {
		cfg.SynthesisTimeout = viper.GetDuration("synthesis_timeout")
	}
	if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}
	if v := viper.GetString("gemini.api_key"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := viper.GetString("gemini.model"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := viper.GetString("gemini.endpoint"); v != "" {
		cfg.Gemini.Endpoint = v
	}
	if viper.IsSet("gemini.timeout") {
		cfg.Gemini.Timeout = viper.GetDuration("gemini.timeout")
	}
	if viper.IsSet("gemini.requests_per_minute") {
		cfg.Gemini.RequestsPerMinute = viper.GetInt("gemini.requests_per_minute")
	}
	if viper.IsSet("gemini.sample_rate") {
		cfg.Gemini.SampleRate = viper.GetInt("gemini.sample_rate")
	}
	if viper.IsSet("gemini.channels") {
		cfg.Gemini.Channels = viper.GetInt("gemini.channels")
	}
	if viper.IsSet("gemini.bit_depth") {
		cfg.Gemini.BitDepth = viper.GetInt("gemini.bit_depth")
	}

	if cfg.DataDir == "" {
		scope := gap.NewScope(gap.User, "studify-speech")
		dirs, err := scope.DataDirs()
		if err != nil || len(dirs) == 0 {
			cfg.DataDir = filepath.Join(os.TempDir(), "studify-speech")
		} else {
			cfg.DataDir = filepath.Join(dirs[0], "cache")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.Default()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	logger.SetReportTimestamp(true)

	st, err := store.Open(cfg.DataDir, store.Options{
		Compression:      cfg.Compression,
		CompressionLevel: cfg.CompressionLevel,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	synth, err := gemini.New(gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		Endpoint:          cfg.Gemini.Endpoint,
		Model:             cfg.Gemini.Model,
		Timeout:           cfg.Gemini.Timeout,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		SampleRate:        cfg.Gemini.SampleRate,
		Channels:          cfg.Gemini.Channels,
		BitDepth:          cfg.Gemini.BitDepth,
	}, logger)
	if err != nil {
		return err
	}

	svc := speech.NewService(st, synth, speech.ServiceConfig{
		BaseLocation:     cfg.BaseURL,
		DefaultVoice:     cfg.DefaultVoice,
		SynthesisTimeout: cfg.SynthesisTimeout,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(svc, st, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "data_dir", cfg.DataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "address to listen on")
	rootCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "directory for cached audio and the index")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("data_dir", rootCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "studify-speech")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "studify-speech")}, dirs...)
	}

	if c := os.Getenv("STUDIFY_SPEECH_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("studify-speech")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("studify_speech")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "studify-speech.yml")
	}
}
