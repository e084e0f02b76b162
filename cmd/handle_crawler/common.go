package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/handle-crawler/internal/config"
	"github.com/jonathan/handle-crawler/internal/crawling"
	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/handles"
	"github.com/jonathan/handle-crawler/internal/logging"
	"github.com/jonathan/handle-crawler/internal/preview"
	"github.com/jonathan/handle-crawler/internal/session"
)

var (
	configPath string
	logLevel   string
	logFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Rotating log file (overrides config)")
}

// loadConfig builds the effective configuration: defaults, config file,
// environment, then the flags that were set on cmd. apply copies a command's
// own flags onto the config.
func loadConfig(cmd *cobra.Command, apply func(flags flagSet, cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := flagSet{cmd}
	if flags.changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.changed("log-file") {
		cfg.LogFile = logFile
	}
	if apply != nil {
		apply(flags, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagSet reports which flags the user set explicitly, so unset flags never
// shadow file or environment values.
type flagSet struct {
	cmd *cobra.Command
}

func (f flagSet) changed(name string) bool {
	return f.cmd.Flags().Changed(name)
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (zerolog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, nil
}

func fetchOptions(cfg *config.Config) fetch.Options {
	return fetch.Options{
		Timeout:   cfg.Timeout(),
		UserAgent: cfg.UserAgent,
		Retries:   cfg.RetryCount,
		RetryBase: cfg.RetryBase(),
		RetryMax:  cfg.RetryMax(),
	}
}

func newAuthenticator(cfg *config.Config, logger zerolog.Logger) *session.Authenticator {
	return session.NewAuthenticator(session.Options{
		Fetch:           fetchOptions(cfg),
		AuthPath:        cfg.Markup.AuthPath,
		AuthField:       cfg.Markup.AuthField,
		LoginMarker:     cfg.Markup.LoginMarker,
		LoginMarkerText: cfg.Markup.LoginMarkerText,
	}, logger)
}

func newPaginator(cfg *config.Config, logger zerolog.Logger) *crawling.Paginator {
	return crawling.NewPaginator(cfg.Markup.ListingPath, cfg.Markup.Paginator, logger)
}

func cardSelectors(cfg *config.Config) crawling.CardSelectors {
	return crawling.CardSelectors{
		Card:     cfg.Markup.Card,
		FullName: cfg.Markup.FullName,
		Nickname: cfg.Markup.Nickname,
		Bio:      cfg.Markup.Bio,
	}
}

func newFinder(cfg *config.Config, logger zerolog.Logger) *handles.Finder {
	return handles.NewFinder(cfg.Markup.DetailPath, cfg.Markup.Intro, logger)
}

func newClassifier(cfg *config.Config, logger zerolog.Logger) *preview.Classifier {
	return preview.NewClassifier(preview.Options{
		Fetch:     fetchOptions(cfg),
		ProbeURL:  cfg.ProbeURL,
		PublicURL: cfg.PublicURL,
		Rate:      cfg.ProbeRate,
		Selectors: preview.Selectors{
			ChannelCounter:     cfg.Markup.ChannelCounter,
			CounterValue:       cfg.Markup.CounterValue,
			ChannelTitle:       cfg.Markup.ChannelTitle,
			ChannelDescription: cfg.Markup.ChannelDescription,
			PageExtra:          cfg.Markup.PageExtra,
		},
	}, logger)
}
