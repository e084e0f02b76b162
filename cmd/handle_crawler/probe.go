package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/handle-crawler/internal/config"
	"github.com/jonathan/handle-crawler/internal/observability"
	"github.com/jonathan/handle-crawler/internal/types"
)

var probeCmd = &cobra.Command{
	Use:   "probe [handle...]",
	Short: "Classify handles against the preview host",
	Long: "Probes each handle's public preview page and reports whether it is a channel, chat or personal " +
		"account. Handles are read from the arguments, or one per line from stdin when none are given.",
	RunE: runProbe,
}

var (
	probeURL  string
	probeJSON bool
)

func init() {
	probeCmd.Flags().StringVar(&probeURL, "probe-url", "", "Preview host base URL (default: https://t.me)")
	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(f flagSet, cfg *config.Config) {
		if f.changed("probe-url") {
			cfg.ProbeURL = probeURL
		}
	})
	if err != nil {
		return err
	}

	handles := args
	if len(handles) == 0 {
		if handles, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	for i, h := range handles {
		handles[i] = strings.TrimPrefix(strings.TrimSpace(h), "@")
	}
	if len(handles) == 0 {
		return fmt.Errorf("no handles given")
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	classifier := newClassifier(cfg, logger)

	results := make([]types.ClassifiedHandle, len(handles))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.ProbeConcurrency)
	for i, handle := range handles {
		g.Go(func() error {
			h, err := classifier.Classify(ctx, handle)
			if err != nil {
				logger.Warn().Err(err).Str("handle", handle).Msg("probe failed")
			}
			results[i] = h
			return nil
		})
	}
	_ = g.Wait()

	if probeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintClassifiedHandles(results)
	return nil
}
