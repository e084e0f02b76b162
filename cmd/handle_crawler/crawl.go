package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/handle-crawler/internal/config"
	"github.com/jonathan/handle-crawler/internal/db"
	"github.com/jonathan/handle-crawler/internal/observability"
	"github.com/jonathan/handle-crawler/internal/pipeline"
	"github.com/jonathan/handle-crawler/internal/preview"
	"github.com/jonathan/handle-crawler/internal/sink"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the member directory and classify every mentioned handle",
	Long: "Signs in to the directory, walks every listing page in order, collects handles from each member's " +
		"bio and detail page, classifies them against the preview host and writes one record per member " +
		"with at least one classified handle.",
	RunE: runCrawl,
}

var (
	crawlURL               string
	crawlToken             string
	crawlOutput            string
	crawlDatabaseURL       string
	crawlMetricsAddr       string
	crawlProbeURL          string
	crawlProbeConcurrency  int
	crawlMemberConcurrency int
	crawlProbeRate         float64
	crawlTimeout           int
	crawlRetries           int
	crawlProbeCache        bool
)

func init() {
	crawlCmd.Flags().StringVarP(&crawlURL, "url", "u", "", "Directory base URL (overrides config)")
	crawlCmd.Flags().StringVarP(&crawlToken, "token", "t", "", "Directory login token (overrides HANDLE_CRAWLER_TOKEN)")
	crawlCmd.Flags().StringVarP(&crawlOutput, "out", "o", "", "Output JSON file (default: members.json)")
	crawlCmd.Flags().StringVar(&crawlDatabaseURL, "database-url", "", "Also store records in PostgreSQL")
	crawlCmd.Flags().StringVar(&crawlMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port")
	crawlCmd.Flags().StringVar(&crawlProbeURL, "probe-url", "", "Preview host base URL (default: https://t.me)")
	crawlCmd.Flags().IntVar(&crawlProbeConcurrency, "probe-concurrency", 0, "Maximum handle probes in flight")
	crawlCmd.Flags().IntVar(&crawlMemberConcurrency, "member-concurrency", 0, "Maximum members processed at once")
	crawlCmd.Flags().Float64Var(&crawlProbeRate, "probe-rate", 0, "Probe requests per second, 0 = unlimited")
	crawlCmd.Flags().IntVar(&crawlTimeout, "timeout", 0, "Per-request timeout in seconds")
	crawlCmd.Flags().IntVar(&crawlRetries, "retries", 0, "Retries for transient request failures")
	crawlCmd.Flags().BoolVar(&crawlProbeCache, "probe-cache", false, "Probe each distinct handle once per run")

	rootCmd.AddCommand(crawlCmd)
}

func applyCrawlFlags(f flagSet, cfg *config.Config) {
	if f.changed("url") {
		cfg.DirectoryURL = crawlURL
	}
	if f.changed("token") {
		cfg.Token = crawlToken
	}
	if f.changed("out") {
		cfg.Output = crawlOutput
	}
	if f.changed("database-url") {
		cfg.DatabaseURL = crawlDatabaseURL
	}
	if f.changed("metrics-addr") {
		cfg.MetricsAddr = crawlMetricsAddr
	}
	if f.changed("probe-url") {
		cfg.ProbeURL = crawlProbeURL
	}
	if f.changed("probe-concurrency") {
		cfg.ProbeConcurrency = crawlProbeConcurrency
	}
	if f.changed("member-concurrency") {
		cfg.MemberConcurrency = crawlMemberConcurrency
	}
	if f.changed("probe-rate") {
		cfg.ProbeRate = crawlProbeRate
	}
	if f.changed("timeout") {
		cfg.TimeoutSeconds = crawlTimeout
	}
	if f.changed("retries") {
		cfg.RetryCount = crawlRetries
	}
	if f.changed("probe-cache") {
		cfg.ProbeCache = crawlProbeCache
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, applyCrawlFlags)
	if err != nil {
		return err
	}

	if cfg.DirectoryURL != "" {
		token, err := resolveToken(cfg.Token, os.Stdin, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg.Token = token
	}
	if err := cfg.RequireDirectory(); err != nil {
		return err
	}
	if cfg.Output == "" && cfg.DatabaseURL == "" {
		return fmt.Errorf("no output configured: set --out or --database-url")
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		observability.ServeMetrics(ctx, cfg.MetricsAddr, logger)
	}

	runID := uuid.New()
	logger = logger.With().Str("run_id", runID.String()).Logger()

	var sinks []sink.Sink
	var jsonSink *sink.JSONFile
	if cfg.Output != "" {
		jsonSink, err = sink.NewJSONFile(cfg.Output, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, jsonSink)
	}

	var store *db.DB
	if cfg.DatabaseURL != "" {
		store, err = openStore(ctx, cfg, runID)
		if err != nil {
			if jsonSink != nil {
				_ = jsonSink.Abort()
			}
			return err
		}
		defer store.Close()
		sinks = append(sinks, sink.NewPostgres(store, runID))
	}
	out := sink.Multi(sinks...)
	var classifier pipeline.HandleClassifier = newClassifier(cfg, logger)
	var cache *preview.Cache
	if cfg.ProbeCache {
		cache = preview.NewCache(classifier)
		classifier = cache
	}

	runner := pipeline.New(pipeline.Deps{
		Auth:       newAuthenticator(cfg, logger),
		Directory:  newPaginator(cfg, logger),
		Cards:      cardSelectors(cfg),
		Finder:     newFinder(cfg, logger),
		Classifier: classifier,
		Sink:       out,
		Logger:     logger,
	}, pipeline.Options{
		BaseURL:           cfg.DirectoryURL,
		Token:             cfg.Token,
		MemberConcurrency: cfg.MemberConcurrency,
		ProbeConcurrency:  cfg.ProbeConcurrency,
		RunID:             runID,
	})

	stats, runErr := runner.Run(ctx)
	if cache != nil {
		logger.Debug().Int64("cache_hits", cache.Hits()).Int("handles_probed", cache.Len()).Msg("probe cache")
	}

	var closeErr error
	if runner.State() == pipeline.StateFailed && jsonSink != nil {
		// A failed run leaves any previous output file as it was.
		closeErr = jsonSink.Abort()
	} else {
		closeErr = out.Close()
	}

	if store != nil {
		if err := store.CompleteRun(context.WithoutCancel(ctx), runID, runStatus(runner.State(), runErr), stats); err != nil {
			logger.Error().Err(err).Msg("failed to record run completion")
		}
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintRunSummary(stats)

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize output: %w", closeErr)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, runID uuid.UUID) (*db.DB, error) {
	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.CreateRun(ctx, runID, cfg.DirectoryURL); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func runStatus(state pipeline.State, err error) string {
	switch {
	case state == pipeline.StateFailed:
		return db.RunStatusFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return db.RunStatusInterrupted
	case err != nil:
		return db.RunStatusFailed
	default:
		return db.RunStatusDone
	}
}
