// Package pipeline provides the high-level orchestration of a directory crawl:
// authenticate, walk pages, find and classify handles, emit member records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/handle-crawler/internal/crawling"
	"github.com/jonathan/handle-crawler/internal/observability"
	"github.com/jonathan/handle-crawler/internal/session"
	"github.com/jonathan/handle-crawler/internal/types"
)

// State is the lifecycle state of a run.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateCrawling       State = "crawling"
	StateDraining       State = "draining"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// ErrFirstPage marks a run aborted because the first listing page was unavailable.
var ErrFirstPage = errors.New("first directory page unavailable")

// Authenticator establishes the directory session.
type Authenticator interface {
	Login(ctx context.Context, baseURL, token string) (*session.Session, error)
}

// Directory yields listing pages in ascending order.
type Directory interface {
	Pages(ctx context.Context, f crawling.Fetcher) iter.Seq2[types.DirectoryPage, error]
}

// HandleFinder returns the distinct handles mentioned by a member.
type HandleFinder interface {
	FindHandles(ctx context.Context, sess crawling.Fetcher, profile types.ProfileFragment) ([]string, error)
}

// HandleClassifier resolves one handle. It must be safe for concurrent use.
type HandleClassifier interface {
	Classify(ctx context.Context, handle string) (types.ClassifiedHandle, error)
}

// Sink accepts finished records one at a time, in emission order.
type Sink interface {
	Emit(ctx context.Context, rec *types.MemberRecord) error
	Flush(ctx context.Context) error
}

// Deps are the collaborators of a run.
type Deps struct {
	Auth       Authenticator
	Directory  Directory
	Cards      crawling.CardSelectors
	Finder     HandleFinder
	Classifier HandleClassifier
	Sink       Sink
	Logger     zerolog.Logger
}

// Options holds configuration for running the pipeline.
type Options struct {
	BaseURL           string
	Token             string
	MemberConcurrency int // members processed at once within the crawl
	ProbeConcurrency  int // classification probes in flight across all members
	RunID             uuid.UUID
}

// Runner executes one crawl. A Runner is single-use.
type Runner struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	probes *semaphore.Weighted

	mu    sync.Mutex
	state State

	counters counters
}

type counters struct {
	pages, pagesSkipped, malformed, processed, emitted, emitFailures atomic.Int64
	detailErrors, handles, channels, chats, personal                 atomic.Int64
	unclassified, probeErrors                                        atomic.Int64
}

// memberOutcome is the result slot for one member, filled exactly once.
type memberOutcome struct {
	record *types.MemberRecord
	err    error
}

// New creates a runner.
func New(deps Deps, opts Options) *Runner {
	if opts.MemberConcurrency < 1 {
		opts.MemberConcurrency = 1
	}
	if opts.ProbeConcurrency < 1 {
		opts.ProbeConcurrency = 1
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	return &Runner{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("run_id", opts.RunID.String()).Logger(),
		probes: semaphore.NewWeighted(int64(opts.ProbeConcurrency)),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.logger.Debug().Str("state", string(s)).Msg("state changed")
}

// Run performs the crawl. It returns an error only when authentication fails,
// the first listing page is unavailable, or ctx ends the run early; every other
// failure is logged and skipped. Stats are returned in all cases.
func (r *Runner) Run(ctx context.Context) (*types.RunStats, error) {
	started := time.Now()
	stats := func() *types.RunStats { return r.snapshot(started) }

	r.setState(StateAuthenticating)
	sess, err := r.deps.Auth.Login(ctx, r.opts.BaseURL, r.opts.Token)
	if err != nil {
		r.setState(StateFailed)
		r.logger.Error().Err(err).Msg("authentication failed")
		return stats(), err
	}

	r.setState(StateCrawling)

	// Result slots are queued in card order; the writer drains them in that
	// order, so records leave in page/card order whatever the completion order.
	pending := make(chan chan memberOutcome, r.opts.MemberConcurrency)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		r.writeLoop(ctx, pending)
	}()

	var members errgroup.Group
	members.SetLimit(r.opts.MemberConcurrency)

	crawlErr := r.crawl(ctx, sess, pending, &members)

	r.setState(StateDraining)
	_ = members.Wait()
	close(pending)
	<-writerDone

	if crawlErr != nil {
		r.setState(StateFailed)
		r.logger.Error().Err(crawlErr).Msg("crawl aborted")
		return stats(), crawlErr
	}

	// Records already emitted are kept even when the run was interrupted.
	if err := r.deps.Sink.Flush(context.WithoutCancel(ctx)); err != nil {
		r.logger.Error().Err(err).Msg("failed to flush sink")
	}

	r.setState(StateDone)
	s := stats()
	r.logger.Info().
		Int("processed", s.Processed).
		Int("emitted", s.Emitted).
		Dur("elapsed", s.Duration()).
		Msg("crawl finished")

	if err := ctx.Err(); err != nil {
		return s, fmt.Errorf("crawl interrupted: %w", err)
	}
	return s, nil
}

// crawl walks the pages and dispatches members. Pages are handled strictly in
// order: the next page is not fetched until this page's members are dispatched.
func (r *Runner) crawl(ctx context.Context, sess *session.Session, pending chan<- chan memberOutcome, members *errgroup.Group) error {
	seenFirst := false
	for page, err := range r.deps.Directory.Pages(ctx, sess) {
		if err != nil {
			if !seenFirst && page.Number == 1 {
				return fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			if ctx.Err() != nil {
				return nil
			}
			r.counters.pagesSkipped.Add(1)
			observability.PagesTotal.WithLabelValues("skipped").Inc()
			r.logger.Warn().Err(err).Int("page", page.Number).Msg("skipping directory page")
			continue
		}
		seenFirst = true
		r.counters.pages.Add(1)
		observability.PagesTotal.WithLabelValues("fetched").Inc()

		profiles, cardErrs, err := crawling.ExtractProfiles(page, r.deps.Cards)
		if err != nil {
			r.counters.pagesSkipped.Add(1)
			r.logger.Warn().Err(err).Int("page", page.Number).Msg("skipping unparseable directory page")
			continue
		}
		for _, cardErr := range cardErrs {
			r.counters.malformed.Add(1)
			observability.MembersTotal.WithLabelValues("malformed").Inc()
			r.logger.Warn().Err(cardErr).Int("page", page.Number).Msg("skipping profile card")
		}

		r.logger.Info().
			Int("page", page.Number).
			Int("total", page.Total).
			Int("profiles", len(profiles)).
			Msgf("scraping page %d/%d", page.Number, page.Total)

		for _, profile := range profiles {
			out := make(chan memberOutcome, 1)
			select {
			case pending <- out:
			case <-ctx.Done():
				return nil
			}
			members.Go(func() error {
				out <- r.processMember(ctx, sess, profile)
				return nil
			})
		}
	}
	return nil
}

// processMember finds and classifies one member's handles.
func (r *Runner) processMember(ctx context.Context, sess *session.Session, profile types.ProfileFragment) memberOutcome {
	r.counters.processed.Add(1)
	observability.MembersTotal.WithLabelValues("processed").Inc()
	logger := r.logger.With().Str("nickname", profile.Nickname).Int("page", profile.Page).Logger()

	handles, err := r.deps.Finder.FindHandles(ctx, sess, profile)
	if err != nil {
		if ctx.Err() != nil {
			return memberOutcome{err: ctx.Err()}
		}
		r.counters.detailErrors.Add(1)
		logger.Warn().Err(err).Int("bio_handles", len(handles)).Msg("detail page unavailable, using bio only")
	}
	if len(handles) == 0 {
		return memberOutcome{}
	}
	r.counters.handles.Add(int64(len(handles)))

	classified := make([]types.ClassifiedHandle, len(handles))
	var probes sync.WaitGroup
	for i, handle := range handles {
		// The shared semaphore bounds probes across all members.
		if err := r.probes.Acquire(ctx, 1); err != nil {
			probes.Wait()
			return memberOutcome{err: err}
		}
		probes.Add(1)
		go func() {
			defer probes.Done()
			defer r.probes.Release(1)
			classified[i] = r.classify(ctx, logger, handle)
		}()
	}
	probes.Wait()

	if err := ctx.Err(); err != nil {
		return memberOutcome{err: err}
	}

	rec, ok := types.NewMemberRecord(profile, classified)
	if !ok {
		logger.Debug().Int("handles", len(handles)).Msg("no handle classified")
		return memberOutcome{}
	}
	return memberOutcome{record: rec}
}

func (r *Runner) classify(ctx context.Context, logger zerolog.Logger, handle string) types.ClassifiedHandle {
	start := time.Now()
	h, err := r.deps.Classifier.Classify(ctx, handle)
	observability.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == nil {
			r.counters.probeErrors.Add(1)
			observability.ProbesTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Str("handle", handle).Msg("probe failed, handle left unclassified")
		}
		return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}
	}

	observability.ProbesTotal.WithLabelValues(string(h.Kind)).Inc()
	switch h.Kind {
	case types.KindChannel:
		r.counters.channels.Add(1)
	case types.KindChat:
		r.counters.chats.Add(1)
	case types.KindPersonal:
		r.counters.personal.Add(1)
	default:
		r.counters.unclassified.Add(1)
	}
	return h
}

// writeLoop is the only caller of Sink.Emit.
func (r *Runner) writeLoop(ctx context.Context, pending <-chan chan memberOutcome) {
	for out := range pending {
		outcome := <-out
		if outcome.err != nil || outcome.record == nil {
			continue
		}
		if ctx.Err() != nil {
			// Cancelled runs discard in-flight members instead of emitting them.
			continue
		}
		if err := r.deps.Sink.Emit(ctx, outcome.record); err != nil {
			r.counters.emitFailures.Add(1)
			observability.MembersTotal.WithLabelValues("emit_failed").Inc()
			r.logger.Error().Err(err).Str("nickname", outcome.record.Nickname).Msg("sink rejected record")
			continue
		}
		r.counters.emitted.Add(1)
		observability.MembersTotal.WithLabelValues("emitted").Inc()
	}
}

func (r *Runner) snapshot(started time.Time) *types.RunStats {
	c := &r.counters
	return &types.RunStats{
		RunID:        r.opts.RunID.String(),
		State:        string(r.State()),
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Pages:        int(c.pages.Load()),
		PagesSkipped: int(c.pagesSkipped.Load()),
		Malformed:    int(c.malformed.Load()),
		Processed:    int(c.processed.Load()),
		Emitted:      int(c.emitted.Load()),
		EmitFailures: int(c.emitFailures.Load()),
		DetailErrors: int(c.detailErrors.Load()),
		Handles:      int(c.handles.Load()),
		Channels:     int(c.channels.Load()),
		Chats:        int(c.chats.Load()),
		Personal:     int(c.personal.Load()),
		Unclassified: int(c.unclassified.Load()),
		ProbeErrors:  int(c.probeErrors.Load()),
	}
}
