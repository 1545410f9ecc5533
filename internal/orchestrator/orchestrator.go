// Package orchestrator runs all discovered crawlers for one date range
// with isolated failure domains. Fetches fan out over a bounded worker
// pool; every result funnels through the single collector below, so no
// shared aggregation state is ever written concurrently.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/anomaly"
	"github.com/nmoreaux/techwatch/internal/metrics"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Config controls the run loop.
type Config struct {
	// Workers bounds how many crawlers fetch at once. Deliberately a
	// small constant independent of the number of sources.
	Workers int
	// SourceTimeout bounds one crawler invocation. A crawler that blows
	// it contributes nothing and gets a timeout entry in the report.
	SourceTimeout time.Duration
	// ProbeOnEmpty runs a source's unfiltered fallback probe when it
	// yields nothing, feeding the anomaly detector.
	ProbeOnEmpty bool
}

// Orchestrator coordinates one crawl run across all sources.
type Orchestrator struct {
	crawlers map[string]techwatch.Crawler
	detector *anomaly.Detector
	history  techwatch.HistoryStore
	clock    techwatch.Clock
	cfg      Config
	logger   *zap.Logger
}

// New builds an Orchestrator over the discovered crawlers.
func New(
	crawlers map[string]techwatch.Crawler,
	detector *anomaly.Detector,
	history techwatch.HistoryStore,
	clock techwatch.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	return &Orchestrator{
		crawlers: crawlers,
		detector: detector,
		history:  history,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sources lists the source names the orchestrator can run, sorted.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.crawlers))
	for name := range o.crawlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type sourceResult struct {
	report techwatch.SourceReport
	posts  []techwatch.Post
}

// Run executes every selected crawler against r and aggregates the
// results. Per-source failures never fail the run; the only error Run
// returns is cancellation, in which case in-flight fetches are abandoned
// and the partial aggregate is discarded.
func (o *Orchestrator) Run(ctx context.Context, r techwatch.DateRange, sources []string) ([]techwatch.Post, techwatch.RunReport, error) {
	report := techwatch.RunReport{
		RunID:   uuid.NewString(),
		Range:   r,
		Started: o.clock.Now(),
	}
	selected := o.selectCrawlers(sources)
	o.logger.Info("run started",
		zap.String("run_id", report.RunID),
		zap.String("range", r.String()),
		zap.Int("sources", len(selected)),
	)

	jobs := make(chan techwatch.Crawler)
	results := make(chan sourceResult)

	workers := o.cfg.Workers
	if workers > len(selected) && len(selected) > 0 {
		workers = len(selected)
	}
	var done sync.WaitGroup
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			for c := range jobs {
				res := o.fetchOne(ctx, report.RunID, c, r)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range selected {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		done.Wait()
		close(results)
	}()

	// Single-writer collection point: only this loop touches the
	// aggregate and the report.
	var aggregate []techwatch.Post
	for res := range results {
		aggregate = append(aggregate, res.posts...)
		report.Sources = append(report.Sources, res.report)
	}
	if err := ctx.Err(); err != nil {
		o.logger.Warn("run cancelled, discarding partial aggregate",
			zap.String("run_id", report.RunID), zap.Error(err))
		return nil, techwatch.RunReport{}, err
	}

	sort.Slice(report.Sources, func(i, j int) bool {
		return report.Sources[i].Source < report.Sources[j].Source
	})
	report.Fetched = len(aggregate)
	report.Finished = o.clock.Now()
	o.recordYields(ctx, report)
	metrics.ObserveRun(report.Elapsed())

	o.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("posts", report.Fetched),
		zap.Int("sources_ok", report.Succeeded()),
		zap.Duration("elapsed", report.Elapsed()),
	)
	return aggregate, report, nil
}

func (o *Orchestrator) selectCrawlers(sources []string) []techwatch.Crawler {
	names := o.Sources()
	if len(sources) > 0 {
		wanted := make(map[string]struct{}, len(sources))
		for _, s := range sources {
			if _, known := o.crawlers[s]; !known {
				o.logger.Warn("unknown source in filter, skipping", zap.String("source", s))
				continue
			}
			wanted[s] = struct{}{}
		}
		filtered := names[:0:0]
		for _, name := range names {
			if _, ok := wanted[name]; ok {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}
	selected := make([]techwatch.Crawler, 0, len(names))
	for _, name := range names {
		selected = append(selected, o.crawlers[name])
	}
	return selected
}

type fetchOutcome struct {
	posts    []techwatch.Post
	panicked bool
	panicVal any
}

// fetchOne invokes one crawler under a timeout and a panic boundary. The
// crawler contract already forbids errors from escaping; this is the
// defensive second layer that keeps a contract violation from aborting
// the run.
func (o *Orchestrator) fetchOne(ctx context.Context, runID string, c techwatch.Crawler, r techwatch.DateRange) sourceResult {
	source := c.SourceName()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	outcomeCh := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				outcomeCh <- fetchOutcome{panicked: true, panicVal: p}
			}
		}()
		outcomeCh <- fetchOutcome{posts: c.FetchPostsInRange(callCtx, r)}
	}()

	rep := techwatch.SourceReport{Source: source}
	var posts []techwatch.Post
	select {
	case out := <-outcomeCh:
		if out.panicked {
			rep.Status = techwatch.SourceStatusPanic
			rep.Error = "crawler panicked, see logs"
			o.logger.Error("crawler violated its contract and panicked",
				zap.String("run_id", runID),
				zap.String("source", source),
				zap.Any("panic", out.panicVal),
			)
			metrics.IncSourceFailure(source, "panic")
			break
		}
		// Defensive re-filter: the contract says crawlers pre-filter,
		// but a broken date parser upstream must not poison the set.
		posts = filterInRange(out.posts, r)
		if dropped := len(out.posts) - len(posts); dropped > 0 {
			o.logger.Warn("crawler returned out-of-range posts, dropped",
				zap.String("source", source), zap.Int("dropped", dropped))
		}
		if len(posts) > 0 {
			rep.Status = techwatch.SourceStatusOK
		} else {
			rep.Status = techwatch.SourceStatusEmpty
		}
	case <-callCtx.Done():
		// Abandon the in-flight call; its eventual result is discarded.
		rep.Status = techwatch.SourceStatusTimeout
		rep.Error = callCtx.Err().Error()
		o.logger.Error("crawler timed out",
			zap.String("run_id", runID),
			zap.String("source", source),
			zap.Duration("timeout", o.cfg.SourceTimeout),
		)
		metrics.IncSourceFailure(source, "timeout")
	}

	rep.Posts = len(posts)
	rep.Elapsed = time.Since(start)
	metrics.ObserveFetch(source, rep.Posts, rep.Elapsed)

	if ctx.Err() == nil {
		rep.Advisories = o.inspect(ctx, c, r, rep)
	}
	return sourceResult{report: rep, posts: posts}
}

func (o *Orchestrator) inspect(ctx context.Context, c techwatch.Crawler, r techwatch.DateRange, rep techwatch.SourceReport) []techwatch.Advisory {
	if o.detector == nil {
		return nil
	}
	probe := anomaly.Probe{}
	if o.cfg.ProbeOnEmpty && rep.Status == techwatch.SourceStatusEmpty {
		if prober, ok := c.(techwatch.FallbackProber); ok {
			probe.Ran = true
			probe.Posts = len(prober.RecentPosts(ctx))
		}
	}
	advisories := o.detector.Inspect(ctx, rep.Source, r, rep.Posts, probe)
	for _, a := range advisories {
		metrics.IncAnomaly(a.Source, string(a.Kind))
		o.logger.Warn("anomaly advisory",
			zap.String("source", a.Source),
			zap.String("kind", string(a.Kind)),
			zap.String("message", a.Message),
		)
	}
	return advisories
}

func (o *Orchestrator) recordYields(ctx context.Context, report techwatch.RunReport) {
	if o.history == nil {
		return
	}
	recs := make([]techwatch.YieldRecord, 0, len(report.Sources))
	for _, s := range report.Sources {
		recs = append(recs, techwatch.YieldRecord{
			RunID:      report.RunID,
			Source:     s.Source,
			RangeStart: report.Range.Start(),
			RangeEnd:   report.Range.End(),
			Posts:      s.Posts,
			RecordedAt: report.Finished,
		})
	}
	if err := o.history.Record(ctx, recs); err != nil {
		o.logger.Warn("recording run yields failed", zap.Error(err))
	}
}

func filterInRange(posts []techwatch.Post, r techwatch.DateRange) []techwatch.Post {
	kept := posts[:0:0]
	for _, p := range posts {
		if r.Contains(p.Date) {
			kept = append(kept, p)
		}
	}
	return kept
}
