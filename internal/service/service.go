// Package service exposes the application's use cases: generate a
// dataset for a date range, list sources and read the current dataset.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/merge"
	"github.com/nmoreaux/techwatch/internal/metrics"
	"github.com/nmoreaux/techwatch/internal/orchestrator"
	"github.com/nmoreaux/techwatch/internal/store"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// RunEventTopic labels run-completion events on the broker.
const RunEventTopic = "techwatch.run.completed"

// RunEvent is the payload published after every persisted run.
type RunEvent struct {
	RunID    string `json:"run_id"`
	Range    string `json:"range"`
	Fetched  int    `json:"fetched"`
	NewPosts int    `json:"new_posts"`
	Total    int    `json:"total"`
}

// Service wires the crawl orchestrator to persistence and the optional
// archive and event sinks.
type Service struct {
	orch      *orchestrator.Orchestrator
	merger    *merge.Merger
	repo      techwatch.PostRepository
	archiver  techwatch.Archiver
	publisher techwatch.Publisher
	logger    *zap.Logger
}

func New(
	orch *orchestrator.Orchestrator,
	merger *merge.Merger,
	repo techwatch.PostRepository,
	archiver techwatch.Archiver,
	publisher techwatch.Publisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orch:      orch,
		merger:    merger,
		repo:      repo,
		archiver:  archiver,
		publisher: publisher,
		logger:    logger,
	}
}

// Generate crawls every selected source for r, merges the results into
// the persisted dataset and saves it. Per-source failures degrade to
// report entries; Generate itself fails only on cancellation or when
// the dataset cannot be loaded or saved. A cancelled run persists
// nothing.
func (s *Service) Generate(ctx context.Context, r techwatch.DateRange, sources []string) (techwatch.RunReport, error) {
	existing, err := s.repo.LoadLatest(ctx)
	if err != nil {
		return techwatch.RunReport{}, fmt.Errorf("loading current dataset: %w", err)
	}

	posts, report, err := s.orch.Run(ctx, r, sources)
	if err != nil {
		return techwatch.RunReport{}, err
	}

	env, added := s.merger.Merge(existing, posts)
	report.NewPosts = added
	report.Total = env.Metadata.TotalArticles
	metrics.AddNewPosts(added)

	if err := s.repo.Save(ctx, env); err != nil {
		return techwatch.RunReport{}, fmt.Errorf("saving dataset: %w", err)
	}

	s.archiveSnapshot(ctx, report, env)
	s.publishEvent(ctx, report)
	return report, nil
}

// ListSources returns every registered source name, sorted.
func (s *Service) ListSources() []string {
	return s.orch.Sources()
}

// LoadLatest returns the persisted dataset, empty when no run has ever
// completed.
func (s *Service) LoadLatest(ctx context.Context) (techwatch.Envelope, error) {
	return s.repo.LoadLatest(ctx)
}

// archiveSnapshot ships the exact persisted bytes to the archive sink.
// Failures are logged, never fatal: the dataset on disk is already the
// source of truth.
func (s *Service) archiveSnapshot(ctx context.Context, report techwatch.RunReport, env techwatch.Envelope) {
	data, err := store.Encode(env)
	if err != nil {
		s.logger.Warn("encoding dataset for archival failed", zap.Error(err))
		return
	}
	name := fmt.Sprintf("techwatch-%s-%s.json",
		report.Finished.UTC().Format("20060102T150405Z"), report.RunID)
	if err := s.archiver.Archive(ctx, name, data); err != nil {
		s.logger.Warn("archiving dataset snapshot failed",
			zap.String("object", name), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, report techwatch.RunReport) {
	event := RunEvent{
		RunID:    report.RunID,
		Range:    report.Range.String(),
		Fetched:  report.Fetched,
		NewPosts: report.NewPosts,
		Total:    report.Total,
	}
	if _, err := s.publisher.Publish(ctx, RunEventTopic, event); err != nil {
		s.logger.Warn("publishing run event failed",
			zap.String("run_id", report.RunID), zap.Error(err))
	}
}
