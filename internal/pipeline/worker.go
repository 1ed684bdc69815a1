package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/repertory"
	"github.com/aadjones/kent-repertory-etl/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChapterStore is the subset of the store the worker writes to.
type ChapterStore interface {
	FindByHash(ctx context.Context, contentHash string) (*store.Chapter, error)
	SaveDocument(ctx context.Context, doc repertory.CanonicalDocument, contentHash string) (uint, error)
}

// Worker processes a single conversion job.
type Worker struct {
	converter *Converter
	store     ChapterStore
	metrics   *metrics.Metrics
	log       *zap.Logger

	maxConcurrentFetch int
}

func NewWorker(conv *Converter, st ChapterStore, m *metrics.Metrics, log *zap.Logger, maxFetch int) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if maxFetch <= 0 {
		maxFetch = 1
	}
	return &Worker{
		converter:          conv,
		store:              st,
		metrics:            m,
		log:                log,
		maxConcurrentFetch: maxFetch,
	}
}

// Process runs fetch, parse and store for every source of the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With(zap.String("job_id", job.ID))
	status := w.process(ctx, job, log)
	w.metrics.JobFinished(string(status))
	log.Info("job finished", zap.String("status", string(status)))
}

func (w *Worker) process(ctx context.Context, job *Job, log *zap.Logger) JobStatus {
	// Phase 1: Fetch with bounded concurrency.
	job.SetStatus(StatusFetching, "fetching")
	markups := make([]string, len(job.Sources))
	fetchErrs := make([]error, len(job.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentFetch)
	for i, source := range job.Sources {
		g.Go(func() error {
			markup, err := w.converter.Fetch(gctx, source)
			if err != nil {
				fetchErrs[i] = err
				return nil
			}
			markups[i] = markup
			return nil
		})
	}
	_ = g.Wait()

	hadErrors := false
	for i, source := range job.Sources {
		if fetchErrs[i] == nil {
			continue
		}
		log.Error("fetch failed", zap.String("source", source), zap.Error(fetchErrs[i]))
		job.AddError(fmt.Sprintf("fetch %s: %s", source, fetchErrs[i]))
		job.IncrProcessed()
		hadErrors = true
	}
	if ctx.Err() != nil {
		return w.finish(job, StatusFailed, "fetching")
	}

	// Phase 2: Parse and drop content already stored.
	job.SetStatus(StatusParsing, "parsing")
	var results []*Result
	skipped := 0
	seen := make(map[string]bool)
	for i, source := range job.Sources {
		if fetchErrs[i] != nil {
			continue
		}
		res, err := w.converter.Parse(w.converter.Resolve(source), markups[i], job.Hints)
		if err != nil {
			log.Error("parse failed", zap.String("source", source), zap.Error(err))
			job.AddError(err.Error())
			job.IncrProcessed()
			hadErrors = true
			continue
		}

		dup, err := w.isDuplicate(ctx, res.ContentHash, seen)
		if err != nil {
			log.Warn("dedup check failed, proceeding", zap.String("source", source), zap.Error(err))
		} else if dup {
			log.Info("duplicate source, skipping", zap.String("source", source), zap.String("content_hash", res.ContentHash))
			job.MarkSkipped()
			job.IncrProcessed()
			skipped++
			continue
		}
		seen[res.ContentHash] = true
		results = append(results, res)
	}

	// Phase 3: Store.
	job.SetStatus(StatusStoring, "storing")
	stored := 0
	for _, res := range results {
		id, err := w.store.SaveDocument(ctx, res.Canonical, res.ContentHash)
		job.IncrProcessed()
		if err != nil {
			log.Error("store failed", zap.String("source", res.Source), zap.Error(err))
			job.AddError(fmt.Sprintf("store %s: %s", res.Source, err))
			hadErrors = true
			continue
		}
		job.AddStored(id, res.Rubrics, res.Remedies)
		stored++
		log.Info("chapter stored",
			zap.String("source", res.Source),
			zap.Uint("chapter_id", id),
			zap.String("section", res.Canonical.Section),
			zap.Int("rubrics", res.Rubrics),
			zap.Int("remedies", res.Remedies),
		)
	}

	switch {
	case hadErrors && stored+skipped > 0:
		return w.finish(job, StatusPartial, "done")
	case hadErrors:
		return w.finish(job, StatusFailed, "storing")
	case stored == 0 && skipped > 0:
		return w.finish(job, StatusDupSkipped, "dedup")
	default:
		return w.finish(job, StatusCompleted, "done")
	}
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) JobStatus {
	job.SetStatus(status, phase)
	return status
}

// isDuplicate reports whether contentHash was stored before or already seen
// earlier in the same job.
func (w *Worker) isDuplicate(ctx context.Context, contentHash string, seen map[string]bool) (bool, error) {
	if seen[contentHash] {
		return true, nil
	}
	_, err := w.store.FindByHash(ctx, contentHash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
