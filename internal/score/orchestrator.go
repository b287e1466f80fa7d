package score

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
)

// Report summarizes one batch job run.
type Report struct {
	JobID        string
	Kind         Kind
	Chunks       int
	FailedChunks int
	Updated      int
}

// Orchestrator runs batch scoring jobs: snapshot the visible records,
// pack them into chunks, fan the chunks out through a bounded worker
// pool, and merge the outcomes back by hash key.
//
// Concurrent jobs are not de-duplicated; two overlapping runs resolve
// last-writer-wins per record, as do live event arrivals racing a
// merge-back.
type Orchestrator struct {
	store   store.Store
	scorer  Scorer
	budget  int
	workers int
	timeout time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator with the given chunk budget,
// worker count, and per-chunk timeout. The logger may be nil.
func NewOrchestrator(s store.Store, sc Scorer, cfg model.ScorerConfig, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	budget := cfg.ChunkBudget
	if budget <= 0 {
		budget = 5000
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Orchestrator{
		store:   s,
		scorer:  sc,
		budget:  budget,
		workers: workers,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// chunkResult carries one chunk's raw response or error.
type chunkResult struct {
	raw string
	err error
}

// Run executes one batch job. A failed chunk yields no outcomes for its
// records and does not abort the job or roll back other chunks; the job
// itself only fails when the store is unavailable.
func (o *Orchestrator) Run(ctx context.Context, kind Kind) (*Report, error) {
	report := &Report{JobID: uuid.NewString(), Kind: kind}

	snapshot, err := o.store.VisibleRecords(ctx)
	if err != nil {
		return report, fmt.Errorf("loading visible records: %w", err)
	}
	if len(snapshot) == 0 {
		return report, nil
	}

	chunks := BuildChunks(snapshot, o.budget, o.now())
	report.Chunks = len(chunks)
	o.log.Infow("batch job started",
		"job", report.JobID, "kind", kind, "records", len(snapshot), "chunks", len(chunks))

	results := o.dispatch(ctx, chunks, kind)

	updated := o.merge(snapshot, chunks, results, kind, report)
	if len(updated) > 0 {
		if err := o.store.UpdateAll(ctx, updated); err != nil {
			return report, fmt.Errorf("persisting outcomes: %w", err)
		}
	}
	report.Updated = len(updated)

	o.log.Infow("batch job finished",
		"job", report.JobID, "failed_chunks", report.FailedChunks, "updated", report.Updated)
	return report, nil
}

// dispatch fans chunks out over a fixed pool of workers and waits for
// every call to resolve. Each call gets its own timeout so one slow
// chunk cannot starve the rest.
func (o *Orchestrator) dispatch(ctx context.Context, chunks []Chunk, kind Kind) []chunkResult {
	results := make([]chunkResult, len(chunks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := o.workers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				callCtx, cancel := context.WithTimeout(ctx, o.timeout)
				raw, err := o.scorer.Request(callCtx, chunks[i].Body, kind)
				cancel()
				results[i] = chunkResult{raw: raw, err: err}
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// merge applies chunk outcomes to the snapshot. Outcomes for ids absent
// from the snapshot are ignored; records with no outcome are left out of
// the update set so their prior score and summary stay untouched.
func (o *Orchestrator) merge(
	snapshot []model.NotiRecord,
	chunks []Chunk,
	results []chunkResult,
	kind Kind,
	report *Report,
) []model.NotiRecord {
	byHash := make(map[int64]*model.NotiRecord, len(snapshot))
	for i := range snapshot {
		byHash[snapshot[i].HashKey] = &snapshot[i]
	}

	touched := make(map[int64]bool)
	for i, res := range results {
		if res.err != nil {
			report.FailedChunks++
			o.log.Warnw("chunk request failed",
				"job", report.JobID, "chunk", i, "ids", chunks[i].IDs, "error", res.err)
			continue
		}

		switch kind {
		case KindSort:
			outcomes, err := ParseSortOutcomes(res.raw)
			if err != nil {
				report.FailedChunks++
				o.log.Warnw("chunk response unparseable", "job", report.JobID, "chunk", i, "error", err)
				continue
			}
			for _, oc := range outcomes {
				rec, ok := byHash[oc.ID]
				if !ok {
					continue
				}
				rec.Score = round2(oc.TimeSensitiveness + oc.SenderAttractiveness + oc.ContentAttractiveness)
				touched[oc.ID] = true
			}
		case KindSummarize:
			outcomes, err := ParseSummaryOutcomes(res.raw)
			if err != nil {
				report.FailedChunks++
				o.log.Warnw("chunk response unparseable", "job", report.JobID, "chunk", i, "error", err)
				continue
			}
			for _, oc := range outcomes {
				rec, ok := byHash[oc.ID]
				if !ok {
					continue
				}
				rec.Summary = oc.Summary
				touched[oc.ID] = true
			}
		}
	}

	var updated []model.NotiRecord
	for i := range snapshot {
		if touched[snapshot[i].HashKey] {
			updated = append(updated, snapshot[i])
		}
	}
	return updated
}

// round2 rounds half away from zero to two decimals.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
