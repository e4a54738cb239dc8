package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrBatchCanceled is returned when a run stops before every record was dispatched
var ErrBatchCanceled = errors.New("batch canceled")

// Record outcomes reported to a Recorder
const (
	OutcomeUnique    = "unique"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Progress is reported after every processed record
type Progress struct {
	Processed       int `json:"processed"`
	Total           int `json:"total"`
	DuplicatesFound int `json:"duplicatesFound"`
}

// ProgressObserver receives progress in completion order; Processed is strictly increasing
type ProgressObserver interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// ProgressChannel delivers progress on a channel. Sends block, so the
// consumer must drain C for the duration of the run.
type ProgressChannel struct {
	C chan Progress
}

// NewProgressChannel creates a channel observer with the given buffer
func NewProgressChannel(buffer int) *ProgressChannel {
	return &ProgressChannel{C: make(chan Progress, buffer)}
}

func (p *ProgressChannel) OnProgress(pr Progress) { p.C <- pr }

// Close closes C; call it once Run has returned
func (p *ProgressChannel) Close() { close(p.C) }

// Recorder receives per-record instrumentation
type Recorder interface {
	ObserveRecord(result RecordResult, outcome string)
	ObserveSearch(strategy SearchStrategy)
}

// BatchDuplicate records the best match of a record rejected from the unique pool
type BatchDuplicate struct {
	RecordIndex     int     `json:"recordIndex"`
	RecordID        string  `json:"recordId"`
	MatchedRecordID string  `json:"matchedRecordId"`
	Confidence      float64 `json:"confidence"`
}

// BatchResult is the outcome of one run
type BatchResult struct {
	JobID       string           `json:"jobId"`
	Results     []RecordResult   `json:"results"`
	Duplicates  []BatchDuplicate `json:"duplicates"`
	UniqueCount int              `json:"uniqueCount"`
	Failed      int              `json:"failed"`
	Stats       DedupStats       `json:"stats"`
	StartedAt   time.Time        `json:"startedAt"`
	Duration    time.Duration    `json:"duration"`
}

// BatchRunner drives the validator across a list of records
type BatchRunner struct {
	validator   *Validator
	concurrency int
	observer    ProgressObserver
	writer      IssueWriter
	recorder    Recorder
	logger      *slog.Logger
}

// BatchOption configures a BatchRunner
type BatchOption func(*BatchRunner)

// WithConcurrency overrides the configured number of parallel records
func WithConcurrency(n int) BatchOption {
	return func(r *BatchRunner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithProgress sets the progress observer
func WithProgress(o ProgressObserver) BatchOption {
	return func(r *BatchRunner) { r.observer = o }
}

// WithIssueWriter sets where issues are written back
func WithIssueWriter(w IssueWriter) BatchOption {
	return func(r *BatchRunner) { r.writer = w }
}

// WithRecorder sets the instrumentation sink
func WithRecorder(rec Recorder) BatchOption {
	return func(r *BatchRunner) { r.recorder = rec }
}

// WithBatchLogger sets the logger
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(r *BatchRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewBatchRunner creates a runner around a validator
func NewBatchRunner(v *Validator, opts ...BatchOption) (*BatchRunner, error) {
	if v == nil {
		return nil, &ConfigError{Field: "validator", Reason: "missing validator"}
	}

	r := &BatchRunner{
		validator:   v,
		concurrency: v.Config().Batch.Concurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = runtime.NumCPU()
	}
	return r, nil
}

type recordOutcome struct {
	result    RecordResult
	duplicate *BatchDuplicate
	failed    bool
}

// Run validates every record. Records in equals results out unless ctx is
// canceled, in which case the results processed so far are returned with
// ErrBatchCanceled.
func (r *BatchRunner) Run(ctx context.Context, records []Record) (*BatchResult, error) {
	started := time.Now()
	jobID := uuid.NewString()
	logger := r.logger.With("job_id", jobID)
	logger.Info("batch started", "records", len(records), "concurrency", r.concurrency)

	// each run gets fresh counters
	dedup := NewDeduplicator(r.validator.Config().Deduplication)
	pool := NewUniquePool(dedup)

	outcomes := make([]*recordOutcome, len(records))

	var (
		mu         sync.Mutex
		processed  int
		duplicates int
	)

	// in-flight records finish with their own deadlines once dispatch stops
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	dispatched := 0
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			out := r.process(workCtx, jobID, i, &records[i], pool)

			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = out
			processed++
			if out.duplicate != nil {
				duplicates++
			}
			if r.observer != nil {
				r.observer.OnProgress(Progress{
					Processed:       processed,
					Total:           len(records),
					DuplicatesFound: duplicates,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{
		JobID:       jobID,
		Results:     make([]RecordResult, 0, dispatched),
		Duplicates:  []BatchDuplicate{},
		UniqueCount: pool.Len(),
		Stats:       dedup.Stats(),
		StartedAt:   started,
	}
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		batch.Results = append(batch.Results, out.result)
		if out.duplicate != nil {
			batch.Duplicates = append(batch.Duplicates, *out.duplicate)
		}
		if out.failed {
			batch.Failed++
		}
	}
	batch.Duration = time.Since(started)

	logger.Info("batch finished",
		"processed", len(batch.Results),
		"duplicates", len(batch.Duplicates),
		"unique", batch.UniqueCount,
		"failed", batch.Failed,
		"duration", batch.Duration)

	if dispatched < len(records) {
		return batch, fmt.Errorf("%w after %d of %d records: %v", ErrBatchCanceled, dispatched, len(records), ctx.Err())
	}
	return batch, nil
}

// process evaluates one record; a panic becomes a failed result
func (r *BatchRunner) process(ctx context.Context, jobID string, index int, record *Record, pool *UniquePool) (out *recordOutcome) {
	defer pool.Release(index)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("record evaluation panicked",
				"job_id", jobID, "record_index", index, "record_id", record.RecordID, "panic", rec)
			out = &recordOutcome{
				result: FailedResult(*record, fmt.Errorf("panic: %v", rec)),
				failed: true,
			}
			r.observe(out.result, OutcomeFailed)
			r.writeBack(ctx, jobID, index, out.result)
		}
	}()

	out = &recordOutcome{}

	var dups []DuplicateCandidate
	if r.validator.Config().Validation.EnableDeduplication {
		snap := pool.Snapshot()
		found := pool.FindDuplicates(record, snap)
		var strategy SearchStrategy
		dups, strategy, _ = pool.Resolve(index, record, snap, found)
		if r.recorder != nil {
			r.recorder.ObserveSearch(strategy)
		}
		if len(dups) > 0 {
			top := dups[0]
			out.duplicate = &BatchDuplicate{
				RecordIndex:     index,
				RecordID:        record.RecordID,
				MatchedRecordID: top.MatchedRecord.RecordID,
				Confidence:      top.Confidence,
			}
		}
	}

	out.result = r.validator.Assess(ctx, *record, dups)

	outcome := OutcomeUnique
	if out.duplicate != nil {
		outcome = OutcomeDuplicate
	}
	r.observe(out.result, outcome)
	r.writeBack(ctx, jobID, index, out.result)
	return out
}

func (r *BatchRunner) observe(result RecordResult, outcome string) {
	if r.recorder != nil {
		r.recorder.ObserveRecord(result, outcome)
	}
}

// writeBack persists issues; failures are logged and do not fail the record
func (r *BatchRunner) writeBack(ctx context.Context, jobID string, index int, result RecordResult) {
	if r.writer == nil || len(result.Issues) == 0 {
		return
	}
	if err := r.writer.WriteIssues(ctx, IssueRows(jobID, index, result)); err != nil {
		r.logger.Error("failed to write issues",
			"job_id", jobID, "record_index", index, "record_id", result.RecordID, "error", err)
	}
}
