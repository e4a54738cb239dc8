package core

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, cfg *EngineConfig, vopts []ValidatorOption, opts ...BatchOption) *BatchRunner {
	t.Helper()
	v := newTestValidator(t, cfg, vopts...)
	r, err := NewBatchRunner(v, opts...)
	require.NoError(t, err)
	return r
}

// distinctRecords builds records whose values share no structure
func distinctRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		code := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("code-%d", i))))
		label := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("label-%d", i))))
		records[i] = NewRecord(fmt.Sprintf("r-%d", i), "code", code[:24], "label", label[:24])
	}
	return records
}

func contactBatch() []Record {
	return []Record{
		NewRecord("a", "first_name", "Jane", "last_name", "Doe", "email", "jane.doe@example.com"),
		NewRecord("b", "first_name", "Bob", "last_name", "Smith", "email", "bob@example.org"),
		NewRecord("c", "first_name", "Jane", "last_name", "Doe", "email", "JANE.DOE@example.com"),
		NewRecord("d", "first_name", "Carol", "last_name", "Jones", "email", "carol@example.net"),
		NewRecord("e", "first_name", "Bob", "last_name", "Smith", "email", "bob@example.org"),
		NewRecord("f", "first_name", "Jane", "last_name", "Doe", "email", "jane.doe@example.com"),
	}
}

func contactConfig() *EngineConfig {
	cfg := DefaultConfig()
	cfg.Deduplication.KeyFields = []string{"email", "last_name"}
	return cfg
}

func TestBatchRunFindsDuplicatesInInputOrder(t *testing.T) {
	runner := newTestRunner(t, contactConfig(), nil, WithConcurrency(1))

	result, err := runner.Run(context.Background(), contactBatch())
	require.NoError(t, err)

	require.Len(t, result.Results, 6)
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, id, result.Results[i].RecordID)
	}

	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 3, result.UniqueCount)
	require.Len(t, result.Duplicates, 3)
	assert.Equal(t, BatchDuplicate{RecordIndex: 2, RecordID: "c", MatchedRecordID: "a", Confidence: 100}, result.Duplicates[0])
	assert.Equal(t, "e", result.Duplicates[1].RecordID)
	assert.Equal(t, "b", result.Duplicates[1].MatchedRecordID)
	assert.Equal(t, "a", result.Duplicates[2].MatchedRecordID, "later duplicates match the first unique record only")

	assert.True(t, result.Results[2].HasIssue(IssueDuplication))
	assert.False(t, result.Results[0].HasIssue(IssueDuplication))
}

func TestBatchConcurrentRunMatchesSequential(t *testing.T) {
	records := append(contactBatch(), distinctRecords(40)...)
	records = append(records, contactBatch()...)

	sequential, err := newTestRunner(t, contactConfig(), nil, WithConcurrency(1)).Run(context.Background(), records)
	require.NoError(t, err)
	concurrent, err := newTestRunner(t, contactConfig(), nil, WithConcurrency(8)).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, sequential.UniqueCount, concurrent.UniqueCount)
	assert.Equal(t, sequential.Duplicates, concurrent.Duplicates)
	for i := range records {
		assert.Equal(t, sequential.Results[i].OverallScore, concurrent.Results[i].OverallScore, "record %d", i)
	}
}

func TestBatchConcurrentIndexedRunMatchesSequential(t *testing.T) {
	cfg := contactConfig()
	cfg.Deduplication.IndexThreshold = 5
	records := append(distinctRecords(10), contactBatch()...)
	records = append(records, contactBatch()...)

	sequential, err := newTestRunner(t, cfg, nil, WithConcurrency(1)).Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 13, sequential.UniqueCount)
	require.Len(t, sequential.Duplicates, 9)
	for _, dup := range sequential.Duplicates {
		assert.NotEqual(t, "d", dup.RecordID, "distinct contacts are not duplicates")
	}

	for i := 0; i < 20; i++ {
		concurrent, err := newTestRunner(t, cfg, nil, WithConcurrency(16)).Run(context.Background(), records)
		require.NoError(t, err)

		assert.Equal(t, sequential.UniqueCount, concurrent.UniqueCount)
		assert.Equal(t, sequential.Duplicates, concurrent.Duplicates)
		assert.Equal(t, sequential.Stats.PairwiseSearches, concurrent.Stats.PairwiseSearches)
		assert.Equal(t, sequential.Stats.IndexedSearches, concurrent.Stats.IndexedSearches)
		for j := range records {
			assert.Equal(t, sequential.Results[j].OverallScore, concurrent.Results[j].OverallScore, "record %d", j)
		}
	}
}

func TestBatchIndexedSearchIgnoresDistinctContacts(t *testing.T) {
	cfg := contactConfig()
	cfg.Deduplication.IndexThreshold = 5
	runner := newTestRunner(t, cfg, nil, WithConcurrency(1))

	records := append(distinctRecords(10), contactBatch()...)
	result, err := runner.Run(context.Background(), records)
	require.NoError(t, err)

	carol := result.Results[13]
	require.Equal(t, "d", carol.RecordID)
	assert.Empty(t, carol.Duplicates)
	assert.False(t, carol.HasIssue(IssueDuplication))
	assert.Equal(t, 100.0, carol.QualityMetrics.Uniqueness)
}

func TestBatchSwitchesToIndexedSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validation.EnablePIIDetection = false
	runner := newTestRunner(t, cfg, nil, WithConcurrency(1))

	result, err := runner.Run(context.Background(), distinctRecords(150))
	require.NoError(t, err)

	assert.Equal(t, 150, result.UniqueCount)
	assert.Empty(t, result.Duplicates)
	assert.Equal(t, int64(100), result.Stats.PairwiseSearches)
	assert.Equal(t, int64(50), result.Stats.IndexedSearches)
}

func TestBatchIndexedSearchFindsDuplicates(t *testing.T) {
	cfg := contactConfig()
	cfg.Validation.EnablePIIDetection = false
	cfg.Deduplication.IndexThreshold = 10
	runner := newTestRunner(t, cfg, nil, WithConcurrency(4))

	records := append(distinctRecords(20), contactBatch()...)
	result, err := runner.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 23, result.UniqueCount)
	require.Len(t, result.Duplicates, 3)
	assert.Equal(t, "c", result.Duplicates[0].RecordID)
	assert.Equal(t, "a", result.Duplicates[0].MatchedRecordID)
	assert.Greater(t, result.Stats.IndexedSearches, int64(0))
}

func TestBatchProgressIsMonotonic(t *testing.T) {
	var mu sync.Mutex
	var seen []Progress
	runner := newTestRunner(t, contactConfig(), nil,
		WithConcurrency(4),
		WithProgress(ProgressFunc(func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, p)
		})))

	records := append(contactBatch(), distinctRecords(20)...)
	_, err := runner.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, seen, len(records))
	for i, p := range seen {
		assert.Equal(t, i+1, p.Processed)
		assert.Equal(t, len(records), p.Total)
		if i > 0 {
			assert.GreaterOrEqual(t, p.DuplicatesFound, seen[i-1].DuplicatesFound)
		}
	}
	assert.Equal(t, 3, seen[len(seen)-1].DuplicatesFound)
}

func TestBatchProgressChannel(t *testing.T) {
	progress := NewProgressChannel(16)
	runner := newTestRunner(t, contactConfig(), nil, WithProgress(progress))

	done := make(chan int)
	go func() {
		n := 0
		for range progress.C {
			n++
		}
		done <- n
	}()

	_, err := runner.Run(context.Background(), contactBatch())
	require.NoError(t, err)
	progress.Close()
	assert.Equal(t, 6, <-done)
}

func TestBatchCancelReturnsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newTestRunner(t, contactConfig(), nil,
		WithConcurrency(1),
		WithProgress(ProgressFunc(func(p Progress) {
			if p.Processed == 2 {
				cancel()
			}
		})))

	records := distinctRecords(30)
	result, err := runner.Run(ctx, records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchCanceled))
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, len(result.Results), 2)
	assert.Less(t, len(result.Results), len(records))
	for i, r := range result.Results {
		assert.Equal(t, records[i].RecordID, r.RecordID, "partial results keep input order")
	}
}

func TestBatchCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newTestRunner(t, contactConfig(), nil)
	result, err := runner.Run(ctx, contactBatch())
	assert.ErrorIs(t, err, ErrBatchCanceled)
	assert.Empty(t, result.Results)
}

// panickingClassifier panics while reviewing one record
type panickingClassifier struct {
	NopClassifier
	recordID string
}

func (p panickingClassifier) ReviewRecord(ctx context.Context, record Record) []ValidationIssue {
	if record.RecordID == p.recordID {
		panic("review exploded")
	}
	return nil
}

func TestBatchRecoversFromPanics(t *testing.T) {
	cfg := contactConfig()
	cfg.Validation.EnableAIValidation = true

	writer := &collectingWriter{}
	runner := newTestRunner(t, cfg,
		[]ValidatorOption{WithAIClassifier(panickingClassifier{recordID: "b"})},
		WithConcurrency(2), WithIssueWriter(writer))

	result, err := runner.Run(context.Background(), contactBatch())
	require.NoError(t, err)
	require.Len(t, result.Results, 6)

	assert.Equal(t, 1, result.Failed)
	failed := result.Results[1]
	assert.Equal(t, 0.0, failed.OverallScore)
	require.Len(t, failed.Issues, 1)
	assert.Equal(t, SeverityCritical, failed.Issues[0].Severity)
	assert.Contains(t, failed.Issues[0].Message, "review exploded")

	// the failed record was admitted before review, so e still matches b
	assert.Equal(t, "b", result.Duplicates[1].MatchedRecordID)
	assert.True(t, writer.hasRecord("b"))
}

type collectingWriter struct {
	mu   sync.Mutex
	rows []IssueRow
}

func (c *collectingWriter) WriteIssues(ctx context.Context, rows []IssueRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
	return nil
}

func (c *collectingWriter) hasRecord(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rows {
		if r.RecordID == id {
			return true
		}
	}
	return false
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	searches map[SearchStrategy]int
}

func (r *recordingRecorder) ObserveRecord(result RecordResult, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *recordingRecorder) ObserveSearch(strategy SearchStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[strategy]++
}

func TestBatchWritesIssuesAndRecords(t *testing.T) {
	writer := &collectingWriter{}
	recorder := &recordingRecorder{outcomes: map[string]int{}, searches: map[SearchStrategy]int{}}
	runner := newTestRunner(t, contactConfig(), nil, WithIssueWriter(writer), WithRecorder(recorder))

	result, err := runner.Run(context.Background(), contactBatch())
	require.NoError(t, err)

	var total int
	for _, r := range result.Results {
		total += len(r.Issues)
	}
	assert.Len(t, writer.rows, total)
	for _, row := range writer.rows {
		assert.Equal(t, result.JobID, row.JobID)
	}

	assert.Equal(t, 3, recorder.outcomes[OutcomeUnique])
	assert.Equal(t, 3, recorder.outcomes[OutcomeDuplicate])
	assert.Equal(t, 6, recorder.searches[StrategyPairwise])
}

func TestNewBatchRunnerDefaults(t *testing.T) {
	_, err := NewBatchRunner(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.Batch.Concurrency = 3
	runner := newTestRunner(t, cfg, nil)
	assert.Equal(t, 3, runner.concurrency)

	runner = newTestRunner(t, cfg, nil, WithConcurrency(7))
	assert.Equal(t, 7, runner.concurrency)
}
