package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() RecordResult {
	return RecordResult{
		RecordID: "rec-7",
		Issues: []ValidationIssue{
			{Type: IssueMissingRequired, Field: "email", Severity: SeverityHigh, Message: "missing"},
			{Type: IssueDataQuality, Field: "notes", Severity: SeverityMedium, Message: "placeholder", AIGenerated: true},
		},
	}
}

func readLines(t *testing.T, path string) []IssueRow {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []IssueRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row IssueRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())
	return rows
}

func TestIssueRows(t *testing.T) {
	rows := IssueRows("job-1", 3, sampleResult())
	require.Len(t, rows, 2)

	assert.Equal(t, "job-1", rows[0].JobID)
	assert.Equal(t, 3, rows[0].RecordIndex)
	assert.Equal(t, "rec-7", rows[0].RecordID)
	assert.Equal(t, "email", rows[0].FieldName)
	assert.Equal(t, "missing_required", rows[0].ErrorType)
	assert.Equal(t, "high", rows[0].Severity)
	assert.True(t, rows[1].AIGenerated)
	assert.False(t, rows[0].CreatedAt.IsZero())

	assert.Empty(t, IssueRows("job-1", 0, RecordResult{}))
}

func TestIssueLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "issues.jsonl")
	log, err := OpenIssueLog(path, IssueLogOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, log.WriteIssues(ctx, IssueRows("job-1", 0, sampleResult())))
	require.NoError(t, log.WriteIssues(ctx, IssueRows("job-1", 1, sampleResult())))
	require.NoError(t, log.Close())

	rows := readLines(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, 1, rows[3].RecordIndex)

	assert.Error(t, log.WriteIssues(ctx, IssueRows("job-1", 2, sampleResult())), "closed logs reject writes")
	assert.NoError(t, log.Close())
}

func TestIssueLogRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	log, err := OpenIssueLog(path, IssueLogOptions{RotationSize: 1})
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.WriteIssues(context.Background(), IssueRows("job-1", 0, sampleResult())))

	rotated, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Len(t, rotated, 1)
	assert.Len(t, readLines(t, path), 1)
}

type failingWriter struct{ calls int }

func (f *failingWriter) WriteIssues(ctx context.Context, rows []IssueRow) error {
	f.calls++
	return errors.New("disk full")
}

type countingWriter struct{ rows int }

func (c *countingWriter) WriteIssues(ctx context.Context, rows []IssueRow) error {
	c.rows += len(rows)
	return nil
}

func TestMultiIssueWriter(t *testing.T) {
	first := &countingWriter{}
	failing := &failingWriter{}
	last := &countingWriter{}

	err := MultiIssueWriter{first, failing, last}.WriteIssues(context.Background(), IssueRows("j", 0, sampleResult()))
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 2, first.rows)
	assert.Equal(t, 1, failing.calls)
	assert.Zero(t, last.rows)
}
