package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/dqe-go/core"
)

func TestViperKey(t *testing.T) {
	assert.Equal(t, "issues_log_rotate_bytes", viperKey("issues-log-rotate-bytes"))
	assert.Equal(t, "config", viperKey("config"))
}

func TestSummarize(t *testing.T) {
	result := &core.BatchResult{
		JobID:       "job",
		UniqueCount: 1,
		Duration:    1500 * time.Millisecond,
		Results: []core.RecordResult{
			{RecordID: "a", OverallScore: 90, Issues: []core.ValidationIssue{{Type: core.IssuePIIRisk}}},
			{RecordID: "b", OverallScore: 60, Issues: []core.ValidationIssue{
				{Type: core.IssuePIIRisk}, {Type: core.IssueDuplication},
			}},
		},
		Duplicates: []core.BatchDuplicate{{RecordIndex: 1, RecordID: "b", MatchedRecordID: "a", Confidence: 97}},
	}

	s := summarize(result)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 75.0, s.AverageScore)
	assert.Equal(t, map[string]int{"pii_risk": 2, "duplication": 1}, s.IssueCounts)
	assert.Equal(t, int64(1500), s.DurationMs)
	assert.Len(t, s.Duplicates, 1)

	assert.Zero(t, summarize(&core.BatchResult{}).AverageScore)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(path, map[string]int{"records": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 3, out["records"])
}

func TestBuildRuntimePersistsIssues(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("db", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	viper.Set("issues_log", filepath.Join(dir, "issues.jsonl"))
	viper.Set("strict", true)
	viper.Set("concurrency", 2)

	rt, err := buildRuntime(context.Background())
	require.NoError(t, err)
	defer rt.close()

	assert.True(t, rt.engine.Config().Validation.StrictMode)

	records := []core.Record{
		core.NewRecord("a", "email", "not-an-email"),
		core.NewRecord("b", "email", "ok@example.com"),
	}
	result, err := rt.engine.RunBatch(context.Background(), records)
	require.NoError(t, err)

	rows, err := rt.store.ListIssues(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	info, err := os.Stat(filepath.Join(dir, "issues.jsonl"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	families, err := rt.registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuildRuntimeBadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("config", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := buildRuntime(context.Background())
	assert.Error(t, err)
}
