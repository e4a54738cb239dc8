package dqe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/dqe-go/core"
)

const contactsJSON = `[
	{"recordId": "crm-1", "objectType": "contact", "fields": [
		{"name": "first_name", "value": "Jane"},
		{"name": "last_name", "value": "Doe"},
		{"name": "email", "value": "jane.doe@example.com"}
	]},
	{"recordId": "erp-9", "objectType": "contact", "fields": [
		{"name": "first_name", "value": "Jane"},
		{"name": "last_name", "value": "Doe"},
		{"name": "email", "value": "Jane.Doe@example.com"}
	]},
	{"recordId": "crm-2", "objectType": "contact", "fields": [
		{"name": "first_name", "value": "Bob"},
		{"name": "last_name", "value": "Smith"},
		{"name": "email", "value": "bob@example.org"},
		{"name": "age", "value": 41}
	]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseRecords(t *testing.T) {
	records, err := ParseRecords([]byte(contactsJSON))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "erp-9", records[1].RecordID)
	assert.Equal(t, "contact", records[1].ObjectType)
	age, ok := records[2].Get("age")
	require.True(t, ok)
	assert.Equal(t, "41", age.Text())

	_, err = ParseRecords([]byte(`{"recordId": "x"}`))
	assert.Error(t, err)
}

func TestLoadRecordsMissingFile(t *testing.T) {
	_, err := LoadRecords(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "failed to read records file")
}

func TestNewEngineDefaults(t *testing.T) {
	engine, err := NewEngine(Options{})
	require.NoError(t, err)

	cfg := engine.Config()
	assert.Equal(t, float64(core.DefaultFuzzyThreshold), cfg.Deduplication.FuzzyThreshold)
	assert.True(t, cfg.Validation.EnablePIIDetection)
	assert.True(t, cfg.Validation.EnableDeduplication)
}

func TestNewEngineFromConfigFile(t *testing.T) {
	path := writeFile(t, "dqe.yaml", `
deduplication:
  fuzzy_threshold: 90
  key_fields: [email, last_name]
validation:
  required_fields: [email]
  strict_mode: true
`)

	engine, err := NewEngine(Options{ConfigPath: path})
	require.NoError(t, err)

	cfg := engine.Config()
	assert.Equal(t, 90.0, cfg.Deduplication.FuzzyThreshold)
	assert.Equal(t, []string{"email", "last_name"}, cfg.Deduplication.KeyFields)
	assert.True(t, cfg.Validation.StrictMode)
	assert.NotEmpty(t, cfg.Metadata.Hash)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Deduplication.FuzzyThreshold = 150

	_, err := NewEngine(Options{Config: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "deduplication.fuzzy_threshold", cfgErr.Field)

	path := writeFile(t, "bad.yaml", "deduplication: [not, a, map]")
	_, err = NewEngine(Options{ConfigPath: path})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestEngineValidateRecord(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Deduplication.KeyFields = []string{"email", "last_name"}
	engine, err := NewEngine(Options{Config: cfg})
	require.NoError(t, err)

	records, err := ParseRecords([]byte(contactsJSON))
	require.NoError(t, err)

	result := engine.ValidateRecord(context.Background(), records[1], records[:1])
	assert.Equal(t, "erp-9", result.RecordID)
	require.NotEmpty(t, result.Duplicates)
	assert.Equal(t, "crm-1", result.Duplicates[0].MatchedRecord.RecordID)
	assert.True(t, result.HasIssue(core.IssueDuplication))
	assert.NotEmpty(t, result.PIIFindings)
}

func TestRunBatch(t *testing.T) {
	path := writeFile(t, "dqe.yaml", `
deduplication:
  key_fields: [email, last_name]
`)
	records, err := ParseRecords([]byte(contactsJSON))
	require.NoError(t, err)

	result, err := RunBatch(context.Background(), path, records)
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, 2, result.UniqueCount)
	require.Len(t, result.Duplicates, 1)
	assert.NotEmpty(t, result.JobID)
	assert.Zero(t, result.Failed)
}

func TestRunBatchMissingConfig(t *testing.T) {
	_, err := RunBatch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.ErrorContains(t, err, "failed to load config")
}
