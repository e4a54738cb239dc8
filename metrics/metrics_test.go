package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/dqe-go/core"
)

func TestCollectorCountsRecords(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveRecord(core.RecordResult{
		OverallScore: 72,
		Issues: []core.ValidationIssue{
			{Type: core.IssuePIIRisk, Severity: core.SeverityHigh},
			{Type: core.IssuePIIRisk, Severity: core.SeverityHigh},
			{Type: core.IssueDataQuality, Severity: core.SeverityLow},
		},
	}, core.OutcomeUnique)
	c.ObserveRecord(core.RecordResult{OverallScore: 40}, core.OutcomeDuplicate)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.records.WithLabelValues(core.OutcomeUnique)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.records.WithLabelValues(core.OutcomeDuplicate)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.issues.WithLabelValues("pii_risk", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.issues.WithLabelValues("data_quality", "low")))
}

func TestCollectorCountsSearchesAndCalls(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveSearch(core.StrategyPairwise)
	c.ObserveSearch(core.StrategyPairwise)
	c.ObserveSearch(core.StrategyIndexed)
	c.ObserveCall("classify_field", "ok", 20*time.Millisecond)
	c.ObserveCall("classify_field", "timeout", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.searches.WithLabelValues(string(core.StrategyPairwise))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues(string(core.StrategyIndexed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classifierCalls.WithLabelValues("classify_field", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.classifierTime))
}

func TestNewCollectorRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}
