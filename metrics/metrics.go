package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SamuelRCrider/dqe-go/core"
	"github.com/SamuelRCrider/dqe-go/llm"
)

const namespace = "dqe"

// Collector exports engine and classifier instrumentation
type Collector struct {
	records         *prometheus.CounterVec
	scores          prometheus.Histogram
	searches        *prometheus.CounterVec
	issues          *prometheus.CounterVec
	classifierCalls *prometheus.CounterVec
	classifierTime  *prometheus.HistogramVec
}

var (
	_ core.Recorder = (*Collector)(nil)
	_ llm.Observer  = (*Collector)(nil)
)

// NewCollector creates the metrics and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Records processed, by outcome.",
		}, []string{"outcome"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_quality_score",
			Help:      "Overall quality score of processed records.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_searches_total",
			Help:      "Unique pool searches, by strategy.",
		}, []string{"strategy"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Validation issues, by type and severity.",
		}, []string{"type", "severity"}),
		classifierCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_calls_total",
			Help:      "External classifier calls, by capability and outcome.",
		}, []string{"capability", "outcome"}),
		classifierTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_call_duration_seconds",
			Help:      "External classifier call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"capability"}),
	}

	for _, m := range []prometheus.Collector{
		c.records, c.scores, c.searches, c.issues, c.classifierCalls, c.classifierTime,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRecord implements core.Recorder
func (c *Collector) ObserveRecord(result core.RecordResult, outcome string) {
	c.records.WithLabelValues(outcome).Inc()
	c.scores.Observe(result.OverallScore)
	for _, issue := range result.Issues {
		c.issues.WithLabelValues(string(issue.Type), string(issue.Severity)).Inc()
	}
}

// ObserveSearch implements core.Recorder
func (c *Collector) ObserveSearch(strategy core.SearchStrategy) {
	c.searches.WithLabelValues(string(strategy)).Inc()
}

// ObserveCall implements llm.Observer
func (c *Collector) ObserveCall(capability, outcome string, duration time.Duration) {
	c.classifierCalls.WithLabelValues(capability, outcome).Inc()
	c.classifierTime.WithLabelValues(capability).Observe(duration.Seconds())
}
