package core

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

const (
	keyFieldWeight   = 1.0
	otherFieldWeight = 0.5

	// minMatchingFields is the number of matching fields a duplicate needs
	minMatchingFields = 2
)

// SearchStrategy names how a candidate was compared against the unique pool
type SearchStrategy string

const (
	StrategyPairwise SearchStrategy = "pairwise"
	StrategyIndexed  SearchStrategy = "indexed"
)

// DedupStats counts deduplication work
type DedupStats struct {
	PairwiseSearches int64 `json:"pairwiseSearches"`
	IndexedSearches  int64 `json:"indexedSearches"`
	Comparisons      int64 `json:"comparisons"`
}

// Deduplicator compares records field by field
type Deduplicator struct {
	cfg   DeduplicationConfig
	keys  map[string]bool
	skip  map[string]bool
	stats struct {
		pairwise    atomic.Int64
		indexed     atomic.Int64
		comparisons atomic.Int64
	}
}

// NewDeduplicator creates a deduplicator for cfg
func NewDeduplicator(cfg DeduplicationConfig) *Deduplicator {
	return &Deduplicator{
		cfg:  cfg,
		keys: toSet(cfg.KeyFields),
		skip: toSet(cfg.SkipFields),
	}
}

// Config returns the deduplication settings
func (d *Deduplicator) Config() DeduplicationConfig { return d.cfg }

// Stats returns a copy of the work counters
func (d *Deduplicator) Stats() DedupStats {
	return DedupStats{
		PairwiseSearches: d.stats.pairwise.Load(),
		IndexedSearches:  d.stats.indexed.Load(),
		Comparisons:      d.stats.comparisons.Load(),
	}
}

// Compare decides whether candidate duplicates existing
func (d *Deduplicator) Compare(candidate, existing *Record) DuplicateCandidate {
	d.stats.comparisons.Add(1)

	result := DuplicateCandidate{
		MatchedRecord:  existing,
		MatchingFields: []string{},
	}

	cm := candidate.FieldMap()
	em := existing.FieldMap()

	if field, ok := d.exactMismatch(cm, em); ok {
		result.Reason = fmt.Sprintf("Exact match field '%s' differs", field)
		return result
	}

	var weightedSum, weightedCount float64
	covered := make(map[string]bool)

	accumulate := func(name string, weight float64) {
		a, b, ok := comparable(cm, em, name)
		if !ok || d.skip[name] {
			return
		}
		covered[name] = true
		score := Similarity(a.Text(), b.Text())
		weightedSum += score * weight
		weightedCount += weight
		if score >= d.cfg.FuzzyThreshold {
			result.MatchingFields = append(result.MatchingFields, name)
		}
	}

	for _, name := range d.cfg.KeyFields {
		if !covered[name] {
			accumulate(name, keyFieldWeight)
		}
	}
	for _, f := range candidate.Fields {
		if !covered[f.Name] && !d.keys[f.Name] {
			accumulate(f.Name, otherFieldWeight)
		}
	}

	if weightedCount > 0 {
		result.Confidence = weightedSum / weightedCount
	}
	result.IsDuplicate = result.Confidence >= d.cfg.FuzzyThreshold &&
		len(result.MatchingFields) >= minMatchingFields

	switch {
	case weightedCount == 0:
		result.Reason = "No comparable fields"
	case result.IsDuplicate:
		result.Reason = fmt.Sprintf("%d fields match (%s) with %.1f%% confidence",
			len(result.MatchingFields), strings.Join(result.MatchingFields, ", "), result.Confidence)
	case len(result.MatchingFields) < minMatchingFields:
		result.Reason = fmt.Sprintf("Only %d matching field(s)", len(result.MatchingFields))
	default:
		result.Reason = fmt.Sprintf("Confidence %.1f%% is below threshold %.1f%%",
			result.Confidence, d.cfg.FuzzyThreshold)
	}

	return result
}

// DetectDuplicates compares candidate against every pool member and returns
// the duplicates, highest confidence first
func (d *Deduplicator) DetectDuplicates(candidate *Record, pool []*Record) []DuplicateCandidate {
	d.stats.pairwise.Add(1)
	return d.compareAll(candidate, pool)
}

func (d *Deduplicator) compareAll(candidate *Record, pool []*Record) []DuplicateCandidate {
	var dups []DuplicateCandidate
	for _, existing := range pool {
		if c := d.Compare(candidate, existing); c.IsDuplicate {
			dups = append(dups, c)
		}
	}
	sortCandidates(dups)
	return dups
}

// exactMismatch returns the first exact-match field present in both records
// whose normalized values differ
func (d *Deduplicator) exactMismatch(cm, em map[string]Value) (string, bool) {
	for _, name := range d.cfg.ExactMatchFields {
		a, b, ok := comparable(cm, em, name)
		if !ok {
			continue
		}
		if NormalizeValue(a) != NormalizeValue(b) {
			return name, true
		}
	}
	return "", false
}

// SearchText builds the indexed representation of a record: sorted
// field:normalizedValue pairs with skip fields and blanks left out
func (d *Deduplicator) SearchText(r *Record) string {
	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if d.skip[f.Name] || f.Value.IsBlank() {
			continue
		}
		parts = append(parts, f.Name+":"+NormalizeValue(f.Value))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// matchedFields lists shared fields whose normalized values are equal
func (d *Deduplicator) matchedFields(candidate, existing *Record) []string {
	em := existing.FieldMap()
	cm := candidate.FieldMap()
	fields := []string{}
	for _, f := range candidate.Fields {
		if d.skip[f.Name] {
			continue
		}
		a, b, ok := comparable(cm, em, f.Name)
		if ok && NormalizeValue(a) == NormalizeValue(b) {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// comparable returns both values when the field is present and non-blank on both sides
func comparable(a, b map[string]Value, name string) (Value, Value, bool) {
	va, ok := a[name]
	if !ok || va.IsBlank() {
		return Value{}, Value{}, false
	}
	vb, ok := b[name]
	if !ok || vb.IsBlank() {
		return Value{}, Value{}, false
	}
	return va, vb, true
}

func sortCandidates(c []DuplicateCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		return c[i].Confidence > c[j].Confidence
	})
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
