package core

import "sync"

// PoolSnapshot is an immutable view of the unique pool at one moment
type PoolSnapshot struct {
	records []*Record
}

// Len returns the number of records in the snapshot
func (s PoolSnapshot) Len() int { return len(s.records) }

// UniquePool is the growing set of records confirmed not to duplicate an
// earlier record. Comparisons run against snapshots; admission is serialized
// and happens in ticket order so results match a sequential run.
type UniquePool struct {
	mu      sync.Mutex
	turn    *sync.Cond
	next    int
	records []*Record

	dedup          *Deduplicator
	index          *FuzzyIndex
	indexThreshold int
	maxDistance    float64
}

// NewUniquePool creates an empty pool using d for comparisons
func NewUniquePool(d *Deduplicator) *UniquePool {
	cfg := d.Config()
	threshold := cfg.IndexThreshold
	if threshold <= 0 {
		threshold = DefaultIndexThreshold
	}
	p := &UniquePool{
		dedup:          d,
		index:          NewFuzzyIndex(cfg.IndexMaxCandidates),
		indexThreshold: threshold,
		maxDistance:    cfg.IndexDistanceThreshold,
	}
	p.turn = sync.NewCond(&p.mu)
	return p
}

// Len returns the current pool size
func (p *UniquePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Snapshot captures the pool as it is now
func (p *UniquePool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolSnapshot{records: p.records[:len(p.records):len(p.records)]}
}

// FindDuplicates does the part of a search that can run before the
// record's admission turn: a pairwise comparison against a snapshot that is
// still below the index threshold. Larger snapshots return nil; they are
// searched through the index in Resolve.
func (p *UniquePool) FindDuplicates(candidate *Record, snap PoolSnapshot) []DuplicateCandidate {
	if snap.Len() >= p.indexThreshold {
		return nil
	}
	return p.dedup.compareAll(candidate, snap.records)
}

// strategyFor picks the search strategy for a pool of size n
func (p *UniquePool) strategyFor(n int) SearchStrategy {
	if n < p.indexThreshold {
		return StrategyPairwise
	}
	return StrategyIndexed
}

// searchIndex queries the index over the first limit pool members. Hits are
// kept only when their confidence reaches the fuzzy threshold with enough
// equal fields and no exact-match field differs. Callers hold p.mu.
func (p *UniquePool) searchIndex(candidate *Record, limit int) []DuplicateCandidate {
	cfg := p.dedup.Config()
	cm := candidate.FieldMap()
	var dups []DuplicateCandidate
	for _, hit := range p.index.Search(p.dedup.SearchText(candidate), p.maxDistance, limit) {
		confidence := (1 - hit.Score) * 100
		if confidence < cfg.FuzzyThreshold {
			continue
		}
		existing := p.records[hit.DocID]
		if _, vetoed := p.dedup.exactMismatch(cm, existing.FieldMap()); vetoed {
			continue
		}
		fields := p.dedup.matchedFields(candidate, existing)
		if len(fields) < minMatchingFields {
			continue
		}
		dups = append(dups, DuplicateCandidate{
			IsDuplicate:    true,
			Confidence:     confidence,
			MatchedRecord:  existing,
			MatchingFields: fields,
			Reason:         "Approximate match in record index",
		})
	}
	sortCandidates(dups)
	return dups
}

// Resolve admits the candidate at position ticket unless it duplicates a
// pool member. The strategy follows the pool size at the ticket's turn, so
// every record is searched exactly as a sequential run would search it:
// pairwise results for the snapshot (found) are completed with the records
// admitted since, and indexed searches cover the whole pool.
// Tickets must be resolved or released in order starting at 0.
func (p *UniquePool) Resolve(ticket int, candidate *Record, snap PoolSnapshot, found []DuplicateCandidate) ([]DuplicateCandidate, SearchStrategy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.await(ticket)
	defer p.advance()

	strategy := p.strategyFor(len(p.records))

	var dups []DuplicateCandidate
	if strategy == StrategyIndexed {
		p.dedup.stats.indexed.Add(1)
		dups = p.searchIndex(candidate, len(p.records))
	} else {
		p.dedup.stats.pairwise.Add(1)
		dups = found
		if delta := p.records[snap.Len():]; len(delta) > 0 {
			if extra := p.dedup.compareAll(candidate, delta); len(extra) > 0 {
				// stable sort keeps admission order among equal confidences
				dups = append(append([]DuplicateCandidate{}, found...), extra...)
				sortCandidates(dups)
			}
		}
	}
	if len(dups) > 0 {
		return dups, strategy, false
	}

	p.records = append(p.records, candidate)
	p.index.Add(p.dedup.SearchText(candidate))
	return nil, strategy, true
}

// Release gives up a ticket that was never resolved. It is a no-op for
// tickets already resolved.
func (p *UniquePool) Release(ticket int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ticket < p.next {
		return
	}
	p.await(ticket)
	p.advance()
}

func (p *UniquePool) await(ticket int) {
	for p.next < ticket {
		p.turn.Wait()
	}
}

func (p *UniquePool) advance() {
	p.next++
	p.turn.Broadcast()
}
