package core

import (
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
)

// IndexHit is one approximate match; Score is the normalized edit distance (0 best, 1 worst)
type IndexHit struct {
	DocID int
	Score float64
}

// FuzzyIndex is an append-only approximate text index. Trigram overlap
// selects candidates, which are then scored by edit distance.
type FuzzyIndex struct {
	mu            sync.RWMutex
	docs          []string
	postings      map[string][]int
	maxCandidates int
}

// NewFuzzyIndex creates an index that scores at most maxCandidates documents per query
func NewFuzzyIndex(maxCandidates int) *FuzzyIndex {
	if maxCandidates <= 0 {
		maxCandidates = DefaultIndexMaxCandidates
	}
	return &FuzzyIndex{
		postings:      make(map[string][]int),
		maxCandidates: maxCandidates,
	}
}

// Add indexes text and returns its document id. Ids are assigned sequentially from 0.
func (x *FuzzyIndex) Add(text string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	id := len(x.docs)
	x.docs = append(x.docs, text)
	for gram := range trigrams(text) {
		x.postings[gram] = append(x.postings[gram], id)
	}
	return id
}

// Len returns the number of indexed documents
func (x *FuzzyIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search returns documents with id < limit whose distance to query is at
// most maxDistance, best first
func (x *FuzzyIndex) Search(query string, maxDistance float64, limit int) []IndexHit {
	if query == "" {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if limit > len(x.docs) || limit < 0 {
		limit = len(x.docs)
	}

	shared := make(map[int]int)
	for gram := range trigrams(query) {
		for _, id := range x.postings[gram] {
			if id < limit {
				shared[id]++
			}
		}
	}

	candidates := make([]int, 0, len(shared))
	for id := range shared {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if shared[a] != shared[b] {
			return shared[a] > shared[b]
		}
		return a < b
	})
	if len(candidates) > x.maxCandidates {
		candidates = candidates[:x.maxCandidates]
	}

	var hits []IndexHit
	for _, id := range candidates {
		score := editScore(query, x.docs[id])
		if score <= maxDistance {
			hits = append(hits, IndexHit{DocID: id, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score < hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	return hits
}

// editScore is the edit distance divided by the longer length
func editScore(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

func trigrams(s string) map[string]struct{} {
	runes := []rune("  " + s + " ")
	grams := make(map[string]struct{}, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}
