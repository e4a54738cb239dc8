package core

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two values 0-100 after normalization as the best of
// Ratio, PartialRatio, TokenSortRatio and TokenSetRatio. A non-empty input
// never matches an empty one, even when it normalizes to nothing.
func Similarity(a, b string) float64 {
	if (a == "") != (b == "") {
		return 0
	}
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	best := Ratio(na, nb)
	for _, score := range []float64{
		PartialRatio(na, nb),
		TokenSortRatio(na, nb),
		TokenSetRatio(na, nb),
	} {
		if score > best {
			best = score
		}
	}
	return best
}

// Ratio is 100 * (1 - editDistance / longerLength)
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// PartialRatio is the best Ratio of the shorter string against every
// equal-length window of the longer one
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		score := Ratio(s, string(long[i:i+len(short)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their tokens
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared tokens against each side's full token set
func TokenSetRatio(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)

	var inter, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if base != "" {
		if s := Ratio(base, withA); s > best {
			best = s
		}
		if s := Ratio(base, withB); s > best {
			best = s
		}
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
