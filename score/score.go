// Package score implements C7: the build-time filter that drops
// high-frequency k-mer keys before they reach the inverted index, and
// the query-time scorer that adjusts the match threshold down by the
// number of a query's own keys that were dropped for the same reason
// (spec §4.7).
package score

import (
	"math"

	"github.com/kortschak/kmersig/ngram"
)

// Membership reports whether kmer is in the high-frequency set that
// governs filtering and scoring for a query. Both *local.Cache and
// *shared.Segment satisfy this with their Contains/Lookup methods
// under the obvious adapter; score itself stays independent of either
// cache implementation.
type Membership interface {
	Contains(kmer uint64) bool
}

// Filter returns the subset of keys that are NOT members of high,
// matching spec §4.7's build-time rule: "drop fingerprints present in
// the cache before emitting." The returned slice shares no backing
// array with keys. It operates on raw k-mer values; for ngram keys
// (k-mer plus occurrence ordinal, spec §4.3) use FilterNgramKeys.
func Filter(high Membership, keys []uint64) []uint64 {
	kept := make([]uint64, 0, len(keys))
	for _, k := range keys {
		if !high.Contains(k) {
			kept = append(kept, k)
		}
	}
	return kept
}

// FilterNgramKeys is Filter for ngram keys built with occurrence bit
// width b: membership is tested against each key's k-mer part
// (ngram.Strip), not the whole key, since the high-frequency cache
// holds k-mer bit patterns with the occurrence ordinal stripped (spec
// §4.7: "drops every key whose k-mer part is present in the
// high-frequency cache"). This is the build-time filter (C7, applied to
// a row's C2+C3 key array) and the query-time equivalent (spec §4.7:
// query path routes through C1/C2/C3 the same as the build path).
func FilterNgramKeys(high Membership, keys []uint64, b int) []uint64 {
	kept := make([]uint64, 0, len(keys))
	for _, k := range keys {
		if !high.Contains(ngram.Strip(k, b)) {
			kept = append(kept, k)
		}
	}
	return kept
}

// Params configures the base query score threshold (spec §4.7): "Base
// score threshold = max(absolute_floor, ceil(relative_rate *
// total_query_keys))".
type Params struct {
	AbsoluteFloor int
	RelativeRate  float64
}

// BaseThreshold computes the unadjusted score threshold for a query
// that extracted totalQueryKeys keys.
func (p Params) BaseThreshold(totalQueryKeys int) int {
	relative := int(math.Ceil(p.RelativeRate * float64(totalQueryKeys)))
	if p.AbsoluteFloor > relative {
		return p.AbsoluteFloor
	}
	return relative
}

// AdjustedThreshold returns max(0, base - highFreqHits), the slackened
// threshold spec §4.7 defines so that query keys dropped at build time
// (because they are themselves high-frequency) cannot unjustly cause a
// row to be rejected. Test fixture: base=50, highFreqHits=3 yields 47.
func AdjustedThreshold(base, highFreqHits int) int {
	adjusted := base - highFreqHits
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// RowScore counts how many of a query's filtered keys fire against
// row's inverted-index membership, as reported by hit. A row qualifies
// iff the returned score is >= the adjusted threshold (spec §4.7: "A
// row's score = count of query keys for which the row's inverted-index
// entry fires").
func RowScore(filteredQueryKeys []uint64, hit func(kmer uint64) bool) int {
	n := 0
	for _, k := range filteredQueryKeys {
		if hit(k) {
			n++
		}
	}
	return n
}
