// Package ngram builds ngram keys: a k-mer value concatenated with its
// intra-row occurrence ordinal, packed into a fixed-width unsigned
// integer (spec §3, §4.3).
package ngram

import (
	"errors"
	"fmt"

	"github.com/kortschak/kmersig/kmer"
)

// MinOccurrenceBits and MaxOccurrenceBits bound the occurrence-ordinal
// bit width b (spec §6). DefaultOccurrenceBits is the spec's default.
const (
	MinOccurrenceBits     = 1
	MaxOccurrenceBits     = 16
	DefaultOccurrenceBits = 8
)

// ErrOccurrenceBitsOutOfRange is returned when b falls outside
// [MinOccurrenceBits, MaxOccurrenceBits].
var ErrOccurrenceBitsOutOfRange = errors.New("ngram: occurrence bit width out of range")

// CheckOccurrenceBits validates b against [MinOccurrenceBits, MaxOccurrenceBits].
func CheckOccurrenceBits(b int) error {
	if b < MinOccurrenceBits || b > MaxOccurrenceBits {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrOccurrenceBitsOutOfRange, b, MinOccurrenceBits, MaxOccurrenceBits)
	}
	return nil
}

// Width returns the storage width class for ngram keys built with k-mer
// length k and occurrence bit width b: total width 2k+b, classed per
// spec §3 (≤16 -> u16, ≤32 -> u32, ≤64 -> u64).
func Width(k, b int) kmer.Width {
	return kmer.WidthFor(2*k + b)
}

// Builder tracks per-row k-mer occurrence ordinals and packs ngram keys.
// A Builder is scoped to a single row; call Reset (or construct a new
// Builder) at each row boundary, per spec §4.3 ("the per-row map is
// discarded at row boundaries").
type Builder struct {
	b      uint
	max    uint32
	counts map[uint64]uint32
}

// NewBuilder returns a Builder with occurrence bit width b.
func NewBuilder(b int) (*Builder, error) {
	if err := CheckOccurrenceBits(b); err != nil {
		return nil, err
	}
	return &Builder{
		b:      uint(b),
		max:    uint32(1)<<uint(b) - 1,
		counts: make(map[uint64]uint32),
	}, nil
}

// Reset discards the current row's occurrence map, starting the next
// row's ordinals fresh at zero (spec §3: "identical k-mers in different
// rows each start from ordinal 0").
func (bd *Builder) Reset() {
	for k := range bd.counts {
		delete(bd.counts, k)
	}
}

// Key returns the ngram key for kmer's next occurrence in the current
// row: kmer<<b | ordinal, with the ordinal saturating at 2^b-1 rather
// than wrapping (spec §3, §9 Open Question: saturation, not modulo).
func (bd *Builder) Key(kmerValue uint64) uint64 {
	ord := bd.counts[kmerValue]
	next := ord
	if next < bd.max {
		next++
	}
	bd.counts[kmerValue] = next
	return kmerValue<<bd.b | uint64(ord)
}

// Strip returns the k-mer bits of an ngram key built with occurrence
// bit width b, discarding the occurrence ordinal. The high-frequency
// set holds bare k-mer integers (spec §9 Open Question), so
// score.FilterNgramKeys uses Strip to compare an ngram key against it.
func Strip(key uint64, b int) uint64 {
	return key >> uint(b)
}
