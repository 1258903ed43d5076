package kmer

import (
	"github.com/kortschak/kmersig/codec"
)

// NewDegenerateExtractor returns an Extractor over seq (alphabet-4) for
// k-mer length k. At each window, the IUPAC codes are expanded to their
// concrete alphabet-2 k-mers; if the product of per-position
// degeneracies exceeds MaxDegeneracy the window is skipped entirely (no
// k-mers emitted for it), otherwise all concrete k-mers are emitted in
// ascending numeric order (equivalently, lexicographic on their bit
// representation), per spec §4.2.
func NewDegenerateExtractor(seq codec.Sequence, k int) (Extractor, error) {
	if seq.Alphabet != codec.Alphabet4 {
		return nil, errAlphabetMismatch(codec.Alphabet4, seq.Alphabet)
	}
	if err := CheckK(k); err != nil {
		return nil, err
	}
	return &degenerateExtractor{packed: seq.Packed, n: seq.Length, k: k, i: -1}, nil
}

type degenerateExtractor struct {
	packed []byte
	n, k   int
	i      int
	buf    []uint64
	pos    int
	cur    uint64
}

func (e *degenerateExtractor) Next() bool {
	for e.pos >= len(e.buf) {
		e.i++
		if e.i > e.n-e.k {
			return false
		}
		e.buf = expandWindow(e.packed, e.i, e.k)
		e.pos = 0
	}
	e.cur = e.buf[e.pos]
	e.pos++
	return true
}

func (e *degenerateExtractor) Kmer() uint64 { return e.cur }

// expandWindow decodes the k IUPAC codes starting at base position start
// and returns the concrete alphabet-2 k-mers they represent, in ascending
// order, or nil if the product of degeneracies exceeds MaxDegeneracy.
func expandWindow(packed []byte, start, k int) []uint64 {
	bases := make([][]uint8, k)
	product := 1
	for j := 0; j < k; j++ {
		code := uint8(readBits(packed, (start+j)*4, 4))
		b := codec.Bases(code)
		if len(b) == 0 {
			// A zero code never arises from a valid encode, but guard
			// against garbage input rather than dividing by zero below.
			return nil
		}
		bases[j] = b
		product *= len(b)
		if product > MaxDegeneracy {
			return nil
		}
	}
	out := make([]uint64, 0, product)
	var rec func(pos int, acc uint64)
	rec = func(pos int, acc uint64) {
		if pos == k {
			out = append(out, acc)
			return
		}
		for _, b := range bases[pos] {
			rec(pos+1, acc<<2|uint64(b))
		}
	}
	rec(0, 0)
	return out
}
