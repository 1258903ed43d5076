package kmer

import (
	"github.com/kortschak/kmersig/codec"
)

// Extractor is a lazy, finite, non-restartable sequence of k-mer values,
// shaped like biogo's seqio.Scanner (Next()/current-value) so it
// composes directly with the rest of the read pipeline without an
// adapter: for sc.Next() { use(sc.Kmer()) }.
type Extractor interface {
	// Next advances to the next k-mer, returning false once exhausted.
	Next() bool
	// Kmer returns the current k-mer value. Valid only after a call to
	// Next that returned true.
	Kmer() uint64
}

// NewExtractor returns an Extractor over seq for k-mer length k. seq
// must have alphabet codec.Alphabet2; use NewDegenerateExtractor for
// codec.Alphabet4. For a sequence of N bases exactly max(0, N-k+1)
// k-mers are produced, in left-to-right order (spec §3, §4.2).
func NewExtractor(seq codec.Sequence, k int) (Extractor, error) {
	if seq.Alphabet != codec.Alphabet2 {
		return nil, errAlphabetMismatch(codec.Alphabet2, seq.Alphabet)
	}
	if err := CheckK(k); err != nil {
		return nil, err
	}
	return &plainExtractor{packed: seq.Packed, n: seq.Length, k: k, i: -1}, nil
}

type plainExtractor struct {
	packed []byte
	n, k   int
	i      int
	cur    uint64
}

func (e *plainExtractor) Next() bool {
	e.i++
	if e.i > e.n-e.k {
		return false
	}
	e.cur = readBits(e.packed, e.i*2, e.k*2)
	return true
}

func (e *plainExtractor) Kmer() uint64 { return e.cur }

func errAlphabetMismatch(want, got codec.Alphabet) error {
	return &alphabetMismatchError{want: want, got: got}
}

type alphabetMismatchError struct {
	want, got codec.Alphabet
}

func (e *alphabetMismatchError) Error() string {
	return "kmer: expected " + e.want.String() + ", got " + e.got.String()
}
