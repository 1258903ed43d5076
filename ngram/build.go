package ngram

import (
	"fmt"

	"github.com/kortschak/kmersig/codec"
	"github.com/kortschak/kmersig/kmer"
)

// BuildRowKeys extracts row's k-mers and packs each into an ngram key
// via bd, resetting bd first so occurrence ordinals start fresh at this
// row's boundary (spec §4.3: "the per-row map is discarded at row
// boundaries"). Keys are returned in extraction order. A canonical
// (Alphabet2) row is read with kmer.NewExtractor, a degenerate
// (Alphabet4) row with kmer.NewDegenerateExtractor, the same dispatch
// the frequency analyzer uses per row.
func BuildRowKeys(bd *Builder, row codec.Sequence, k int) ([]uint64, error) {
	bd.Reset()
	var ext kmer.Extractor
	var err error
	switch row.Alphabet {
	case codec.Alphabet2:
		ext, err = kmer.NewExtractor(row, k)
	case codec.Alphabet4:
		ext, err = kmer.NewDegenerateExtractor(row, k)
	default:
		return nil, fmt.Errorf("ngram: unsupported alphabet %v", row.Alphabet)
	}
	if err != nil {
		return nil, fmt.Errorf("ngram: build extractor: %w", err)
	}
	var keys []uint64
	for ext.Next() {
		keys = append(keys, bd.Key(ext.Kmer()))
	}
	return keys, nil
}
