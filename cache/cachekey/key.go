// Package cachekey defines the six-tuple that identifies a high-frequency
// k-mer set and governs both the local cache's (C5) and the shared
// cache's (C6) validity: (dataset-id, column-name, k, b, max_rate,
// max_nrow). Two caches with different keys are never interchangeable —
// that is enforced here once so both cache packages check it the same
// way (spec §3: "Two different (k, b) settings produce incomparable
// keys; this is enforced by the cache key").
package cachekey

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key is the cache key tuple from spec §4.5/§4.6.
type Key struct {
	Dataset        string
	Column         string
	K              int
	OccurrenceBits int
	MaxRate        float64
	MaxNrow        int64
}

// Equal reports whether k and other identify the same high-frequency set.
func (k Key) Equal(other Key) bool {
	return k == other
}

// Hash returns a stable 64-bit fingerprint of k, suitable for use as a
// shared-memory segment name or a local map key. It hashes the
// column name (spec §4.5 calls this "column-name-hash") together with
// the numeric fields.
func (k Key) Hash() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%g\x00%d", k.Dataset, k.Column, k.K, k.OccurrenceBits, k.MaxRate, k.MaxNrow)
	return h.Sum64()
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s(k=%d,b=%d,max_rate=%g,max_nrow=%d)", k.Dataset, k.Column, k.K, k.OccurrenceBits, k.MaxRate, k.MaxNrow)
}

// MismatchError names the offending parameter and its persisted value vs
// its current value, as spec §7 requires for configuration errors.
type MismatchError struct {
	Param     string
	Persisted interface{}
	Current   interface{}
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cache key mismatch: %s: persisted %v, current %v", e.Param, e.Persisted, e.Current)
}

// Diff returns a *MismatchError describing the first field that differs
// between persisted and current, or nil if they are Equal.
func Diff(persisted, current Key) *MismatchError {
	switch {
	case persisted.Dataset != current.Dataset:
		return &MismatchError{Param: "dataset", Persisted: persisted.Dataset, Current: current.Dataset}
	case persisted.Column != current.Column:
		return &MismatchError{Param: "column", Persisted: persisted.Column, Current: current.Column}
	case persisted.K != current.K:
		return &MismatchError{Param: "k", Persisted: persisted.K, Current: current.K}
	case persisted.OccurrenceBits != current.OccurrenceBits:
		return &MismatchError{Param: "occurrence_bits", Persisted: persisted.OccurrenceBits, Current: current.OccurrenceBits}
	case persisted.MaxRate != current.MaxRate:
		return &MismatchError{Param: "max_rate", Persisted: persisted.MaxRate, Current: current.MaxRate}
	case persisted.MaxNrow != current.MaxNrow:
		return &MismatchError{Param: "max_nrow", Persisted: persisted.MaxNrow, Current: current.MaxNrow}
	default:
		return nil
	}
}
