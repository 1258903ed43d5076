// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store implements the key/value marshaling used by kmersig's
// modernc.org/kv-backed stores: the per-worker spill stores built during
// frequency analysis (spec §4.4) and the persisted metadata/entries
// stores a completed analysis leaves behind (spec §6). It is adapted
// from the teacher's BLAST-hit-record key codec (internal/store/store.go
// in kortschak/ins), keeping the same "binary.BigEndian,
// length-prefixed strings, explicit Marshal/Unmarshal pair plus a
// kv.Options.Compare-shaped ordering function" shape.
package store

import (
	"bytes"
	"encoding/binary"
	"math"
)

var order = binary.BigEndian

// MarshalKmerKey returns the 8-byte big-endian encoding of a k-mer
// integer, used as the key in a spill store (spec §4.4: "{k-mer ->
// nrow}"). Big-endian encoding keeps byte-lexicographic comparison
// equal to numeric comparison, so CompareKmerKeys below is just
// bytes.Compare.
func MarshalKmerKey(kmer uint64) []byte {
	var b [8]byte
	order.PutUint64(b[:], kmer)
	return b[:]
}

// UnmarshalKmerKey is the mirror of MarshalKmerKey.
func UnmarshalKmerKey(data []byte) uint64 {
	return order.Uint64(data)
}

// CompareKmerKeys is a kv.Options.Compare function ordering spill-store
// and entries-store records by k-mer value ascending.
func CompareKmerKeys(x, y []byte) int {
	return bytes.Compare(x, y)
}

// MarshalNrow returns the 8-byte big-endian encoding of a row count.
func MarshalNrow(nrow int64) []byte {
	var b [8]byte
	order.PutUint64(b[:], uint64(nrow))
	return b[:]
}

// UnmarshalNrow is the mirror of MarshalNrow.
func UnmarshalNrow(data []byte) int64 {
	return int64(order.Uint64(data))
}

// MetadataKey identifies one high-frequency analysis run: the tuple
// (dataset, column, k) that is the metadata store's primary key (spec
// §6).
type MetadataKey struct {
	Dataset string
	Column  string
	K       int
}

// MarshalMetadataKey encodes k as length-prefixed dataset and column
// names followed by a big-endian k, the same length-prefixing style the
// teacher uses for accession strings in BlastRecordKey.
func MarshalMetadataKey(k MetadataKey) []byte {
	var buf bytes.Buffer
	var b [8]byte
	order.PutUint64(b[:], uint64(len(k.Dataset)))
	buf.Write(b[:])
	buf.WriteString(k.Dataset)
	order.PutUint64(b[:], uint64(len(k.Column)))
	buf.Write(b[:])
	buf.WriteString(k.Column)
	order.PutUint64(b[:], uint64(k.K))
	buf.Write(b[:])
	return buf.Bytes()
}

// UnmarshalMetadataKey is the mirror of MarshalMetadataKey.
func UnmarshalMetadataKey(data []byte) MetadataKey {
	const n64 = 8
	n := order.Uint64(data[:n64])
	data = data[n64:]
	dataset := string(data[:n])
	data = data[n:]
	n = order.Uint64(data[:n64])
	data = data[n64:]
	column := string(data[:n])
	data = data[n:]
	k := int(order.Uint64(data[:n64]))
	return MetadataKey{Dataset: dataset, Column: column, K: k}
}

// CompareMetadataKeys is a kv.Options.Compare function ordering the
// metadata store by dataset, then column, then k.
func CompareMetadataKeys(x, y []byte) int {
	rx := UnmarshalMetadataKey(x)
	ry := UnmarshalMetadataKey(y)
	switch {
	case rx.Dataset < ry.Dataset:
		return -1
	case rx.Dataset > ry.Dataset:
		return 1
	}
	switch {
	case rx.Column < ry.Column:
		return -1
	case rx.Column > ry.Column:
		return 1
	}
	switch {
	case rx.K < ry.K:
		return -1
	case rx.K > ry.K:
		return 1
	}
	return 0
}

// MetadataValue is the persisted analysis-configuration record: the
// remainder of the cache key (spec §4.5/§4.6) plus the analysis
// timestamp.
type MetadataValue struct {
	OccurrenceBits int
	MaxRate        float64
	MaxNrow        int64
	Timestamp      int64
}

// MarshalMetadataValue encodes v as fixed-width big-endian fields.
func MarshalMetadataValue(v MetadataValue) []byte {
	var buf bytes.Buffer
	var b [8]byte
	order.PutUint64(b[:], uint64(v.OccurrenceBits))
	buf.Write(b[:])
	order.PutUint64(b[:], math.Float64bits(v.MaxRate))
	buf.Write(b[:])
	order.PutUint64(b[:], uint64(v.MaxNrow))
	buf.Write(b[:])
	order.PutUint64(b[:], uint64(v.Timestamp))
	buf.Write(b[:])
	return buf.Bytes()
}

// UnmarshalMetadataValue is the mirror of MarshalMetadataValue.
func UnmarshalMetadataValue(data []byte) MetadataValue {
	const n64 = 8
	occBits := int(order.Uint64(data[:n64]))
	data = data[n64:]
	maxRate := math.Float64frombits(order.Uint64(data[:n64]))
	data = data[n64:]
	maxNrow := int64(order.Uint64(data[:n64]))
	data = data[n64:]
	ts := int64(order.Uint64(data[:n64]))
	return MetadataValue{OccurrenceBits: occBits, MaxRate: maxRate, MaxNrow: maxNrow, Timestamp: ts}
}
