// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// PartitionTable maps a global block number to the (partition index,
// local block number) that owns it, for datasets split across multiple
// partitions (spec §4.4: "For partitioned datasets, a global block
// number is mapped to (partition, local block) through a precomputed
// interval table"). It is adapted from the teacher's cmd/cull, which
// builds a biogo/store/interval.IntTree of genomic feature containment
// ranges and queries it with Get; here the tree holds one range per
// partition (its span of global block numbers) and a query finds which
// range contains a given block.
type PartitionTable struct {
	tree  interval.IntTree
	spans []partitionSpan
}

type partitionSpan struct {
	partition  int
	blockStart int // inclusive, global
	numBlocks  int
}

// NewPartitionTable builds a PartitionTable from blocksPerPartition, the
// number of blocks each partition contributes, in partition order.
func NewPartitionTable(blocksPerPartition []int) (*PartitionTable, error) {
	pt := &PartitionTable{spans: make([]partitionSpan, len(blocksPerPartition))}
	cum := 0
	for p, n := range blocksPerPartition {
		if n < 0 {
			return nil, fmt.Errorf("analysis: partition %d has negative block count %d", p, n)
		}
		pt.spans[p] = partitionSpan{partition: p, blockStart: cum, numBlocks: n}
		if n > 0 {
			iv := spanInterval{uid: uintptr(p), span: pt.spans[p]}
			if err := pt.tree.Insert(iv, true); err != nil {
				return nil, fmt.Errorf("analysis: build partition table: %w", err)
			}
		}
		cum += n
	}
	pt.tree.AdjustRanges()
	return pt, nil
}

// NumBlocks returns the total number of global blocks across every
// partition.
func (pt *PartitionTable) NumBlocks() int {
	n := 0
	for _, s := range pt.spans {
		n += s.numBlocks
	}
	return n
}

// Locate returns the partition index and local block number that owns
// global block number block.
func (pt *PartitionTable) Locate(block int) (partition, local int, err error) {
	hits := pt.tree.Get(queryPoint(block))
	if len(hits) == 0 {
		return 0, 0, fmt.Errorf("analysis: block %d not owned by any partition", block)
	}
	s := hits[0].(spanInterval).span
	return s.partition, block - s.blockStart, nil
}

// spanInterval is one partition's global block range, stored in the
// interval tree.
type spanInterval struct {
	uid  uintptr
	span partitionSpan
}

func (s spanInterval) ID() uintptr { return s.uid }
func (s spanInterval) Range() interval.IntRange {
	return interval.IntRange{Start: s.span.blockStart, End: s.span.blockStart + s.span.numBlocks}
}

// Overlap reports whether the stored range b (another spanInterval's
// range, supplied by the tree during traversal) contains this span's
// own range. Spans never overlap each other by construction, so this is
// only meaningful when called against a queryPoint's range during a
// Get, which is why queryPoint implements the symmetric check itself.
func (s spanInterval) Overlap(b interval.IntRange) bool {
	r := s.Range()
	return b.Start <= r.Start && r.End <= b.End
}

// queryPoint is a single global block number used to query the tree: it
// reports overlap with a stored spanInterval's range b when the point
// falls within [b.Start, b.End).
type queryPoint int

func (q queryPoint) ID() uintptr { return uintptr(q) }
func (q queryPoint) Range() interval.IntRange {
	return interval.IntRange{Start: int(q), End: int(q) + 1}
}
func (q queryPoint) Overlap(b interval.IntRange) bool {
	return b.Start <= int(q) && int(q) < b.End
}
