package analysis

import "github.com/kortschak/kmersig/codec"

// RowSource is the host-supplied block-level iterator over a column of
// bit-packed sequences (spec §1: "a block-level iterator over a column
// of bit-packed values"). It stands in for the host database engine's
// table storage, which is out of scope; cmd/kmersigd's FASTA-backed
// driver and analysis's own tests both implement it directly rather
// than through an adapter.
type RowSource interface {
	// TotalRows returns the dataset's total row count, used to compute
	// the analysis threshold (spec §4.4).
	TotalRows() int64

	// NumBlocks returns the number of fixed-size blocks the dataset is
	// divided into, the unit of Stage 1 work assignment.
	NumBlocks() int

	// Block returns the sequences in block i, in row order, where i is
	// a block number in [0, NumBlocks()) as handed out by the block
	// cursor. The Coordinator passes it through unchanged; a
	// PartitionedSource resolves it to a partition and local block via
	// its PartitionTable.
	Block(i int) ([]codec.Sequence, error)
}

// PartitionedSource groups one RowSource per partition with a
// PartitionTable mapping global block numbers onto them, for datasets
// split across multiple partitions (spec §4.4).
type PartitionedSource struct {
	Partitions []RowSource
	Table      *PartitionTable
}

// NewPartitionedSource builds a PartitionedSource, deriving the
// PartitionTable from each partition's NumBlocks.
func NewPartitionedSource(partitions []RowSource) (*PartitionedSource, error) {
	blocks := make([]int, len(partitions))
	for i, p := range partitions {
		blocks[i] = p.NumBlocks()
	}
	table, err := NewPartitionTable(blocks)
	if err != nil {
		return nil, err
	}
	return &PartitionedSource{Partitions: partitions, Table: table}, nil
}

func (s *PartitionedSource) NumBlocks() int { return s.Table.NumBlocks() }

func (s *PartitionedSource) TotalRows() int64 {
	var n int64
	for _, p := range s.Partitions {
		n += p.TotalRows()
	}
	return n
}

// Block resolves global block number i to its owning partition's local
// block and delegates to it.
func (s *PartitionedSource) Block(i int) ([]codec.Sequence, error) {
	partition, local, err := s.Table.Locate(i)
	if err != nil {
		return nil, err
	}
	return s.Partitions[partition].Block(local)
}
