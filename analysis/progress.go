package analysis

// Progress carries cumulative Stage 1 progress, emitted at least once
// per batch commit across the fleet (spec §4.4 "Progress contract").
// It models the host's NOTICE channel, which is out of scope here;
// cmd/kmersigd wires a Progress callback to log.Printf.
type Progress struct {
	TotalRowsProcessed int64
	BatchesCommitted   int64
}
