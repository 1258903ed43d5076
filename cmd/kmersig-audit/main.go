// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The kmersig-audit command allows the internal data stores generated
// during an analysis run to be inspected directly. There are three kinds
// of persisted modernc.org/kv stores in this module:
//   - spill-*.db   — per-worker {k-mer -> nrow} batched accumulation,
//                    left behind in the job's temporary directory only
//                    if the analysis process was killed before it could
//                    remove that directory.
//   - entries.db   — the persisted high-frequency set: {k-mer -> reason}.
//   - metadata.db  — one record per (dataset, column, k) analysis run.
//
// Output is a JSON stream on stdout, one record per line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/internal/store"
)

func main() {
	path := flag.String("db", "", "specify db file to audit (spill-*.db, entries.db, or metadata.db)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s -db <path/to/store.db> >out.jsonl

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	kind, compare := kindFor(*path)
	if compare == nil {
		log.Fatalf("kmersig-audit: %s is not a recognized store name", *path)
	}

	db, err := kv.Open(*path, &kv.Options{Compare: compare})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)
	it, err := db.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return
		}
		log.Fatal(err)
	}
	for {
		k, v, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatal(err)
		}
		var rec interface{}
		switch kind {
		case "spill":
			rec = kmerRecord{Kmer: store.UnmarshalKmerKey(k), Nrow: store.UnmarshalNrow(v)}
		case "entries":
			rec = kmerRecord{Kmer: store.UnmarshalKmerKey(k), Reason: string(v)}
		case "metadata":
			mk := store.UnmarshalMetadataKey(k)
			mv := store.UnmarshalMetadataValue(v)
			rec = metadataRecord{
				Dataset:        mk.Dataset,
				Column:         mk.Column,
				K:              mk.K,
				OccurrenceBits: mv.OccurrenceBits,
				MaxRate:        mv.MaxRate,
				MaxNrow:        mv.MaxNrow,
				Timestamp:      mv.Timestamp,
			}
		}
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("kmersig-audit: failed to write record: %v", err)
		}
	}
}

// kindFor classifies path by base name, returning the kv.Options.Compare
// function appropriate to its key layout, or nil if path is not a
// recognized store name.
func kindFor(path string) (kind string, compare func(x, y []byte) int) {
	base := filepath.Base(path)
	switch {
	case base == "entries.db":
		return "entries", store.CompareKmerKeys
	case base == "metadata.db":
		return "metadata", store.CompareMetadataKeys
	case strings.HasPrefix(base, "spill-") && strings.HasSuffix(base, ".db"):
		return "spill", store.CompareKmerKeys
	default:
		return "", nil
	}
}

type kmerRecord struct {
	Kmer   uint64 `json:"kmer"`
	Nrow   int64  `json:"nrow,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type metadataRecord struct {
	Dataset        string  `json:"dataset"`
	Column         string  `json:"column"`
	K              int     `json:"k"`
	OccurrenceBits int     `json:"occurrence_bits"`
	MaxRate        float64 `json:"max_rate"`
	MaxNrow        int64   `json:"max_nrow"`
	Timestamp      int64   `json:"analysis_timestamp"`
}
