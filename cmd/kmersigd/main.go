// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The kmersigd command drives the analyze -> index -> query pipeline
// over a FASTA-backed dataset: "analyze" runs the parallel high-frequency
// k-mer analyzer (C4) and persists its result; "index" runs the build
// path (spec §1: rows -> C1 -> C2 -> C3 -> C5/C6 lookup -> surviving
// keys emitted to the inverted index), reporting per row the ngram keys
// that survive the C7 build-time filter; "query" extracts a query
// sequence's ngram keys the same way (spec §1's query path shares
// C1/C2/C3 with the build path), filters them against the persisted
// high-frequency set (C7), and reports the adjusted score threshold a
// row would need to qualify. A hidden re-exec mode (workerproc.WorkerFlag)
// lets analyze run its Stage 1 block scan as real OS worker processes
// rather than goroutines, per spec §5.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/analysis"
	"github.com/kortschak/kmersig/cache/cachekey"
	"github.com/kortschak/kmersig/cache/local"
	"github.com/kortschak/kmersig/codec"
	"github.com/kortschak/kmersig/ingest"
	"github.com/kortschak/kmersig/internal/store"
	"github.com/kortschak/kmersig/kmer"
	"github.com/kortschak/kmersig/ngram"
	"github.com/kortschak/kmersig/score"
	"github.com/kortschak/kmersig/workerproc"
)

func cacheKey(dataset, column string, k, occBits int, maxRate float64, maxNrow int64) cachekey.Key {
	return cachekey.Key{
		Dataset: dataset, Column: column, K: k,
		OccurrenceBits: occBits, MaxRate: maxRate, MaxNrow: maxNrow,
	}
}

func main() {
	if workerproc.IsWorker(os.Args[1:]) {
		runWorker()
		return
	}

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s analyze -fasta <seqs.fa> -store <dir> -dataset <name> -column <name> -k <n> [options]
  $ %[1]s index   -fasta <seqs.fa> -store <dir> -dataset <name> -column <name> -k <n> [options]
  $ %[1]s query   -store <dir> -dataset <name> -column <name> -k <n> -query <seq> [options]

`, os.Args[0])
		flag.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openStores(dir string) (meta, entries *kv.DB, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("kmersigd: create store dir: %w", err)
	}
	meta, err = openOrCreate(filepath.Join(dir, "metadata.db"), store.CompareMetadataKeys)
	if err != nil {
		return nil, nil, err
	}
	entries, err = openOrCreate(filepath.Join(dir, "entries.db"), store.CompareKmerKeys)
	if err != nil {
		meta.Close()
		return nil, nil, err
	}
	return meta, entries, nil
}

func openOrCreate(path string, compare func(x, y []byte) int) (*kv.DB, error) {
	opts := &kv.Options{Compare: compare}
	if _, err := os.Stat(path); err == nil {
		return kv.Open(path, opts)
	}
	return kv.Create(path, opts)
}

// runAnalyze implements the "analyze" subcommand.
func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fastaPath := fs.String("fasta", "", "specify input FASTA file (required)")
	storeDir := fs.String("store", "", "specify the metadata/entries store directory (required)")
	dataset := fs.String("dataset", "", "specify dataset id (required)")
	column := fs.String("column", "", "specify column name (required)")
	k := fs.Int("k", 16, "specify k-mer length")
	occBits := fs.Int("b", analysis.DefaultOccurrenceBits, "specify occurrence-ordinal bit width")
	maxRate := fs.Float64("max-rate", 0.1, "specify maximum row-frequency rate")
	maxNrow := fs.Int64("max-nrow", 0, "specify maximum qualifying row count (0 = no cap)")
	blockSize := fs.Int("block-size", ingest.DefaultBlockSize, "specify FASTA records per analysis block")
	batchSize := fs.Int("batch-size", analysis.DefaultBatchSize, "specify rows per spill-store flush")
	workers := fs.Int("workers", 0, "specify worker count (<=0 is use all cores)")
	procs := fs.Bool("procs", false, "specify to run Stage 1 as real OS worker processes instead of goroutines")
	tmp := fs.String("tmp", "", "specify temp dir (default os.TempDir())")
	fs.Parse(args)

	if *fastaPath == "" || *storeDir == "" || *dataset == "" || *column == "" {
		fs.Usage()
		os.Exit(2)
	}

	log.Println(os.Args)

	params := analysis.Params{
		Dataset: *dataset, Column: *column, K: *k, OccurrenceBits: *occBits,
		MaxRate: *maxRate, MaxNrow: *maxNrow, BatchSize: *batchSize, Workers: *workers,
	}
	if err := params.Validate(); err != nil {
		log.Fatal(err)
	}

	meta, entries, err := openStores(*storeDir)
	if err != nil {
		log.Fatal(err)
	}
	defer meta.Close()
	defer entries.Close()

	source, err := ingest.Open(*fastaPath, *blockSize)
	if err != nil {
		log.Fatal(err)
	}
	defer source.Close()

	var result analysis.Result
	if *procs {
		result, err = analyzeWithProcesses(params, *fastaPath, *blockSize, *tmp, meta, entries)
	} else {
		coord := &analysis.Coordinator{
			Params: params, Source: source, TempDir: *tmp,
			MetadataStore: meta, EntriesStore: entries,
			Progress: func(p analysis.Progress) {
				log.Printf("progress: rows=%d batches=%d", p.TotalRowsProcessed, p.BatchesCommitted)
			},
		}
		result, err = coord.Run(context.Background())
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("analysis complete: threshold=%d persisted=%d", result.Threshold, result.Persisted)
}

// workerTask is the payload one re-exec'd worker process reads from its
// inherited pipe: enough for it to independently rebuild a RowSource,
// a shared cursor, and a spill store without sharing any memory with
// the parent (spec §5: "OS-level parallel processes, not cooperative
// tasks").
type workerTask struct {
	FastaPath  string
	BlockSize  int
	K          int
	BatchSize  int
	SpillDir   string
	SpillName  string
	CursorPath string
	NumBlocks  int
}

// analyzeWithProcesses runs Stage 1 as real OS worker processes via
// workerproc, then feeds the resulting spill stores through the same
// Stage 2/3 exported by analysis.Coordinator (MergeSpills, Persist) that
// Run uses internally. It cannot go through analysis.Launcher, because
// a re-exec'd child cannot execute the closure Launcher.Launch would
// otherwise hand it (see analysis/launcher.go).
func analyzeWithProcesses(params analysis.Params, fastaPath string, blockSize int, tmpBase string, meta, entries *kv.DB) (analysis.Result, error) {
	base := tmpBase
	if base == "" {
		base = os.TempDir()
	}

	lock, err := analysis.LockDataset(filepath.Join(base, analysis.DatasetLockName(params.Dataset, params.Column)))
	if err != nil {
		return analysis.Result{}, err
	}
	defer lock.Unlock()

	jobDir := filepath.Join(base, fmt.Sprintf("kmersig_%d_%d", os.Getpid(), time.Now().UnixNano()))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return analysis.Result{}, fmt.Errorf("kmersigd: create job dir: %w", err)
	}
	defer os.RemoveAll(jobDir)

	probe, err := ingest.Open(fastaPath, blockSize)
	if err != nil {
		return analysis.Result{}, err
	}
	totalRows := probe.TotalRows()
	numBlocks := probe.NumBlocks()
	probe.Close()
	if totalRows == 0 {
		return analysis.Result{}, analysis.ErrEmptyDataset
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numBlocks {
		workers = numBlocks
	}
	if workers < 1 {
		workers = 1
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = analysis.DefaultBatchSize
	}

	cursorPath := filepath.Join(jobDir, "cursor")
	cursor, err := analysis.NewSharedCursor(cursorPath, numBlocks)
	if err != nil {
		return analysis.Result{}, err
	}
	defer cursor.Close()

	err = workerproc.RunAll(context.Background(), workers, func(i int) (interface{}, error) {
		return workerTask{
			FastaPath:  fastaPath,
			BlockSize:  blockSize,
			K:          params.K,
			BatchSize:  batchSize,
			SpillDir:   jobDir,
			SpillName:  fmt.Sprintf("spill-%d.db", i),
			CursorPath: cursorPath,
			NumBlocks:  numBlocks,
		}, nil
	})
	if err != nil {
		return analysis.Result{}, fmt.Errorf("%w: %v", analysis.ErrWorkerFailed, err)
	}

	spills := make([]*analysis.Spill, workers)
	for i := range spills {
		s, err := analysis.OpenSpill(filepath.Join(jobDir, fmt.Sprintf("spill-%d.db", i)), batchSize)
		if err != nil {
			return analysis.Result{}, err
		}
		spills[i] = s
	}
	merged, err := analysis.MergeSpills(spills)
	if err != nil {
		return analysis.Result{}, err
	}
	defer merged.Close()

	threshold := params.Threshold(totalRows)
	coord := &analysis.Coordinator{Params: params, MetadataStore: meta, EntriesStore: entries}
	persisted, err := coord.Persist(merged, threshold)
	if err != nil {
		return analysis.Result{}, err
	}
	return analysis.Result{Threshold: threshold, Persisted: persisted}, nil
}

// runWorker is the re-exec'd worker process entry point, dispatched
// when workerproc.IsWorker(os.Args[1:]) is true. It reads its task from
// fd 3 (the pipe workerproc.Spawn.BuildCommand arranges as ExtraFiles[0])
// and runs exactly one Stage 1 WorkerLoop against the shared cursor.
func runWorker() {
	var task workerTask
	if err := workerproc.ReadTask(os.NewFile(3, "task"), &task); err != nil {
		log.Fatal(err)
	}

	source, err := ingest.Open(task.FastaPath, task.BlockSize)
	if err != nil {
		log.Fatal(err)
	}
	defer source.Close()

	cursor, err := analysis.OpenSharedCursor(task.CursorPath, task.NumBlocks)
	if err != nil {
		log.Fatal(err)
	}
	defer cursor.Close()

	spill, err := analysis.CreateSpill(task.SpillDir, task.SpillName, task.BatchSize)
	if err != nil {
		log.Fatal(err)
	}
	defer spill.Close()

	if err := analysis.WorkerLoop(source, task.K, task.BatchSize, cursor, spill, nil); err != nil {
		log.Fatal(err)
	}
}

// runIndex implements the "index" subcommand: the build path (spec §1,
// §4.3, §4.7) that every row in the FASTA dataset goes through before
// its surviving keys would be handed to a host's inverted-index adder.
// For each row: C1 is already done by FastaSource.Block's encode-on-read, C2
// extracts k-mers, C3 (ngram.BuildRowKeys) packs them into ngram keys
// scoped to that row, and the C7 build-time filter
// (score.FilterNgramKeys) drops every key whose k-mer part is in the
// persisted high-frequency set. This module has no host inverted index
// to hand the surviving keys to, so it reports them as a JSON stream on
// stdout, one record per row, in the style of cmd/kmersig-audit.
func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	fastaPath := fs.String("fasta", "", "specify input FASTA file (required)")
	storeDir := fs.String("store", "", "specify the metadata/entries store directory (required)")
	dataset := fs.String("dataset", "", "specify dataset id (required)")
	column := fs.String("column", "", "specify column name (required)")
	k := fs.Int("k", 16, "specify k-mer length")
	occBits := fs.Int("b", analysis.DefaultOccurrenceBits, "specify occurrence-ordinal bit width")
	maxRate := fs.Float64("max-rate", 0.1, "specify maximum row-frequency rate")
	maxNrow := fs.Int64("max-nrow", 0, "specify maximum qualifying row count (0 = no cap)")
	blockSize := fs.Int("block-size", ingest.DefaultBlockSize, "specify FASTA records per block")
	fs.Parse(args)

	if *fastaPath == "" || *storeDir == "" || *dataset == "" || *column == "" {
		fs.Usage()
		os.Exit(2)
	}

	meta, entries, err := openStores(*storeDir)
	if err != nil {
		log.Fatal(err)
	}
	defer meta.Close()
	defer entries.Close()

	key := cacheKey(*dataset, *column, *k, *occBits, *maxRate, *maxNrow)
	cache, err := local.New(key, 0)
	if err != nil {
		log.Fatal(err)
	}
	if err := cache.Load(meta, entries, local.DefaultLoadBatch); err != nil {
		log.Fatal(err)
	}

	source, err := ingest.Open(*fastaPath, *blockSize)
	if err != nil {
		log.Fatal(err)
	}
	defer source.Close()

	bd, err := ngram.NewBuilder(*occBits)
	if err != nil {
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	for i := 0; i < source.NumBlocks(); i++ {
		rows, err := source.Block(i)
		if err != nil {
			log.Fatal(err)
		}
		names := source.Names(i)
		for j, row := range rows {
			keys, err := ngram.BuildRowKeys(bd, row, *k)
			if err != nil {
				log.Fatal(err)
			}
			kept := score.FilterNgramKeys(cache, keys, *occBits)
			if err := enc.Encode(struct {
				Row         string   `json:"row"`
				TotalKeys   int      `json:"total_keys"`
				EmittedKeys []uint64 `json:"emitted_keys"`
			}{Row: names[j], TotalKeys: len(keys), EmittedKeys: kept}); err != nil {
				log.Fatalf("kmersigd: failed to write record: %v", err)
			}
		}
	}
}

// runQuery implements the "query" subcommand: extract a query
// sequence's ngram keys, filter the high-frequency ones out (C7
// build-time rule, applied identically on the query path per spec §1),
// and report the adjusted score threshold the remaining keys imply.
func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	storeDir := fs.String("store", "", "specify the metadata/entries store directory (required)")
	dataset := fs.String("dataset", "", "specify dataset id (required)")
	column := fs.String("column", "", "specify column name (required)")
	k := fs.Int("k", 16, "specify k-mer length")
	occBits := fs.Int("b", analysis.DefaultOccurrenceBits, "specify occurrence-ordinal bit width")
	maxRate := fs.Float64("max-rate", 0.1, "specify maximum row-frequency rate")
	maxNrow := fs.Int64("max-nrow", 0, "specify maximum qualifying row count (0 = no cap)")
	query := fs.String("query", "", "specify query sequence (required)")
	floor := fs.Int("floor", 1, "specify absolute score-threshold floor")
	rate := fs.Float64("rate", 0.1, "specify relative score-threshold rate")
	fs.Parse(args)

	if *storeDir == "" || *dataset == "" || *column == "" || *query == "" {
		fs.Usage()
		os.Exit(2)
	}

	meta, entries, err := openStores(*storeDir)
	if err != nil {
		log.Fatal(err)
	}
	defer meta.Close()
	defer entries.Close()

	key := cacheKey(*dataset, *column, *k, *occBits, *maxRate, *maxNrow)
	cache, err := local.New(key, 0)
	if err != nil {
		log.Fatal(err)
	}
	if err := cache.Load(meta, entries, local.DefaultLoadBatch); err != nil {
		log.Fatal(err)
	}

	keys, err := extractQueryKeys(*query, *k, *occBits)
	if err != nil {
		log.Fatal(err)
	}

	filtered := score.FilterNgramKeys(cache, keys, *occBits)
	highHits := len(keys) - len(filtered)

	params := score.Params{AbsoluteFloor: *floor, RelativeRate: *rate}
	base := params.BaseThreshold(len(keys))
	adjusted := score.AdjustedThreshold(base, highHits)

	enc := json.NewEncoder(os.Stdout)
	enc.Encode(struct {
		TotalKeys    int `json:"total_keys"`
		FilteredKeys int `json:"filtered_keys"`
		HighFreqHits int `json:"high_freq_hits"`
		BaseThreshold int `json:"base_threshold"`
		AdjustedThreshold int `json:"adjusted_threshold"`
	}{
		TotalKeys: len(keys), FilteredKeys: len(filtered), HighFreqHits: highHits,
		BaseThreshold: base, AdjustedThreshold: adjusted,
	})
}

// extractQueryKeys encodes query and runs it through the same C2/C3
// steps the build path uses (kmer extraction, then ngram.BuildRowKeys to
// pack occurrence-scoped ngram keys), treating the whole query as a
// single row (spec §1: "Query path: query sequence -> C1/C2/C3 -> C5
// hit count").
func extractQueryKeys(query string, k, occBits int) ([]uint64, error) {
	seq, err := codec.Encode(codec.Alphabet4, []byte(query))
	if err != nil {
		return nil, err
	}
	if err := kmer.CheckQueryLength(seq.Length); err != nil {
		return nil, err
	}
	bd, err := ngram.NewBuilder(occBits)
	if err != nil {
		return nil, err
	}
	return ngram.BuildRowKeys(bd, seq, k)
}
