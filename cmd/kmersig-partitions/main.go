// The kmersig-partitions command maps global block numbers to the
// (partition, local block) pair that owns them, for datasets split
// across multiple partitions (spec §4.4). It reads a comma-separated
// list of per-partition block counts, then one global block number per
// line from stdin, and writes "partition local" pairs to stdout.
//
// usage: kmersig-partitions -sizes 10,20,5 < blocks.txt > located.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/kortschak/kmersig/analysis"
)

func main() {
	sizes := flag.String("sizes", "", "comma-separated per-partition block counts (required)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s -sizes <n0,n1,...> <blocks.txt >located.txt

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *sizes == "" {
		flag.Usage()
		os.Exit(2)
	}

	blocksPerPartition, err := parseSizes(*sizes)
	if err != nil {
		log.Fatal(err)
	}
	table, err := analysis.NewPartitionTable(blocksPerPartition)
	if err != nil {
		log.Fatal(err)
	}

	sc := bufio.NewScanner(os.Stdin)
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		block, err := strconv.Atoi(line)
		if err != nil {
			log.Fatalf("kmersig-partitions: invalid block number %q: %v", line, err)
		}
		partition, local, err := table.Locate(block)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(w, "%d %d\n", partition, local)
	}
	if err := sc.Err(); err != nil {
		log.Fatal(err)
	}
}

func parseSizes(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	sizes := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("kmersig-partitions: invalid partition size %q: %w", f, err)
		}
		sizes[i] = n
	}
	return sizes, nil
}
