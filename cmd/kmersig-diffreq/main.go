// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The kmersig-diffreq command compares the persisted high-frequency
// k-mer sets (entries.db) of two analysis runs and reports how many
// k-mers are shared and how many are specific to each run. The report
// is emitted as a JSON object on stdout. If a dot flag is given, a
// summary discordance graph is written in DOT format, with edge weights
// representing the size of each category of disagreement.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"modernc.org/kv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/kortschak/kmersig/internal/store"
)

func main() {
	aFile := flag.String("a", "", "specify the first entries.db (required)")
	bFile := flag.String("b", "", "specify the second entries.db (required)")
	out := flag.String("dot", "", "specify path prefix for a DOT file describing the disagreement")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s -a <run-a/entries.db> -b <run-b/entries.db> >out.json

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *aFile == "" || *bFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	a, err := kmerSet(*aFile)
	if err != nil {
		log.Fatal(err)
	}
	b, err := kmerSet(*bFile)
	if err != nil {
		log.Fatal(err)
	}

	var agree, aOnly, bOnly int
	for k := range a {
		if _, ok := b[k]; ok {
			agree++
		} else {
			aOnly++
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			bOnly++
		}
	}

	type report struct {
		Agree int `json:"agree"`
		AOnly int `json:"a-only"`
		BOnly int `json:"b-only"`
	}
	m, err := json.Marshal(report{Agree: agree, AOnly: aOnly, BOnly: bOnly})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s\n", m)

	if *out != "" {
		if err := dotOut(*out+".dot", *aFile, *bFile, agree, aOnly, bOnly); err != nil {
			log.Fatal(err)
		}
	}
}

// kmerSet streams an entries.db (k-mer -> reason) into a plain set,
// unlike the teacher's cmd/cmpint, which aggregates GFF features into a
// biogo/store/step.Vector keyed by genomic coordinate: k-mer entries
// have no coordinate axis to step over, so the data structure a flat
// map is the natural replacement here, not a step function.
func kmerSet(path string) (map[uint64]struct{}, error) {
	db, err := kv.Open(path, &kv.Options{Compare: store.CompareKmerKeys})
	if err != nil {
		return nil, fmt.Errorf("kmersig-diffreq: open %s: %w", path, err)
	}
	defer db.Close()

	set := make(map[uint64]struct{})
	it, err := db.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return set, nil
		}
		return nil, fmt.Errorf("kmersig-diffreq: seek %s: %w", path, err)
	}
	for {
		k, _, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("kmersig-diffreq: read %s: %w", path, err)
		}
		set[store.UnmarshalKmerKey(k)] = struct{}{}
	}
	return set, nil
}

func dotOut(path, aFile, bFile string, agree, aOnly, bOnly int) error {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	nA := node{id: g.NewNode().ID(), name: aFile}
	g.AddNode(nA)
	nB := node{id: g.NewNode().ID(), name: bFile}
	g.AddNode(nB)
	nShared := node{id: g.NewNode().ID(), name: "shared"}
	g.AddNode(nShared)
	nAOnly := node{id: g.NewNode().ID(), name: "a-only"}
	g.AddNode(nAOnly)
	nBOnly := node{id: g.NewNode().ID(), name: "b-only"}
	g.AddNode(nBOnly)

	g.SetWeightedEdge(edge{f: nA, t: nShared, w: float64(agree)})
	g.SetWeightedEdge(edge{f: nB, t: nShared, w: float64(agree)})
	g.SetWeightedEdge(edge{f: nA, t: nAOnly, w: float64(aOnly)})
	g.SetWeightedEdge(edge{f: nB, t: nBOnly, w: float64(bOnly)})

	b, err := dot.Marshal(g, "discord", "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o664)
}

type node struct {
	id   int64
	name string
}

func (n node) ID() int64     { return n.id }
func (n node) DOTID() string { return n.name }

type edge struct {
	f, t graph.Node
	w    float64
}

func (e edge) From() graph.Node         { return e.f }
func (e edge) To() graph.Node           { return e.t }
func (e edge) ReversedEdge() graph.Edge { return edge{f: e.t, t: e.f, w: e.w} }
func (e edge) Weight() float64          { return e.w }
func (e edge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "weight", Value: fmt.Sprint(e.w)}}
}
