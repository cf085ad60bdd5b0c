// Command loadgen builds or inspects a disk-backed B+-tree index file
// described by a YAML config.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/a4vg/disk-based-bptree/bptree"
	"github.com/a4vg/disk-based-bptree/config"
	"github.com/a4vg/disk-based-bptree/pagestore"
)

func main() {
	cfgPath := flag.String("config", "loadgen.yaml", "path to index config file")
	n := flag.Int("n", 1000, "number of keys to generate")
	inspect := flag.Bool("inspect", false, "dump the leaf chain instead of generating")
	low := flag.Int64("low", 0, "inclusive lower key bound for -inspect")
	high := flag.Int64("high", 0, "exclusive upper key bound for -inspect; 0 with -low 0 dumps everything")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loadgen: %v", err)
	}

	pm, err := pagestore.Open(cfg.Index.Path, cfg.Index.PageSize, cfg.Index.Truncate)
	if err != nil {
		log.Fatalf("loadgen: open pagestore: %v", err)
	}
	defer pm.Close()

	tree, err := bptree.Open(pm, cfg.Index.Order, bptree.Int64Codec{})
	if err != nil {
		log.Fatalf("loadgen: open tree: %v", err)
	}
	defer tree.Close()

	if *inspect {
		runInspect(tree, *low, *high)
		return
	}
	runGenerate(tree, *n)
}

// runInspect dumps either the whole leaf chain or, when a bound is given,
// the half-open range [low, high).
func runInspect(tree *bptree.Tree[int64], low, high int64) {
	if low == 0 && high == 0 {
		values, err := tree.DumpLeaves()
		if err != nil {
			log.Fatalf("loadgen: dump leaves: %v", err)
		}
		fmt.Printf("%d entries\n", len(values))
		for _, v := range values {
			fmt.Println(v)
		}
		return
	}

	it, err := tree.RangeSearch(low, high)
	if err != nil {
		log.Fatalf("loadgen: range search: %v", err)
	}
	for !it.Done() {
		v, err := it.Value()
		if err != nil {
			log.Fatalf("loadgen: read value: %v", err)
		}
		fmt.Println(v)
		if err := it.Next(); err != nil {
			log.Fatalf("loadgen: advance: %v", err)
		}
	}
}

// runGenerate produces n pseudo-random int64 keys in parallel (each worker
// derives a key from a fresh UUID, independent of the others), then inserts
// them one at a time: the tree's contract is single-threaded, so the
// concurrency here buys only the key-generation step, not the insert loop.
func runGenerate(tree *bptree.Tree[int64], n int) {
	keys := make([]int64, n)

	p := pool.New().WithMaxGoroutines(8)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() {
			keys[i] = uuidKey()
		})
	}
	p.Wait()

	for _, k := range keys {
		if err := tree.Insert(k, k); err != nil {
			log.Fatalf("loadgen: insert %d: %v", k, err)
		}
	}

	slog.Info("loadgen.generate.done", "count", n)
}

func uuidKey() int64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	return int64(v & (1<<63 - 1))
}
