// Command kvbench compares the on-disk B-tree's latency and memory
// footprint against Pebble, CockroachDB's LSM engine, across load,
// OLTP-shaped, and OLAP-shaped workloads. Results land in a CSV and a
// latency chart rendered with gonum/plot.
package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"kvdb"
)

func main() {
	dir, err := os.MkdirTemp("", "kvbench")
	if err != nil {
		log.Fatalf("kvbench: mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	scale := 50000
	if len(os.Args) > 1 {
		if _, err := fmt.Sscanf(os.Args[1], "%d", &scale); err != nil {
			log.Fatalf("kvbench: bad scale argument %q: %v", os.Args[1], err)
		}
	}

	f, err := os.Create("kvbench_results.csv")
	if err != nil {
		log.Fatalf("kvbench: create results file: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Engine", "Operation", "LatencyNs", "AllocMB", "HeapObjects"})

	var results []BenchResult

	store, err := kvdb.Open(filepath.Join(dir, "bench.kvdb"), kvdb.DefaultCachePages)
	if err != nil {
		log.Fatalf("kvbench: open kvdb store: %v", err)
	}
	results = append(results, runSuite(w, "btree", store, scale)...)
	if err := store.Close(); err != nil {
		log.Fatalf("kvbench: close kvdb store: %v", err)
	}

	pdb, err := openPebble(filepath.Join(dir, "bench.pebble"))
	if err != nil {
		log.Fatalf("kvbench: open pebble: %v", err)
	}
	results = append(results, runSuite(w, "pebble", pdb, scale)...)
	if err := pdb.Close(); err != nil {
		log.Fatalf("kvbench: close pebble: %v", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("kvbench: flush csv: %v", err)
	}

	if err := renderChart("kvbench_latency.png", results); err != nil {
		log.Fatalf("kvbench: render chart: %v", err)
	}
	fmt.Println("Benchmark complete: kvbench_results.csv, kvbench_latency.png")
}

// runSuite drives one engine through load, OLTP, OLAP and delete phases,
// recording a BenchResult per phase.
func runSuite(w *csv.Writer, name string, e engine, n int) []BenchResult {
	fmt.Printf("Testing %s (n=%d)\n", name, n)
	var out []BenchResult

	record := func(op string, latencyNs int64) {
		stats := GetDetailedMem()
		res := BenchResult{Engine: name, Operation: op, LatencyNs: latencyNs, AllocMB: stats.AllocMB, HeapObjects: stats.HeapObjects}
		out = append(out, res)
		Record(w, res)
	}

	record("Load", timeOps(n, func(i int) { mustOK(e.Insert(benchKey(i), benchVal(i))) }))
	record("Workload_OLTP", timeOps(n/2, func(i int) { ExecuteWorkload(e, OLTP, i, n) }))
	record("Workload_OLAP", timeOps(n/2, func(i int) { ExecuteWorkload(e, OLAP, i, n) }))
	record("Delete", timeOps(n, func(i int) { mustOK(e.Delete(benchKey(i))) }))

	return out
}

func mustOK(err error) {
	if err != nil {
		log.Fatalf("kvbench: %v", err)
	}
}
