package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// renderChart draws a grouped bar chart of per-operation latency, one
// group of bars per engine, to a PNG at path.
func renderChart(path string, results []BenchResult) error {
	ops := []string{"Load", "Workload_OLTP", "Workload_OLAP", "Delete"}
	engines := uniqueEngines(results)

	p := plot.New()
	p.Title.Text = "kvbench: mean latency per operation"
	p.Y.Label.Text = "ns/op"
	p.NominalX(ops...)

	barWidth := vg.Points(12)
	for i, eng := range engines {
		values := make(plotter.Values, len(ops))
		for j, op := range ops {
			values[j] = float64(latencyFor(results, eng, op))
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return fmt.Errorf("kvbench: new bar chart for %s: %w", eng, err)
		}
		bars.Offset = barWidth * vg.Length(i) * 1.2
		p.Add(bars)
		p.Legend.Add(eng, bars)
	}

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("kvbench: save chart: %w", err)
	}
	return nil
}

func uniqueEngines(results []BenchResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range results {
		if !seen[r.Engine] {
			seen[r.Engine] = true
			out = append(out, r.Engine)
		}
	}
	return out
}

func latencyFor(results []BenchResult, engine, op string) int64 {
	for _, r := range results {
		if r.Engine == engine && r.Operation == op {
			return r.LatencyNs
		}
	}
	return 0
}
