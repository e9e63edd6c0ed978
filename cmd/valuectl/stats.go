package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/valuekit/internal/logger"
	"github.com/joshuapare/valuekit/pkg/shapes"
	"github.com/joshuapare/valuekit/valueptr"
	"github.com/joshuapare/valuekit/valueptr/alloc"
)

type statsOptions struct {
	allocator  string
	pageSize   int
	iterations int
	metrics    bool
}

// statsResult is the JSON form of a stats run.
type statsResult struct {
	Allocator  string             `json:"allocator"`
	Iterations int                `json:"iterations"`
	Allocs     int64              `json:"allocs"`
	Frees      int64              `json:"frees"`
	Live       int                `json:"live"`
	Arena      *alloc.Stats       `json:"arena,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

func newStatsCmd(g *globals) *cobra.Command {
	opts := &statsOptions{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Churn containers through an allocator and report its counters",
		Long: `The stats command repeatedly builds, retypes, clones and releases shape
containers, then prints what the allocator saw.

Example:
  valuectl stats --allocator fast --iterations 500
  valuectl stats --allocator bump --json
  valuectl stats --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.allocator, "allocator", "fast", "Allocator backing the containers (heap, bump, fast, mmap)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Arena page size in bytes (0 = default)")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 100, "Number of build/clone/release rounds")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Export allocator activity as Prometheus metrics and print them")
	return cmd
}

func runStats(g *globals, opts *statsOptions) error {
	if opts.iterations < 0 {
		return fmt.Errorf("iterations must be >= 0, got %d", opts.iterations)
	}
	base, ar, err := openAllocator(opts.allocator, opts.pageSize)
	if err != nil {
		return err
	}
	if ar != nil {
		defer ar.Close()
	}
	counting := alloc.NewCounting(base)
	var target alloc.Allocator = counting
	if opts.metrics {
		target = alloc.NewMetrics(counting, opts.allocator)
	}
	logger.Info("stats: start", "allocator", opts.allocator, "iterations", opts.iterations)

	for i := range opts.iterations {
		if err := churn(target, float64(i%7+1)); err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
	}

	res := statsResult{
		Allocator:  opts.allocator,
		Iterations: opts.iterations,
		Allocs:     counting.Allocs(),
		Frees:      counting.Frees(),
		Live:       counting.Live(),
	}
	if ar != nil {
		st := ar.Stats()
		res.Arena = &st
	}
	if res.Live != 0 {
		logger.Warn("stats: blocks still live after run", "allocator", opts.allocator, "live", res.Live)
	}

	var families []*dto.MetricFamily
	if opts.metrics {
		families, err = gatherAllocatorMetrics(prometheus.DefaultGatherer, opts.allocator)
		if err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
	}

	if g.jsonOut {
		if opts.metrics {
			res.Metrics = flattenMetrics(families)
		}
		return g.printJSON(res)
	}

	g.printInfo("Allocator:  %s\n", res.Allocator)
	g.printInfo("Iterations: %d\n", res.Iterations)
	g.printInfo("Allocs:     %d\n", res.Allocs)
	g.printInfo("Frees:      %d\n", res.Frees)
	g.printInfo("Live:       %d\n", res.Live)
	if res.Arena != nil {
		g.printInfo("\nArena:\n")
		g.printInfo("  Pages:    %d\n", res.Arena.Pages)
		g.printInfo("  Capacity: %d bytes\n", res.Arena.Capacity)
		g.printInfo("  In use:   %d bytes\n", res.Arena.InUse)
		g.printInfo("  Grows:    %d\n", res.Arena.Grows)
		g.printInfo("  Reused:   %d\n", res.Arena.Reused)
	}
	if opts.metrics && !g.quiet {
		fmt.Fprintln(g.out)
		return writeMetrics(g.out, families)
	}
	return nil
}

// gatherAllocatorMetrics returns the valuekit allocator families, keeping only the
// series labeled with name.
func gatherAllocatorMetrics(gatherer prometheus.Gatherer, name string) ([]*dto.MetricFamily, error) {
	all, err := gatherer.Gather()
	if err != nil {
		return nil, err
	}
	var out []*dto.MetricFamily
	for _, mf := range all {
		if !strings.HasPrefix(mf.GetName(), "valuekit_alloc_") {
			continue
		}
		var kept []*dto.Metric
		for _, m := range mf.GetMetric() {
			if labelValue(m, "name") == name {
				kept = append(kept, m)
			}
		}
		if len(kept) > 0 {
			mf.Metric = kept
			out = append(out, mf)
		}
	}
	return out, nil
}

func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// flattenMetrics keys each series by family name and its labels other than name,
// e.g. "valuekit_alloc_operations_total{operation=alloc,outcome=success}".
func flattenMetrics(families []*dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				if lp.GetName() != "name" {
					labels = append(labels, lp.GetName()+"="+lp.GetValue())
				}
			}
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// churn runs one round: rectangle, retype to triangle, clone, release both.
func churn(a alloc.Allocator, k float64) error {
	p, err := valueptr.Make[shape](shapes.Rectangle[float64]{Len: k, Breadth: 1}, valueptr.WithAllocator(a))
	if err != nil {
		return err
	}
	if err := valueptr.SetAs[shape](p, shapes.Triangle[float64]{Base: k, Height: 2}); err != nil {
		p.Release()
		return err
	}
	cp, err := p.Clone()
	if err != nil {
		p.Release()
		return err
	}
	if err := p.Release(); err != nil {
		cp.Release()
		return err
	}
	return cp.Release()
}
