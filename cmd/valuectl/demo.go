package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/valuekit/internal/logger"
	"github.com/joshuapare/valuekit/pkg/shapes"
	"github.com/joshuapare/valuekit/valueptr"
	"github.com/joshuapare/valuekit/valueptr/alloc"
)

type shape = shapes.Shape[float64]

type demoOptions struct {
	allocator string
	pageSize  int
	length    float64
	breadth   float64
	radius    float64
}

// demoResult is the JSON form of a demo run.
type demoResult struct {
	Allocator     string  `json:"allocator"`
	RectangleArea float64 `json:"rectangle_area"`
	CircleArea    float64 `json:"circle_area"`
	CloneArea     float64 `json:"clone_area"`
	Allocs        int64   `json:"allocs"`
	Frees         int64   `json:"frees"`
	Live          int     `json:"live"`
}

func newDemoCmd(g *globals) *cobra.Command {
	opts := &demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Build a shape, retype it, copy it and release the original",
		Long: `The demo command stores a rectangle in a shape container, reassigns the
container to a circle, clones it, releases the original and reads the clone.

Example:
  valuectl demo
  valuectl demo --allocator fast --radius 3
  valuectl demo --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.allocator, "allocator", "heap", "Allocator backing the containers (heap, bump, fast, mmap)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Arena page size in bytes (0 = default)")
	cmd.Flags().Float64Var(&opts.length, "length", 2.5, "Rectangle length")
	cmd.Flags().Float64Var(&opts.breadth, "breadth", 2.0, "Rectangle breadth")
	cmd.Flags().Float64Var(&opts.radius, "radius", 2.0, "Circle radius")
	return cmd
}

func runDemo(g *globals, opts *demoOptions) error {
	base, ar, err := openAllocator(opts.allocator, opts.pageSize)
	if err != nil {
		return err
	}
	if ar != nil {
		defer ar.Close()
	}
	counting := alloc.NewCounting(base)
	res := demoResult{Allocator: opts.allocator}

	logger.Info("demo: start", "allocator", opts.allocator)
	g.printVerbose("Using %s allocator\n", opts.allocator)

	p, err := valueptr.Make[shape](
		shapes.Rectangle[float64]{Len: opts.length, Breadth: opts.breadth},
		valueptr.WithAllocator(counting),
	)
	if err != nil {
		return fmt.Errorf("failed to build rectangle: %w", err)
	}
	res.RectangleArea = p.Get().Area()
	g.printInfo("%s area: %.2f\n", p.Get().Name(), res.RectangleArea)

	if err := valueptr.SetAs[shape](p, shapes.Circle[float64]{Radius: opts.radius}); err != nil {
		return fmt.Errorf("failed to reassign to circle: %w", err)
	}
	res.CircleArea = p.Get().Area()
	g.printInfo("reassigned to %s, area: %.2f\n", p.Get().Name(), res.CircleArea)
	g.printVerbose("  block: %d bytes, type %v\n", p.Size(), p.ConcreteType())

	cp, err := p.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone: %w", err)
	}
	if err := p.Release(); err != nil {
		return fmt.Errorf("failed to release original: %w", err)
	}
	res.CloneArea = cp.Get().Area()
	g.printInfo("released original, copy holds %s, area: %.2f\n", cp.Get().Name(), res.CloneArea)

	if err := cp.Release(); err != nil {
		return fmt.Errorf("failed to release copy: %w", err)
	}
	res.Allocs = counting.Allocs()
	res.Frees = counting.Frees()
	res.Live = counting.Live()
	if res.Live != 0 {
		logger.Warn("demo: blocks still live after release", "allocator", opts.allocator, "live", res.Live)
	}

	if g.jsonOut {
		return g.printJSON(res)
	}
	g.printInfo("allocations: %d, frees: %d, live: %d\n", res.Allocs, res.Frees, res.Live)
	return nil
}
