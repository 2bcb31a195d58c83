// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// lazyir_inspect traces a synthetic training step of a dense network several times, and reports how many
// lazy IR nodes were reused across steps (and across concurrent tracers sharing one cache).
//
// Example:
//
//	$ go run ./cmd/lazyir_inspect -steps=20 -parallel=4 -layers=64,128,10
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/lazyir/backends"
	_ "github.com/gomlx/lazyir/backends/simplego"
	"github.com/gomlx/lazyir/pkg/lazy/ir"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Backend configuration, formatted as \"<name>:<config>\". If empty, $%s or the first registered backend is used.",
			backends.ConfigEnvVar))
	flagReuse = flag.Bool("reuse", ir.ReuseIREnabled(),
		fmt.Sprintf("Reuse equivalent IR nodes. Defaults to $%s, or true if not set.", ir.ReuseIREnvVar))
	flagSteps         = flag.Int("steps", 10, "Number of training steps traced by each tracer.")
	flagParallel      = flag.Int("parallel", 1, "Number of concurrent tracers, each with its own context, sharing one cache.")
	flagLayers        = flag.String("layers", "16,32,8", "Comma-separated dimensions of the network: input dimension followed by the output dimension of each layer.")
	flagBatch         = flag.Int("batch", 4, "Batch size.")
	flagLearningRate  = flag.Float64("learning_rate", 0.001, "Learning rate used as a scalar constant in the graph.")
	flagUpdateWeights = flag.Bool("update_weights", false, "Replace the weights by new buffers after every step, as an optimizer would.")
	flagDump          = flag.Bool("dump", false, "Print the IR of the last step traced by the first tracer.")
	flagDot           = flag.String("dot", "", "If set, write the IR of the last step traced by the first tracer in graphviz format to this file.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'lazyir_inspect -help'.", flag.Args())
		os.Exit(1)
	}
	if *flagSteps <= 0 || *flagParallel <= 0 || *flagBatch <= 0 {
		klog.Errorf("-steps, -parallel and -batch must be positive.")
		os.Exit(1)
	}
	dims, err := parseDims(*flagLayers)
	if err != nil {
		klog.Errorf("Invalid -layers=%q: %+v", *flagLayers, err)
		os.Exit(1)
	}
	ir.SetReuseIR(*flagReuse)

	var backend backends.Backend
	if *flagBackend != "" {
		backend = must.M1(backends.NewWithConfig(*flagBackend))
	} else {
		backend = must.M1(backends.New())
	}
	defer backend.Finalize()

	r, err := run(backend, dims)
	if err != nil {
		klog.Errorf("Failed: %+v", err)
		os.Exit(1)
	}
	report(backend, r)
}

func parseDims(layers string) ([]int, error) {
	parts := strings.Split(layers, ",")
	dims := make([]int, 0, len(parts))
	for _, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing dimension %q", part)
		}
		if dim <= 0 {
			return nil, errors.Errorf("dimensions must be positive, got %d", dim)
		}
		dims = append(dims, dim)
	}
	if len(dims) < 2 {
		return nil, errors.Errorf("at least 2 dimensions required (input and one layer), got %d", len(dims))
	}
	return dims, nil
}

// tracerResult holds what one tracer observed.
type tracerResult struct {
	name     string
	numNodes []int // Per step.
	elapsed  time.Duration
}

// runResult holds the results of all tracers.
type runResult struct {
	tracers []*tracerResult
	cache   *ir.ReuseCache
	stats   ir.CacheStats

	// lastRoots are the roots of the last step of the first tracer, kept alive for the dumps.
	lastRoots []*ir.Node
	elapsed   time.Duration
}

// run the tracers concurrently. They share the model unless -update_weights is set, in which case each
// tracer owns its model, since it replaces its buffers.
func run(backend backends.Backend, dims []int) (*runResult, error) {
	cache := ir.NewReuseCache()
	r := &runResult{cache: cache, tracers: make([]*tracerResult, *flagParallel)}

	var shared *model
	if !*flagUpdateWeights {
		var err error
		shared, err = newModel(backend, dims)
		if err != nil {
			return nil, err
		}
		defer func() { _ = shared.finalize() }()
	}

	start := time.Now()
	var g errgroup.Group
	for tracerIdx := range *flagParallel {
		g.Go(func() error {
			m := shared
			if m == nil {
				var err error
				m, err = newModel(backend, dims)
				if err != nil {
					return err
				}
				defer func() { _ = m.finalize() }()
			}
			ctx := ir.NewContext().WithCache(cache).WithName(fmt.Sprintf("tracer#%d", tracerIdx))
			tr := &tracerResult{name: ctx.Name(), numNodes: make([]int, *flagSteps)}
			tracerStart := time.Now()
			var last *stepTrace
			for step := range *flagSteps {
				trace, err := traceStep(ctx, m, *flagBatch, *flagLearningRate)
				if err != nil {
					return errors.WithMessagef(err, "%s, step #%d", ctx, step)
				}
				tr.numNodes[step] = trace.numNodes
				last = trace
				if *flagUpdateWeights {
					if err = m.replace(); err != nil {
						return errors.WithMessagef(err, "%s, replacing weights after step #%d", ctx, step)
					}
				}
			}
			tr.elapsed = time.Since(tracerStart)
			klog.V(1).Infof("%s traced %d steps in %s", ctx, *flagSteps, tr.elapsed)
			r.tracers[tracerIdx] = tr
			if tracerIdx == 0 {
				r.lastRoots = last.roots
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.elapsed = time.Since(start)
	r.stats = cache.Stats()
	return r, nil
}

func report(backend backends.Backend, r *runResult) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("backend", backend.Description())
	table.Row("reuse", strconv.FormatBool(ir.ReuseIREnabled()))
	table.Row("tracers", humanize.Comma(int64(len(r.tracers))))
	table.Row("steps per tracer", humanize.Comma(int64(*flagSteps)))
	var totalNodes int
	for _, tr := range r.tracers {
		for _, n := range tr.numNodes {
			totalNodes += n
		}
	}
	table.Row("# nodes traced", humanize.Comma(int64(totalNodes)))
	table.Row("# nodes in cache", humanize.Comma(int64(r.cache.Len())))
	table.Row("lookups", humanize.Comma(r.stats.Lookups))
	table.Row("hits", humanize.Comma(r.stats.Hits))
	table.Row("misses", humanize.Comma(r.stats.Misses))
	table.Row("hit rate", fmt.Sprintf("%.1f%%", 100*r.stats.HitRate()))
	table.Row("pruned", humanize.Comma(r.stats.Pruned))
	table.Row("elapsed", r.elapsed.String())
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Tracers"))
	table = newPlainTable(lipgloss.Left, lipgloss.Right)
	table.Headers("Tracer", "Nodes/step", "Elapsed", "Time/step")
	for _, tr := range r.tracers {
		table.Row(tr.name, humanize.Comma(int64(tr.numNodes[0])), tr.elapsed.String(),
			(tr.elapsed / time.Duration(len(tr.numNodes))).String())
	}
	fmt.Println(table.Render())

	if *flagDump {
		fmt.Println(titleStyle.Render("IR of the last step"))
		fmt.Print(ir.DumpText(r.lastRoots...))
	}
	if *flagDot != "" {
		must.M(os.WriteFile(*flagDot, []byte(ir.DumpDot(r.lastRoots...)), 0o644))
		fmt.Printf("Graph written to %q\n", *flagDot)
	}
}
