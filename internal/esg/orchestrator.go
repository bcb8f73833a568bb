package esg

import (
	"context"
	"runtime"
	"time"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// Result is the concatenated output of one batch
type Result struct {
	Equity  *Tensor
	Rate    *Tensor
	Workers int
	Elapsed time.Duration
}

// Orchestrator partitions the path workload and dispatches it to an Executor
type Orchestrator struct {
	workers  int
	executor Executor
	log      *logger.Logger
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithExecutor replaces the default PoolExecutor
func WithExecutor(e Executor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.executor = e
	}
}

// NewOrchestrator creates an orchestrator with the given worker count;
// zero or negative means one worker per CPU.
func NewOrchestrator(workers int, opts ...OrchestratorOption) *Orchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	o := &Orchestrator{
		workers: workers,
		log:     logger.GetLogger("esg.orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.executor == nil {
		o.executor = NewPoolExecutor(workers)
	}
	return o
}

// Workers returns the number of ranges each batch is split into
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Run simulates paths [0, paths) of sim and concatenates the segments in
// range order. The output does not depend on the worker count.
func (o *Orchestrator) Run(ctx context.Context, sim *Simulator, paths int) (*Result, error) {
	if sim == nil {
		return nil, errors.InvalidArgument("orchestrator requires a simulator")
	}
	if paths < 0 || paths > sim.Paths() {
		return nil, errors.InvalidArgumentf("paths %d outside [0, %d]", paths, sim.Paths())
	}

	start := time.Now()
	ranges := Partition(paths, o.workers)
	tasks := make([]RangeTask, len(ranges))
	for i, r := range ranges {
		tasks[i] = RangeTask{Range: r, Run: sim.SimulateRange}
	}

	segments, err := o.executor.Execute(ctx, tasks)
	if err != nil {
		return nil, err
	}

	equity := make([]*Tensor, len(segments))
	rate := make([]*Tensor, len(segments))
	for i, seg := range segments {
		equity[i] = seg.Equity
		rate[i] = seg.Rate
	}

	res := &Result{Workers: o.workers}
	if res.Equity, err = Concat(equity...); err != nil {
		return nil, errors.Wrap(err, "concatenating equity segments")
	}
	if res.Rate, err = Concat(rate...); err != nil {
		return nil, errors.Wrap(err, "concatenating rate segments")
	}
	res.Elapsed = time.Since(start)

	o.log.Debugw("Batch simulated",
		"paths", paths,
		"workers", o.workers,
		"elapsed", res.Elapsed,
	)
	return res, nil
}
