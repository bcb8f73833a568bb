package esg

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// RangeFunc simulates one path range
type RangeFunc func(ctx context.Context, r Range) (*Segment, error)

// RangeTask is one unit of work handed to an Executor
type RangeTask struct {
	Range Range
	Run   RangeFunc
}

// Executor runs tasks and returns their segments ordered by task index.
// Any task error aborts the batch; no partial results are returned.
type Executor interface {
	Execute(ctx context.Context, tasks []RangeTask) ([]*Segment, error)
}

// PoolExecutor runs tasks on at most Workers goroutines. Each call builds
// its own group, so nothing is shared between batches.
type PoolExecutor struct {
	Workers int
	log     *logger.Logger
}

// NewPoolExecutor creates a pool executor with the given concurrency limit
func NewPoolExecutor(workers int) *PoolExecutor {
	if workers < 1 {
		workers = 1
	}
	return &PoolExecutor{
		Workers: workers,
		log:     logger.GetLogger("esg.executor"),
	}
}

// Execute implements Executor
func (e *PoolExecutor) Execute(ctx context.Context, tasks []RangeTask) ([]*Segment, error) {
	results := make([]*Segment, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	for i, task := range tasks {
		g.Go(func() error {
			seg, err := runTask(gctx, task)
			if err != nil {
				return err
			}
			results[i] = seg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeComputeFailure {
			e.log.Errorw("Simulation task failed", "error", err)
		}
		return nil, err
	}
	return results, nil
}

// SequentialExecutor runs tasks one after another on the calling goroutine
type SequentialExecutor struct{}

// Execute implements Executor
func (SequentialExecutor) Execute(ctx context.Context, tasks []RangeTask) ([]*Segment, error) {
	results := make([]*Segment, len(tasks))
	for i, task := range tasks {
		seg, err := runTask(ctx, task)
		if err != nil {
			return nil, err
		}
		results[i] = seg
	}
	return results, nil
}

// runTask converts a panic inside the task into a compute failure
func runTask(ctx context.Context, task RangeTask) (seg *Segment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			seg = nil
			err = errors.ComputeFailure(
				fmt.Sprintf("simulation of paths %s panicked", task.Range),
				fmt.Errorf("%v\n%s", rec, debug.Stack()),
			)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seg, err = task.Run(ctx, task.Range)
	if err != nil {
		return nil, errors.Wrapf(err, "simulation of paths %s", task.Range)
	}
	return seg, nil
}
