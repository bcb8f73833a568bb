// Package backpressure provides mechanisms to handle system overload
// and manage request rates for CPU-bound batch work.
package backpressure

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

var (
	// ErrOverloaded is returned by a Reject controller when capacity is in use
	ErrOverloaded = errors.New("backpressure: capacity exhausted")
	// ErrOverCapacity is returned when one request outweighs the whole capacity
	ErrOverCapacity = errors.New("backpressure: request exceeds total capacity")
)

type Strategy int

const (
	// Block waits for capacity until the context is done
	Block Strategy = iota
	// Reject fails immediately when capacity is not available
	Reject
)

func (s Strategy) String() string {
	switch s {
	case Block:
		return "block"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a config string to a Strategy, defaulting to Block
func ParseStrategy(s string) Strategy {
	if s == "reject" {
		return Reject
	}
	return Block
}

// Controller admits weighted work against a fixed capacity
type Controller struct {
	name     string
	strategy Strategy
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	admitted atomic.Int64
	rejected atomic.Int64
	onReject func(weight int64)
	log      *logger.Logger
}

type Config struct {
	Name     string
	Strategy Strategy
	Capacity int64
	OnReject func(weight int64)
}

// Stats is a snapshot of a controller
type Stats struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Capacity int64  `json:"capacity"`
	InFlight int64  `json:"in_flight"`
	Admitted int64  `json:"admitted"`
	Rejected int64  `json:"rejected"`
}

func NewController(config Config) *Controller {
	if config.Capacity <= 0 {
		config.Capacity = 1
	}

	controller := &Controller{
		name:     config.Name,
		strategy: config.Strategy,
		capacity: config.Capacity,
		sem:      semaphore.NewWeighted(config.Capacity),
		onReject: config.OnReject,
		log:      logger.GetLogger("backpressure." + config.Name),
	}

	controller.log.Infof("Backpressure controller '%s' initialized with strategy %v, capacity %d",
		config.Name, config.Strategy, config.Capacity)

	return controller
}

// Acquire reserves weight units and returns the function that gives them back
func (c *Controller) Acquire(ctx context.Context, weight int64) (func(), error) {
	if weight <= 0 {
		weight = 1
	}
	if weight > c.capacity {
		c.reject(weight)
		return nil, ErrOverCapacity
	}

	switch c.strategy {
	case Reject:
		if !c.sem.TryAcquire(weight) {
			c.reject(weight)
			return nil, ErrOverloaded
		}
	default:
		if err := c.sem.Acquire(ctx, weight); err != nil {
			c.reject(weight)
			return nil, err
		}
	}

	c.inFlight.Add(weight)
	c.admitted.Add(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			c.inFlight.Add(-weight)
			c.sem.Release(weight)
		}
	}, nil
}

func (c *Controller) reject(weight int64) {
	c.rejected.Add(1)
	c.log.Debugf("Rejected request of weight %d (in flight %d of %d)", weight, c.inFlight.Load(), c.capacity)
	if c.onReject != nil {
		c.onReject(weight)
	}
}

// Stats returns a snapshot of the controller counters
func (c *Controller) Stats() Stats {
	return Stats{
		Name:     c.name,
		Strategy: c.strategy.String(),
		Capacity: c.capacity,
		InFlight: c.inFlight.Load(),
		Admitted: c.admitted.Load(),
		Rejected: c.rejected.Load(),
	}
}
