package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	MaxFailures   int                               // Consecutive failures before opening
	Timeout       time.Duration                     // Time spent open before probing
	MaxRequests   int                               // Probes allowed while half-open
	IsSuccessful  func(error) bool                  // Decides whether an error counts as a failure
	OnStateChange func(name string, from, to State) // Called with the lock held; must not block
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     60 * time.Second,
		MaxRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to State) {},
	}
}

type CircuitBreaker struct {
	name            string
	config          Config
	state           State
	failures        int
	requests        int
	lastFailureTime time.Time
	now             func() time.Time
	mutex           sync.Mutex
	log             *logger.Logger
}

// Stats is a point-in-time view of a breaker
type Stats struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = def.MaxRequests
	}
	if config.IsSuccessful == nil {
		config.IsSuccessful = def.IsSuccessful
	}
	if config.OnStateChange == nil {
		config.OnStateChange = def.OnStateChange
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
		log:    logger.GetLogger(fmt.Sprintf("circuit.%s", name)),
	}

	cb.log.Infof("Circuit breaker '%s' initialized in CLOSED state", name)
	return cb
}

// Do runs fn unless the breaker is open. A panic in fn counts as a failure
// and is re-raised.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(false)
			panic(r)
		}
	}()

	err := fn(ctx)
	cb.afterRequest(cb.config.IsSuccessful(err))
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.config.Timeout {
			cb.toHalfOpen()
			cb.requests++
			return nil
		}
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.requests >= cb.config.MaxRequests {
			return ErrTooManyRequests
		}
		cb.requests++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.toClosed()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toClosed() {
	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.requests = 0
	cb.log.Infof("Circuit breaker '%s' transitioned from %s to CLOSED", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateClosed)
}

func (cb *CircuitBreaker) toOpen() {
	oldState := cb.state
	cb.state = StateOpen
	cb.requests = 0
	cb.log.Warnf("Circuit breaker '%s' transitioned from %s to OPEN", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateOpen)
}

func (cb *CircuitBreaker) toHalfOpen() {
	oldState := cb.state
	cb.state = StateHalfOpen
	cb.requests = 0
	cb.log.Infof("Circuit breaker '%s' transitioned from %s to HALF_OPEN", cb.name, oldState)
	cb.config.OnStateChange(cb.name, oldState, StateHalfOpen)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Stats{
		Name:     cb.name,
		State:    cb.state.String(),
		Failures: cb.failures,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	oldState := cb.state
	cb.toClosed()
	cb.log.Infof("Circuit breaker '%s' manually reset from %s", cb.name, oldState)
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests")
)
