package esg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzzdr/economic-scenario-generator/internal/noise"
	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/backpressure"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/pools"
)

// Run outcomes reported to the MetricsRecorder
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ServiceConfig holds the settings of the scenario service
type ServiceConfig struct {
	// Workers is the number of path ranges per batch; 0 means one per CPU
	Workers int
	// Frequency is the number of steps per year
	Frequency int
	// DefaultPaths and DefaultYears apply when a request omits N or T
	DefaultPaths int
	DefaultYears int
	// MaxPaths and MaxYears bound a single request; 0 disables the check
	MaxPaths int
	MaxYears int
	// Tolerance is the singular-value cutoff of the factorization
	Tolerance float64
	Summary   SummaryOptions
	// PublishTimeout bounds the delivery of one run event to all sinks
	PublishTimeout time.Duration
}

// DefaultServiceConfig mirrors the monthly, ten path, five year batch
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Frequency:    12,
		DefaultPaths: 10,
		DefaultYears: 5,
		MaxPaths:     100000,
		MaxYears:     100,
		Tolerance:    noise.DefaultTolerance,
		Summary:      DefaultSummaryOptions(),

		PublishTimeout: 2 * time.Second,
	}
}

// EventPublisher receives a RunEvent after every successful batch
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event *models.RunEvent) error
}

// MetricsRecorder is the subset of the metrics recorder the service uses
type MetricsRecorder interface {
	RecordScenarioRun(outcome string, paths int, duration time.Duration)
	RecordNoiseGeneration(duration time.Duration, rank int)
	AddScenarioWorkers(delta int)
}

// Admitter bounds the work in flight across concurrent batches
type Admitter interface {
	Acquire(ctx context.Context, weight int64) (release func(), err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordScenarioRun(string, int, time.Duration) {}
func (nopRecorder) RecordNoiseGeneration(time.Duration, int)     {}
func (nopRecorder) AddScenarioWorkers(int)                       {}

// Service turns scenario requests into simulated path tensors
type Service struct {
	cfg        ServiceConfig
	publishers []EventPublisher
	metrics    MetricsRecorder
	buffers    *pools.Float64SlicePool
	admission  Admitter
	orchOpts   []OrchestratorOption
	pending    sync.WaitGroup
	log        *logger.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithPublisher adds a run-event sink. Events are delivered in the
// background after the response is built; errors are logged and never
// fail the request.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAdmission makes every batch reserve paths×steps×instruments units
// from a before it draws its noise
func WithAdmission(a Admitter) ServiceOption {
	return func(s *Service) {
		s.admission = a
	}
}

// WithOrchestratorOptions passes options to every batch orchestrator
func WithOrchestratorOptions(opts ...OrchestratorOption) ServiceOption {
	return func(s *Service) {
		s.orchOpts = append(s.orchOpts, opts...)
	}
}

// NewService creates a scenario service
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	def := DefaultServiceConfig()
	if cfg.Frequency <= 0 {
		cfg.Frequency = def.Frequency
	}
	if cfg.DefaultPaths <= 0 {
		cfg.DefaultPaths = def.DefaultPaths
	}
	if cfg.DefaultYears <= 0 {
		cfg.DefaultYears = def.DefaultYears
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if len(cfg.Summary.Quantiles) == 0 && cfg.Summary.Confidence == 0 {
		cfg.Summary = def.Summary
	}

	s := &Service{
		cfg:     cfg,
		metrics: nopRecorder{},
		buffers: pools.NewFloat64SlicePool(0),
		log:     logger.GetLogger("esg.service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Generate validates req, draws one correlated noise stream for the whole
// batch, simulates every path and returns both tensors.
func (s *Service) Generate(ctx context.Context, req *models.ScenarioRequest) (*models.ScenarioResponse, error) {
	start := time.Now()

	resp, event, err := s.generate(ctx, req)
	if err != nil {
		outcome := OutcomeFailed
		switch errors.TypeOf(err) {
		case errors.ErrorTypeInvalidArgument, errors.ErrorTypeNumericDegeneracy,
			errors.ErrorTypeResourceExhausted, errors.ErrorTypeUnavailable:
			outcome = OutcomeRejected
			s.log.Infow("Scenario request rejected", "error", err)
		default:
			s.log.Errorw("Scenario run failed", "error", err)
		}
		s.metrics.RecordScenarioRun(outcome, 0, time.Since(start))
		return nil, err
	}

	s.metrics.RecordScenarioRun(OutcomeSuccess, event.Paths, time.Since(start))
	if len(s.publishers) > 0 {
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			s.publish(context.WithoutCancel(ctx), event)
		}()
	}
	return resp, nil
}

func (s *Service) generate(ctx context.Context, req *models.ScenarioRequest) (*models.ScenarioResponse, *models.RunEvent, error) {
	if req == nil {
		return nil, nil, errors.InvalidArgument("scenario request is required")
	}

	paths, years, err := s.batchSize(req)
	if err != nil {
		return nil, nil, err
	}

	params, err := NewParameters(req.S0, req.Reversion, req.Mu, req.Sigma, req.CorrMatrix)
	if err != nil {
		return nil, nil, err
	}

	steps := years * s.cfg.Frequency
	if s.admission != nil {
		release, err := s.admission.Acquire(ctx, int64(paths)*int64(steps)*int64(params.Dim()))
		if err != nil {
			return nil, nil, admissionError(err)
		}
		defer release()
	}

	genOpts := []noise.Option{
		noise.WithTolerance(s.cfg.Tolerance),
		noise.WithBufferPool(s.buffers),
	}
	if req.Seed != nil {
		genOpts = append(genOpts, noise.WithSeed(*req.Seed))
	}
	gen := noise.NewGenerator(genOpts...)

	noiseStart := time.Now()
	sample, err := gen.Sample(params.Correlation(), paths*steps)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordNoiseGeneration(time.Since(noiseStart), sample.Rank)

	sim, err := NewSimulator(params, sample.Noise, paths, steps, s.cfg.Frequency)
	if err != nil {
		return nil, nil, err
	}

	orch := NewOrchestrator(s.cfg.Workers, s.orchOpts...)
	s.metrics.AddScenarioWorkers(orch.Workers())
	res, err := orch.Run(ctx, sim, paths)
	s.metrics.AddScenarioWorkers(-orch.Workers())
	if err != nil {
		return nil, nil, err
	}
	if !res.Equity.IsFinite() || !res.Rate.IsFinite() {
		return nil, nil, errors.NumericDegeneracy(
			fmt.Sprintf("simulated paths are not finite within %d steps", steps))
	}

	runID := uuid.NewString()
	computeMS := float64(res.Elapsed.Microseconds()) / 1000
	resp := &models.ScenarioResponse{
		RunID:     runID,
		GBM:       res.Equity.Nested(),
		Vasicek:   res.Rate.Nested(),
		Workers:   res.Workers,
		ComputeMS: computeMS,
	}
	if req.Summary {
		resp.Summary = Summarize(res, params, sim.Horizon(), s.cfg.Summary)
	}

	event := &models.RunEvent{
		Type:        models.RunEventType,
		RunID:       runID,
		Paths:       paths,
		Steps:       steps,
		Frequency:   s.cfg.Frequency,
		Equities:    len(params.equities),
		Rates:       len(params.rates),
		Rank:        sample.Rank,
		Workers:     res.Workers,
		ComputeMS:   computeMS,
		Seeded:      gen.Seeded(),
		CompletedAt: time.Now().UTC(),
	}

	s.log.Infow("Scenario batch completed",
		"run_id", runID,
		"paths", paths,
		"steps", steps,
		"rank", sample.Rank,
		"workers", res.Workers,
		"elapsed", res.Elapsed,
	)
	return resp, event, nil
}

func (s *Service) batchSize(req *models.ScenarioRequest) (int, int, error) {
	paths, years := s.cfg.DefaultPaths, s.cfg.DefaultYears
	if req.Paths != nil {
		paths = *req.Paths
	}
	if req.Years != nil {
		years = *req.Years
	}

	var details []string
	if paths < 1 {
		details = append(details, "N: path count must be positive")
	}
	if years < 1 {
		details = append(details, "T: horizon in years must be positive")
	}
	if len(details) > 0 {
		return 0, 0, errors.InvalidArgument("invalid batch size", details...)
	}

	if s.cfg.MaxPaths > 0 && paths > s.cfg.MaxPaths {
		return 0, 0, errors.ResourceExhausted(
			fmt.Sprintf("path count %d exceeds the limit of %d", paths, s.cfg.MaxPaths))
	}
	if s.cfg.MaxYears > 0 && years > s.cfg.MaxYears {
		return 0, 0, errors.ResourceExhausted(
			fmt.Sprintf("horizon of %d years exceeds the limit of %d", years, s.cfg.MaxYears))
	}
	return paths, years, nil
}

func admissionError(err error) error {
	switch {
	case errors.Is(err, backpressure.ErrOverCapacity):
		return &errors.AppError{
			Type:    errors.ErrorTypeResourceExhausted,
			Message: "batch exceeds the admission capacity",
			Err:     err,
		}
	case errors.Is(err, backpressure.ErrOverloaded):
		return &errors.AppError{
			Type:    errors.ErrorTypeUnavailable,
			Message: "batch admission rejected",
			Err:     err,
		}
	default:
		return err
	}
}

// Flush waits for run events still being delivered
func (s *Service) Flush() {
	s.pending.Wait()
}

func (s *Service) publish(ctx context.Context, event *models.RunEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	for _, p := range s.publishers {
		if err := p.PublishRunEvent(ctx, event); err != nil {
			s.log.Warnw("Failed to publish run event", "run_id", event.RunID, "error", err)
		}
	}
}
