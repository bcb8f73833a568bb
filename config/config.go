package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rzzdr/economic-scenario-generator/internal/esg"
	"github.com/rzzdr/economic-scenario-generator/internal/kafka"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/backpressure"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/circuit"
)

// Config for the whole application
type Config struct {
	App        AppConfig
	API        APIConfig
	Simulation SimulationConfig
	Kafka      KafkaConfig
	Metrics    MetricsConfig
	WebSocket  WebSocketConfig
}

// General application configuration
type AppConfig struct {
	Name        string
	Environment string
	LogLevel    string `mapstructure:"log_level"`
}

// Configuration for the API server
type APIConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	CORS            CORSConfig
}

// CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// Configuration for scenario simulation
type SimulationConfig struct {
	Workers          int
	Frequency        int
	DefaultPaths     int       `mapstructure:"default_paths"`
	DefaultYears     int       `mapstructure:"default_years"`
	MaxPaths         int       `mapstructure:"max_paths"`
	MaxYears         int       `mapstructure:"max_years"`
	Tolerance        float64
	SummaryQuantiles []float64 `mapstructure:"summary_quantiles"`
	RiskConfidence   float64   `mapstructure:"risk_confidence"`
	// MaxInflightCells bounds paths×steps×instruments across concurrent
	// batches; zero disables admission control
	MaxInflightCells int64  `mapstructure:"max_inflight_cells"`
	Admission        string // block or reject
	// PublishTimeout bounds background delivery of each run event
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// Configuration for the Kafka run-event producer
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	ClientID     string        `mapstructure:"client_id"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Breaker      BreakerConfig
}

// Circuit breaker settings for an outbound dependency
type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMax  int           `mapstructure:"half_open_max"`
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled bool
	Port    int
}

// Configuration for the run feed
type WebSocketConfig struct {
	Enabled bool
	Path    string
}

// Load reads the configuration from path (optional) and ESG_ environment
// variables. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = GetConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ESG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch {
	case c.API.Port <= 0 || c.API.Port > 65535:
		return fmt.Errorf("invalid api.port %d", c.API.Port)
	case c.Simulation.Workers < 0:
		return fmt.Errorf("simulation.workers must not be negative, got %d", c.Simulation.Workers)
	case c.Simulation.Frequency <= 0:
		return fmt.Errorf("simulation.frequency must be positive, got %d", c.Simulation.Frequency)
	case c.Simulation.DefaultPaths <= 0 || c.Simulation.DefaultYears <= 0:
		return fmt.Errorf("simulation defaults must be positive")
	case c.Kafka.Enabled && len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	switch c.Simulation.Admission {
	case "", "block", "reject":
	default:
		return fmt.Errorf("simulation.admission must be block or reject, got %q", c.Simulation.Admission)
	}
	for _, q := range c.Simulation.SummaryQuantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("simulation.summary_quantiles entry %g outside (0, 1)", q)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "economic-scenario-generator")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "30s")
	v.SetDefault("api.write_timeout", "120s")
	v.SetDefault("api.shutdown_timeout", "30s")
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Authorization", "Content-Type"})

	// Simulation defaults
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.frequency", 12)
	v.SetDefault("simulation.default_paths", 10)
	v.SetDefault("simulation.default_years", 5)
	v.SetDefault("simulation.max_paths", 100000)
	v.SetDefault("simulation.max_years", 100)
	v.SetDefault("simulation.tolerance", 1e-6)
	v.SetDefault("simulation.summary_quantiles", []float64{0.05, 0.5, 0.95})
	v.SetDefault("simulation.risk_confidence", 0.99)
	v.SetDefault("simulation.max_inflight_cells", 50000000)
	v.SetDefault("simulation.admission", "reject")
	v.SetDefault("simulation.publish_timeout", "2s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "esg.runs")
	v.SetDefault("kafka.client_id", "economic-scenario-generator")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.breaker.max_failures", 5)
	v.SetDefault("kafka.breaker.reset_timeout", "30s")
	v.SetDefault("kafka.breaker.half_open_max", 1)

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.path", "/ws/runs")
}

// GetConfigPath returns ESG_CONFIG_PATH or the default location
func GetConfigPath() string {
	configPath := os.Getenv("ESG_CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	return "./config/config.yaml"
}

// ServiceConfig maps the simulation section onto the scenario service
func (c *Config) ServiceConfig() esg.ServiceConfig {
	sim := c.Simulation
	return esg.ServiceConfig{
		Workers:      sim.Workers,
		Frequency:    sim.Frequency,
		DefaultPaths: sim.DefaultPaths,
		DefaultYears: sim.DefaultYears,
		MaxPaths:     sim.MaxPaths,
		MaxYears:     sim.MaxYears,
		Tolerance:    sim.Tolerance,
		Summary: esg.SummaryOptions{
			Quantiles:  sim.SummaryQuantiles,
			Confidence: sim.RiskConfidence,
		},
		PublishTimeout: sim.PublishTimeout,
	}
}

// AdmissionController builds the batch admission controller, or nil when
// admission control is disabled
func (c *Config) AdmissionController() *backpressure.Controller {
	if c.Simulation.MaxInflightCells <= 0 {
		return nil
	}
	return backpressure.NewController(backpressure.Config{
		Name:     "scenario_runs",
		Strategy: backpressure.ParseStrategy(c.Simulation.Admission),
		Capacity: c.Simulation.MaxInflightCells,
	})
}

// ProducerConfig maps the kafka section onto the run-event producer
func (c *Config) ProducerConfig() *kafka.Config {
	k := c.Kafka
	breaker := circuit.DefaultConfig()
	if k.Breaker.MaxFailures > 0 {
		breaker.MaxFailures = k.Breaker.MaxFailures
	}
	if k.Breaker.ResetTimeout > 0 {
		breaker.Timeout = k.Breaker.ResetTimeout
	}
	if k.Breaker.HalfOpenMax > 0 {
		breaker.MaxRequests = k.Breaker.HalfOpenMax
	}

	return &kafka.Config{
		Brokers:      k.Brokers,
		Topic:        k.Topic,
		ClientID:     k.ClientID,
		WriteTimeout: k.WriteTimeout,
		BatchTimeout: k.BatchTimeout,
		RequiredAcks: k.RequiredAcks,
		Breaker:      breaker,
	}
}
