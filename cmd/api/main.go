package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rzzdr/economic-scenario-generator/config"
	"github.com/rzzdr/economic-scenario-generator/internal/esg"
	"github.com/rzzdr/economic-scenario-generator/internal/kafka"
	"github.com/rzzdr/economic-scenario-generator/internal/websocket"
	"github.com/rzzdr/economic-scenario-generator/pkg/api"
	"github.com/rzzdr/economic-scenario-generator/pkg/metrics"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("api.main")
	defer log.Sync()
	log.Infof("Starting Economic Scenario Generator API %s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metrics.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled && cfg.Metrics.Prometheus.Port != cfg.API.Port {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, registry)
		go func() {
			if err := promServer.Start(); err != nil {
				log.Errorf("Prometheus server error: %v", err)
			}
		}()
	}

	serviceOpts := []esg.ServiceOption{esg.WithMetrics(recorder)}
	serverOpts := []api.Option{
		api.WithRecorder(recorder),
		api.WithMetricsHandler(registry),
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producerCfg := cfg.ProducerConfig()
		if err := kafka.Ping(ctx, producerCfg.Brokers, 5*time.Second); err != nil {
			log.Warnf("Kafka is not reachable yet, publishing will be attempted per run: %v", err)
		}
		producer, err = kafka.NewProducer(producerCfg, recorder)
		if err != nil {
			log.Fatalf("Failed to create Kafka producer: %v", err)
		}
		serviceOpts = append(serviceOpts, esg.WithPublisher(producer))
		serverOpts = append(serverOpts, api.WithHealthCheck("kafka", func() interface{} {
			return producer.BreakerStats()
		}))
	}

	if cfg.WebSocket.Enabled {
		hub := websocket.NewHub(recorder)
		go hub.Run(ctx)
		serviceOpts = append(serviceOpts, esg.WithPublisher(hub))
		serverOpts = append(serverOpts,
			api.WithRunFeed(cfg.WebSocket.Path, http.HandlerFunc(hub.HandleWebSocket)),
			api.WithHealthCheck("run_feed", func() interface{} {
				return map[string]int{"subscribers": hub.ClientCount()}
			}),
		)
	}

	if admission := cfg.AdmissionController(); admission != nil {
		serviceOpts = append(serviceOpts, esg.WithAdmission(admission))
		serverOpts = append(serverOpts, api.WithHealthCheck("admission", func() interface{} {
			return admission.Stats()
		}))
	}

	service := esg.NewService(cfg.ServiceConfig(), serviceOpts...)

	apiServer := api.NewServer(
		api.Config{
			Host:         cfg.API.Host,
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			Version:      version,
			RateLimit:    cfg.API.RateLimit,
			RateBurst:    cfg.API.RateBurst,
			CORS: api.CORSConfig{
				AllowedOrigins: cfg.API.CORS.AllowedOrigins,
				AllowedMethods: cfg.API.CORS.AllowedMethods,
				AllowedHeaders: cfg.API.CORS.AllowedHeaders,
			},
		},
		service,
		serverOpts...,
	)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.API.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}

	// Delivers queued run events, then stops the run feed hub
	service.Flush()
	cancel()

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("Kafka producer shutdown error: %v", err)
		}
	}

	if promServer != nil {
		if err := promServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
