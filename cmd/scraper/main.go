package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/logger"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/scraper/service"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load the configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(cfg)

	log.WithFields(logrus.Fields{
		"component": "scraper_main",
		"config":    fmt.Sprintf("%+v", cfg.Scraper),
	}).Debug("Scraper configuration loaded")

	// Initialize RabbitMQ connection
	messageClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMq, log)
	if err != nil {
		log.WithFields(logrus.Fields{
			"component": "scraper_main",
			"error":     err,
		}).Fatal("Failed to initialize RabbitMQ")
	}
	defer messageClient.Close()

	// Browser and HTTP clients live as long as the worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, release := service.BuildPipeline(ctx, cfg, log, messageClient)
	defer release()

	generatorService, err := service.NewGeneratorService(cfg, log, messageClient, pipeline)
	if err != nil {
		log.WithField("component", "scraper_main").WithError(err).Fatal("Failed to create generator service")
	}

	if err := generatorService.Start(); err != nil {
		log.WithFields(logrus.Fields{
			"component": "scraper_main",
			"error":     err,
		}).Fatal("Failed to start generator service")
	}

	metricsServer := serveMetrics(cfg.App.MetricsAddr, log)

	// Block until we receive a termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithFields(logrus.Fields{
		"component": "scraper_main",
		"signal":    sig,
	}).Info("Received signal, shutting down")

	generatorService.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}
}

// serveMetrics exposes Prometheus metrics on addr, or does nothing when addr is empty
func serveMetrics(addr string, log *logrus.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("component", "scraper_main").WithError(err).Error("Metrics server failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"component": "scraper_main",
		"addr":      addr,
	}).Info("Serving metrics")
	return srv
}
