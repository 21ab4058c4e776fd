package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/logger"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/web/handler"
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
		"component": "web_main",
		"config":    fmt.Sprintf("%+v", cfg.WebPanel),
	}).Debug("Web panel configuration loaded")

	// Initialize message consumer
	msgClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMq, log)
	if err != nil {
		log.WithFields(logrus.Fields{
			"component": "web_main",
			"error":     err,
		}).Fatal("Failed to create RabbitMQ client")
	}
	defer msgClient.Close()

	// Check environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	h, err := handler.NewHandler(cfg, log, msgClient)
	if err != nil {
		log.WithField("component", "web_main").WithError(err).Fatal("Failed to set up web handler")
	}
	defer h.Close()

	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.WebPanel.Host, strconv.Itoa(cfg.WebPanel.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"component": "web_main",
			"addr":      srv.Addr,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(logrus.Fields{
				"component": "web_main",
				"error":     err,
			}).Fatal("Failed to start server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithField("component", "web_main").WithError(err).Error("Server shutdown failed")
	}
}
