package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus"
)

// Runner executes one playlist run
type Runner interface {
	Run(ctx context.Context, runID string, pages []int) (*Summary, error)
}

// GeneratorService consumes generate commands and runs at most one
// pipeline at a time
type GeneratorService struct {
	rabbitCfg    *config.RabbitMQConfig
	defaultPages []int
	log          *logrus.Logger
	message      messaging.Client
	runner       Runner

	mu         sync.Mutex
	running    string
	cancelFunc context.CancelFunc
	// Wait for the active run on shutdown
	wg sync.WaitGroup
}

// NewGeneratorService creates a new GeneratorService
func NewGeneratorService(cfg *config.Config, logger *logrus.Logger, msg messaging.Client, runner Runner) (*GeneratorService, error) {
	pages, err := cfg.Playlist.PageList()
	if err != nil {
		return nil, fmt.Errorf("failed to parse default pages: %w", err)
	}
	return &GeneratorService{
		rabbitCfg:    cfg.GetRabbitMQConfig(),
		defaultPages: pages,
		log:          logger,
		message:      msg,
		runner:       runner,
	}, nil
}

// Start declares the queues and begins consuming commands
func (s *GeneratorService) Start() error {
	if err := messaging.Setup(s.message,
		messaging.Binding{Queue: s.rabbitCfg.Queue.Generator, RoutingKeys: []string{config.RoutingCommandGenerator}},
		messaging.Binding{Queue: s.rabbitCfg.Queue.Log, RoutingKeys: []string{config.RoutingLogGenerator}},
	); err != nil {
		return fmt.Errorf("failed to set up messaging: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"queue":     s.rabbitCfg.Queue.Generator,
		"component": "service",
	}).Info("Waiting for generate commands")

	return s.message.Consume(s.rabbitCfg.Queue.Generator, func(msg []byte, routingKey string) error {
		return s.handleCommand(msg)
	})
}

// Stop cancels the active run and waits for it to finish
func (s *GeneratorService) Stop() {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.mu.Unlock()

	// Drop commands that arrived while shutting down
	if err := s.message.PurgeQueue(s.rabbitCfg.Queue.Generator); err != nil {
		s.log.WithFields(logrus.Fields{
			"queue":     s.rabbitCfg.Queue.Generator,
			"component": "messaging",
		}).WithError(err).Error("Failed to purge generator queue")
	}

	s.wg.Wait()

	s.log.WithField("component", "service").Info("Generator service stopped gracefully")
}

// Running returns the id of the active run, or "" when idle
func (s *GeneratorService) Running() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the active run, if any, has finished
func (s *GeneratorService) Wait() {
	s.wg.Wait()
}

// handleCommand processes incoming commands
func (s *GeneratorService) handleCommand(msg []byte) error {
	var command models.GenerateCommand
	if err := json.Unmarshal(msg, &command); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"action":    command.Action,
		"run_id":    command.RunID,
		"pages":     command.Data.Pages,
		"component": "command_handler",
	}).Info("Received command")

	switch command.Action {
	case models.StartGenerateAction:
		return s.start(command)

	case models.StopGenerateAction:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancelFunc == nil {
			s.log.WithFields(logrus.Fields{
				"status":    "idle",
				"component": "command_handler",
			}).Info("No playlist run is active")
			return nil
		}
		s.log.WithFields(logrus.Fields{
			"status":    "stopping",
			"run_id":    s.running,
			"component": "command_handler",
		}).Info("Stopping playlist run")
		s.cancelFunc()
		s.cancelFunc = nil
		return nil

	default:
		return fmt.Errorf("unknown command: %s", command.Action)
	}
}

func (s *GeneratorService) start(command models.GenerateCommand) error {
	pages := s.defaultPages
	if len(command.Data.Pages) > 0 {
		for _, p := range command.Data.Pages {
			if p < 1 {
				return s.reject(command.RunID, fmt.Sprintf("invalid page %d", p))
			}
		}
		pages = config.UniquePages(command.Data.Pages)
	}

	runID := command.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	s.mu.Lock()
	if s.running != "" {
		active := s.running
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"run_id":    runID,
			"active":    active,
			"component": "command_handler",
		}).Warn("Playlist run already in progress, rejecting start command")
		return s.reject(runID, "run "+active+" already in progress")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = runID
	s.cancelFunc = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = ""
			s.cancelFunc = nil
			s.mu.Unlock()
			cancel()
		}()

		summary, err := s.runner.Run(ctx, runID, pages)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"run_id":    runID,
				"component": "service",
			}).WithError(err).Error("Playlist run failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"run_id":    runID,
			"emitted":   summary.Emitted(),
			"component": "service",
		}).Info("Playlist run finished")
	}()

	return nil
}

// reject answers a start command that cannot run. The command is acknowledged.
func (s *GeneratorService) reject(runID, reason string) error {
	event := models.GenerateLog{RunID: runID, Status: models.StatusRejected, Error: reason}
	if err := s.message.PublishJSON(context.Background(), s.rabbitCfg.Exchange, config.RoutingLogGenerator, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id":    runID,
			"component": "messaging",
		}).WithError(err).Warn("Failed to publish rejection")
	}
	return nil
}
