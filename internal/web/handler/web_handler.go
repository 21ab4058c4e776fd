package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/metrics"
	"github.com/rizkirmdhn/catcast/internal/web/websocket"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg     *config.Config
	log     *logrus.Logger
	message messaging.Client
	wsHub   *websocket.Hub
	tracker *Tracker
}

// NewHandler creates the panel handler, starts its WebSocket hub and
// subscribes to run events
func NewHandler(cfg *config.Config, log *logrus.Logger, msg messaging.Client) (*Handler, error) {
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	handler := &Handler{
		cfg:     cfg,
		log:     log,
		message: msg,
		wsHub:   wsHub,
		tracker: NewTracker(),
	}

	if err := handler.setupMessaging(); err != nil {
		wsHub.Stop()
		return nil, err
	}

	return handler, nil
}

// Close stops the hub and disconnects WebSocket clients
func (h *Handler) Close() {
	h.wsHub.Stop()
}

// setupMessaging declares both queues, so commands wait for a worker that
// is not up yet, and consumes the log queue
func (h *Handler) setupMessaging() error {
	rc := h.cfg.GetRabbitMQConfig()
	if err := messaging.Setup(h.message,
		messaging.Binding{Queue: rc.Queue.Generator, RoutingKeys: []string{config.RoutingCommandGenerator}},
		messaging.Binding{Queue: rc.Queue.Log, RoutingKeys: []string{config.RoutingLogGenerator}},
	); err != nil {
		return err
	}

	return h.message.Consume(rc.Queue.Log, h.HandleLog)
}

// HandleLog folds a run event into the stats, the metrics and the WebSocket stream
func (h *Handler) HandleLog(message []byte, routingKey string) error {
	var event models.GenerateLog
	if err := json.Unmarshal(message, &event); err != nil {
		// Malformed events are dropped, requeueing would not fix them
		h.log.WithFields(logrus.Fields{
			"component":   "web_handler",
			"routing_key": routingKey,
		}).WithError(err).Warn("Failed to unmarshal run event")
		return nil
	}

	h.tracker.Apply(event)
	metrics.Observe(event)

	h.log.WithFields(logrus.Fields{
		"component": "web_handler",
		"run_id":    event.RunID,
		"status":    event.Status,
		"page":      event.Page,
	}).Debug("Run event received")

	h.broadcast(gin.H{
		"type":    "generator_log",
		"runId":   event.RunID,
		"status":  event.Status,
		"page":    event.Page,
		"channel": event.Channel,
		"stream":  event.Stream,
		"error":   event.Error,
		"stats":   event.Stats,
	})
	return nil
}

// RegisterRoutes registers all the routes for the web handler
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", websocket.WebSocketHandler(h.wsHub, h.log))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.HealthHandler())

	api := r.Group("/api")
	{
		api.POST("/generate", h.GenerateHandler())
		api.POST("/stop", h.StopHandler())
		api.GET("/stats", h.GetStatsHandler())
	}
}

// generateRequest accepts pages as "1-50,480" or as a JSON array
type generateRequest struct {
	Pages json.RawMessage `json:"pages"`
}

func (r generateRequest) pageList() ([]int, error) {
	raw := strings.TrimSpace(string(r.Pages))
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var list []int
	if err := json.Unmarshal(r.Pages, &list); err == nil {
		return config.ParsePages(config.FormatPages(list))
	}

	var s string
	if err := json.Unmarshal(r.Pages, &s); err != nil {
		return nil, err
	}
	return config.ParsePages(s)
}

// GenerateHandler queues a playlist run
func (h *Handler) GenerateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid request body",
				})
				return
			}
		}

		pages, err := req.pageList()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid pages: " + err.Error(),
			})
			return
		}

		command := models.GenerateCommand{
			Action: models.StartGenerateAction,
			RunID:  uuid.New().String(),
			Data:   models.Data{Pages: pages},
		}

		if err := h.publishCommand(c.Request.Context(), command); err != nil {
			h.log.WithField("component", "web_handler").WithError(err).Error("Failed to publish start command")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to queue playlist run",
			})
			return
		}

		h.tracker.Queued(command.RunID)

		pageLabel := h.cfg.Playlist.Pages
		if len(pages) > 0 {
			pageLabel = config.FormatPages(pages)
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Playlist run queued",
			"runId":   command.RunID,
			"pages":   pageLabel,
		})

		h.broadcastStatus("Playlist run queued", "info")
	}
}

// StopHandler asks the worker to cancel the active run
func (h *Handler) StopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		command := models.GenerateCommand{Action: models.StopGenerateAction}

		if err := h.publishCommand(c.Request.Context(), command); err != nil {
			h.log.WithField("component", "web_handler").WithError(err).Error("Failed to publish stop command")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to stop playlist run",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Stop requested",
		})

		h.broadcastStatus("Playlist run stop requested", "info")
	}
}

// GetStatsHandler returns the state of the most recent run
func (h *Handler) GetStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"run":     h.tracker.Snapshot(),
			"clients": h.wsHub.ClientCount(),
		})
	}
}

// HealthHandler reports liveness
func (h *Handler) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// publishCommand publishes a command to the generator routing key
func (h *Handler) publishCommand(ctx context.Context, command models.GenerateCommand) error {
	return h.message.PublishJSON(ctx, h.message.GetConfig().Exchange, config.RoutingCommandGenerator, command)
}

// broadcastStatus broadcasts a status message to all WebSocket clients
func (h *Handler) broadcastStatus(message string, status string) {
	h.broadcast(gin.H{
		"type":    "status",
		"message": message,
		"status":  status,
	})
}

func (h *Handler) broadcast(payload gin.H) {
	wsMessage, err := json.Marshal(payload)
	if err != nil {
		h.log.WithField("component", "web_handler").WithError(err).Error("Failed to marshal WebSocket message")
		return
	}
	h.wsHub.Broadcast(wsMessage)
}
