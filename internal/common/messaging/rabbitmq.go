package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/logger"
	"github.com/sirupsen/logrus"
)

// Handler processes one delivery. A non-nil error requeues the message.
type Handler func(body []byte, routingKey string) error

// Publisher is the part of a Client the pipeline needs
type Publisher interface {
	// PublishJSON publishes data as JSON to the exchange with the given routing key.
	// An empty exchange means the configured one.
	PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error
}

// Client defines the messaging client interface
type Client interface {
	Publisher

	// DeclareQueue declares a durable queue with the given name
	DeclareQueue(name string) error

	// BindQueue binds a queue to an exchange with the given routing key
	BindQueue(queueName, exchange, routingKey string) error

	// Consume delivers messages from the given queue to handler until Close
	Consume(queueName string, handler Handler) error

	// PurgeQueue drops every message waiting in the queue
	PurgeQueue(queueName string) error

	// GetConfig returns the configuration the client was built with
	GetConfig() *config.RabbitMQConfig

	// Close closes the connection
	Close() error
}

// Binding declares a queue and the routing keys it receives
type Binding struct {
	Queue       string
	RoutingKeys []string
}

// Setup declares each queue and binds it to the client's exchange
func Setup(c Client, bindings ...Binding) error {
	exchange := c.GetConfig().Exchange
	for _, b := range bindings {
		if err := c.DeclareQueue(b.Queue); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
		}
		for _, key := range b.RoutingKeys {
			if err := c.BindQueue(b.Queue, exchange, key); err != nil {
				return fmt.Errorf("failed to bind queue %s to exchange %s with key %s: %w", b.Queue, exchange, key, err)
			}
		}
	}
	return nil
}

// RabbitMQClient implements the Client interface using RabbitMQ
type RabbitMQClient struct {
	mu        sync.RWMutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    *config.RabbitMQConfig
	log       logrus.FieldLogger
	consumers map[string]Handler
	closed    chan struct{}
	closeOnce sync.Once
}

// NewRabbitMQClient creates a new RabbitMQ client
func NewRabbitMQClient(cfg *config.RabbitMQConfig, log logrus.FieldLogger) (*RabbitMQClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq URL is required")
	}

	if cfg.Exchange == "" {
		return nil, errors.New("rabbitmq exchange name is required")
	}

	client := &RabbitMQClient{
		config:    cfg,
		log:       logger.NewComponentLogger(log, "messaging"),
		consumers: make(map[string]Handler),
		closed:    make(chan struct{}),
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

// connect establishes a connection, opens a channel and declares the exchange
func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.config.Exchange,        // name
		config.ExchangeTypeTopic, // type
		true,                     // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare an exchange: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	go c.handleReconnect(conn.NotifyClose(make(chan *amqp.Error, 1)))

	return nil
}

// handleReconnect redials when the connection drops and restores consumers
func (c *RabbitMQClient) handleReconnect(connErrChan chan *amqp.Error) {
	amqpErr, ok := <-connErrChan
	if !ok || amqpErr == nil {
		// closed on purpose
		return
	}

	c.log.WithError(amqpErr).Warn("RabbitMQ connection closed, attempting to reconnect")

	for i := 0; i < c.config.ReconnectRetries; i++ {
		select {
		case <-c.closed:
			return
		case <-time.After(c.config.ReconnectTimeout):
		}

		if err := c.connect(); err != nil {
			c.log.WithFields(logrus.Fields{
				"attempt":     i + 1,
				"max_attempt": c.config.ReconnectRetries,
			}).WithError(err).Warn("Failed to reconnect to RabbitMQ")
			continue
		}

		c.log.Info("Successfully reconnected to RabbitMQ")
		c.restoreConsumers()
		return
	}

	c.log.WithField("attempts", c.config.ReconnectRetries).Error("Failed to reconnect to RabbitMQ after multiple attempts")
}

func (c *RabbitMQClient) restoreConsumers() {
	c.mu.RLock()
	consumers := make(map[string]Handler, len(c.consumers))
	for q, h := range c.consumers {
		consumers[q] = h
	}
	c.mu.RUnlock()

	for queue, handler := range consumers {
		if err := c.startConsumer(queue, handler); err != nil {
			c.log.WithField("queue", queue).WithError(err).Error("Failed to restore consumer")
		}
	}
}

func (c *RabbitMQClient) ch() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// PublishJSON publishes a JSON message to the exchange with the given routing key
func (c *RabbitMQClient) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON message: %w", err)
	}

	if exchange == "" {
		exchange = c.config.Exchange
	}

	return c.ch().PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// DeclareQueue declares a queue with the given name
func (c *RabbitMQClient) DeclareQueue(name string) error {
	_, err := c.ch().QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)

	return err
}

// BindQueue binds a queue to an exchange with the given routing key
func (c *RabbitMQClient) BindQueue(queueName, exchange, routingKey string) error {
	if exchange == "" {
		exchange = c.config.Exchange
	}

	return c.ch().QueueBind(
		queueName,  // queue name
		routingKey, // routing key
		exchange,   // exchange
		false,      // no-wait
		nil,        // arguments
	)
}

// Consume consumes messages from the given queue
func (c *RabbitMQClient) Consume(queueName string, handler Handler) error {
	if err := c.startConsumer(queueName, handler); err != nil {
		return err
	}

	c.mu.Lock()
	c.consumers[queueName] = handler
	c.mu.Unlock()
	return nil
}

func (c *RabbitMQClient) startConsumer(queueName string, handler Handler) error {
	// Ensure queue exists
	if err := c.DeclareQueue(queueName); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := c.ch().Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body, msg.RoutingKey); err != nil {
				c.log.WithFields(logrus.Fields{
					"queue":       queueName,
					"routing_key": msg.RoutingKey,
				}).WithError(err).Error("Error processing message")
				// Negative acknowledgement, message will be requeued
				msg.Nack(false, !msg.Redelivered)
				continue
			}
			msg.Ack(false)
		}
	}()

	return nil
}

// PurgeQueue removes all messages from the given queue
func (c *RabbitMQClient) PurgeQueue(queueName string) error {
	n, err := c.ch().QueuePurge(queueName, false)
	if err != nil {
		return fmt.Errorf("failed to purge queue %s: %w", queueName, err)
	}
	c.log.WithFields(logrus.Fields{
		"queue":  queueName,
		"purged": n,
	}).Debug("Queue purged")
	return nil
}

// GetConfig returns the RabbitMQ configuration
func (c *RabbitMQClient) GetConfig() *config.RabbitMQConfig {
	return c.config
}

// Close closes the connection and channel
func (c *RabbitMQClient) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
