package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rizkirmdhn/catcast/internal/common/config"
)

// MemoryClient is an in-process Client with topic routing. Deliveries run
// synchronously on the publishing goroutine; messages for a queue without a
// consumer wait until one registers. It stands in for the broker in tests.
type MemoryClient struct {
	mu        sync.Mutex
	config    *config.RabbitMQConfig
	bindings  map[string][]string
	consumers map[string]Handler
	pending   map[string][]message
	closed    bool
}

type message struct {
	body       []byte
	routingKey string
}

// NewMemoryClient returns an empty in-process client
func NewMemoryClient(cfg *config.RabbitMQConfig) *MemoryClient {
	if cfg == nil {
		cfg = &config.RabbitMQConfig{Exchange: config.ExchangeName}
	}
	return &MemoryClient{
		config:    cfg,
		bindings:  make(map[string][]string),
		consumers: make(map[string]Handler),
		pending:   make(map[string][]message),
	}
}

// PublishJSON routes data to every queue bound with a matching pattern
func (m *MemoryClient) PublishJSON(ctx context.Context, _ string, routingKey string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON message: %w", err)
	}

	type delivery struct {
		handler Handler
		queue   string
	}
	var deliveries []delivery

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("messaging: client closed")
	}
	for queue, patterns := range m.bindings {
		if !matchesAny(patterns, routingKey) {
			continue
		}
		if h, ok := m.consumers[queue]; ok {
			deliveries = append(deliveries, delivery{handler: h, queue: queue})
			continue
		}
		m.pending[queue] = append(m.pending[queue], message{body: body, routingKey: routingKey})
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		if err := d.handler(body, routingKey); err != nil {
			return fmt.Errorf("queue %s: %w", d.queue, err)
		}
	}
	return nil
}

// DeclareQueue registers a queue
func (m *MemoryClient) DeclareQueue(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[name]; !ok {
		m.bindings[name] = nil
	}
	return nil
}

// BindQueue adds a routing pattern to a queue
func (m *MemoryClient) BindQueue(queueName, _ string, routingKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[queueName] = append(m.bindings[queueName], routingKey)
	return nil
}

// Consume sets the queue's handler and flushes what was waiting
func (m *MemoryClient) Consume(queueName string, handler Handler) error {
	m.mu.Lock()
	if _, ok := m.bindings[queueName]; !ok {
		m.bindings[queueName] = nil
	}
	m.consumers[queueName] = handler
	backlog := m.pending[queueName]
	delete(m.pending, queueName)
	m.mu.Unlock()

	for _, msg := range backlog {
		if err := handler(msg.body, msg.routingKey); err != nil {
			return fmt.Errorf("queue %s: %w", queueName, err)
		}
	}
	return nil
}

// PurgeQueue drops undelivered messages
func (m *MemoryClient) PurgeQueue(queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, queueName)
	return nil
}

// Pending returns how many messages wait for a consumer on queueName
func (m *MemoryClient) Pending(queueName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[queueName])
}

// GetConfig returns the configuration
func (m *MemoryClient) GetConfig() *config.RabbitMQConfig {
	return m.config
}

// Close stops further publishing
func (m *MemoryClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func matchesAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if TopicMatch(p, key) {
			return true
		}
	}
	return false
}

// TopicMatch reports whether a dotted routing key matches an AMQP topic
// pattern, where "*" is exactly one word and "#" is zero or more words.
func TopicMatch(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
