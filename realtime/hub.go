package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/sirupsen/logrus"
)

// Handler receives one event of a subscribed topic.
type Handler func(ctx context.Context, msg config.BatchEventMessage)

type subscription struct {
	id      uint64
	handler Handler
}

// Hub fans batch events out to in-process subscribers by exact topic.
// Deliveries on one topic never overlap, so handlers see events in the
// order they were published.
type Hub struct {
	Logger *logrus.Logger

	mu     sync.RWMutex
	nextId uint64
	subs   map[string][]subscription
	gates  map[string]*sync.Mutex
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		Logger: logger,
		subs:   map[string][]subscription{},
		gates:  map[string]*sync.Mutex{},
	}
}

// Subscribe registers handler on topic. The returned func removes it and is
// safe to call more than once.
func (h *Hub) Subscribe(topic string, handler Handler) func() {
	h.mu.Lock()
	h.nextId++
	id := h.nextId
	h.subs[topic] = append(h.subs[topic], subscription{id: id, handler: handler})
	if _, ok := h.gates[topic]; !ok {
		h.gates[topic] = &sync.Mutex{}
	}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(topic, id) })
	}
}

func (h *Hub) remove(topic string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.subs[topic]
	next := make([]subscription, 0, len(current))
	for _, s := range current {
		if s.id != id {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(h.subs, topic)
		delete(h.gates, topic)
		return
	}
	h.subs[topic] = next
}

// Subscribers returns how many handlers listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Publish delivers msg synchronously to every handler of msg.Topic.
func (h *Hub) Publish(ctx context.Context, msg config.BatchEventMessage) {
	h.mu.RLock()
	handlers := append([]subscription(nil), h.subs[msg.Topic]...)
	gate := h.gates[msg.Topic]
	h.mu.RUnlock()
	if len(handlers) == 0 || gate == nil {
		return
	}

	gate.Lock()
	defer gate.Unlock()
	for _, s := range handlers {
		h.deliver(ctx, s.handler, msg)
	}
}

func (h *Hub) deliver(ctx context.Context, handler Handler, msg config.BatchEventMessage) {
	defer func() {
		if r := recover(); r != nil {
			config.LogError(h.Logger, "hub.go", "deliver", "handler panic", msg.Topic, fmt.Errorf("%v", r))
		}
	}()
	handler(ctx, msg)
}

// Deliver lets the hub stand in for the broker as the outbox sink.
func (h *Hub) Deliver(ctx context.Context, msg config.BatchEventMessage) (string, error) {
	h.Publish(ctx, msg)
	return fmt.Sprintf("local-%d", msg.ID), nil
}
