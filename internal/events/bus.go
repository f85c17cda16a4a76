package events

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Topic names an event stream
type Topic string

const (
	TopicUpdateAvailable Topic = "update-available"
	TopicOnline          Topic = "online"
	TopicOffline         Topic = "offline"
	// TopicStateChange carries models.StateChange
	TopicStateChange Topic = "state-change"
	// TopicNotification carries models.Notification
	TopicNotification Topic = "notification"
)

// Event is delivered to every subscriber of its topic
type Event struct {
	Topic   Topic
	Payload any
}

// Handler receives events. Handlers run on the publisher's goroutine and must not block.
type Handler func(Event)

// Bus is a multi-listener publish/subscribe hub
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]Handler
	logger *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic]map[int]Handler),
		logger: logger,
	}
}

// Subscribe registers fn for topic and returns a function that removes it
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

// Publish delivers payload to the current subscribers of topic in subscription order.
// A panicking handler is logged and does not affect the others.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[topic][id])
	}
	b.mu.RUnlock()

	event := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("topic", string(event.Topic)),
				zap.Any("panic", r))
		}
	}()
	h(event)
}

// Subscribers returns the number of handlers registered for topic
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
