// internal/events/bus.go
package events

import (
	"sync"

	"go.uber.org/zap"

	"vr-datastreamer/internal/model"
)

// AllEvents subscribes to every event type
const AllEvents model.EventType = "*"

// Publisher is the publishing side of the bus
type Publisher interface {
	Publish(event model.Event)
}

// Bus manages event distribution
type Bus struct {
	subscribers map[model.EventType][]chan model.Event
	events      chan model.Event
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[model.EventType][]chan model.Event),
		events:      make(chan model.Event, 1000),
		done:        make(chan struct{}),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called
func (b *Bus) Start() {
	for {
		select {
		case event := <-b.events:
			b.distributeEvent(event)
		case <-b.done:
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.mutex.Lock()
		defer b.mutex.Unlock()
		for eventType, subscribers := range b.subscribers {
			for _, subscriber := range subscribers {
				close(subscriber)
			}
			delete(b.subscribers, eventType)
		}
	})
}

// Publish publishes an event without blocking
func (b *Bus) Publish(event model.Event) {
	select {
	case <-b.done:
		return
	default:
	}

	select {
	case b.events <- event:
	default:
		b.logger.Warn("Event bus full, dropping event", zap.String("event_type", string(event.Type)))
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents
func (b *Bus) Subscribe(eventType model.EventType) <-chan model.Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscriber := make(chan model.Event, 100)
	select {
	case <-b.done:
		close(subscriber)
		return subscriber
	default:
	}

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes and closes a subscription
func (b *Bus) Unsubscribe(eventType model.EventType, ch <-chan model.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscribers := b.subscribers[eventType]
	for i, subscriber := range subscribers {
		if subscriber == ch {
			close(subscriber)
			b.subscribers[eventType] = append(subscribers[:i], subscribers[i+1:]...)
			return
		}
	}
}

func (b *Bus) distributeEvent(event model.Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, key := range []model.EventType{event.Type, AllEvents} {
		for _, subscriber := range b.subscribers[key] {
			select {
			case subscriber <- event:
			default:
				// Slow subscriber, skip
			}
		}
	}
}
