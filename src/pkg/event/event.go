// Package event handles triggering of operations without direct dependency
package event

import (
	"context"
	"sync"

	"portfoliotree/app/src/pkg/log"
)

// EventType represents the type of event
type EventType int

const (
	UserDeleted EventType = iota
	PortfolioAdded
	PortfolioUpdated
	PortfolioDeleted
	NodeDeleted
	AssetDeleted
)

func (t EventType) String() string {
	switch t {
	case UserDeleted:
		return "user_deleted"
	case PortfolioAdded:
		return "portfolio_added"
	case PortfolioUpdated:
		return "portfolio_updated"
	case PortfolioDeleted:
		return "portfolio_deleted"
	case NodeDeleted:
		return "node_deleted"
	case AssetDeleted:
		return "asset_deleted"
	default:
		return "unknown"
	}
}

// Event represents an event with its type and associated data
type Event struct {
	Type EventType
	Data interface{}
}

// EventHandler handles one event. ctx keeps the values of the publishing call
// but is not cancelled with it: handlers outlive the request that caused them.
type EventHandler func(ctx context.Context, e Event)

// EventManager fans events out to subscribers on their own goroutines
type EventManager struct {
	subscribers map[EventType][]EventHandler
	mu          sync.RWMutex
	pending     sync.WaitGroup
	closed      bool
	logger      *log.Logger
}

// NewEventManager creates a new EventManager instance
func NewEventManager(logger *log.Logger) *EventManager {
	return &EventManager{
		subscribers: make(map[EventType][]EventHandler),
		logger:      logger,
	}
}

// Subscribe adds a new event handler for a specific event type
func (em *EventManager) Subscribe(eventType EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.subscribers[eventType] = append(em.subscribers[eventType], handler)
}

// Publish starts every handler subscribed to the event type. It reports false
// when the manager is closed and the event was dropped.
func (em *EventManager) Publish(ctx context.Context, e Event) bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	if em.closed {
		em.logger.Warn(ctx, "Event dropped after close", log.Fields{"event": e.Type.String()})
		return false
	}

	handlerCtx := context.WithoutCancel(ctx)
	handlers := em.subscribers[e.Type]
	em.logger.Debug(ctx, "Publishing event", log.Fields{"event": e.Type.String(), "handlers": len(handlers)})
	for _, h := range handlers {
		em.pending.Add(1)
		go em.dispatch(handlerCtx, h, e)
	}
	return true
}

func (em *EventManager) dispatch(ctx context.Context, h EventHandler, e Event) {
	defer em.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			em.logger.Error(ctx, "Panic in event handler", log.Fields{
				"event": e.Type.String(),
				"panic": r,
			})
		}
	}()
	h(ctx, e)
}

// Wait blocks until every handler started so far has returned
func (em *EventManager) Wait() {
	em.pending.Wait()
}

// Close drops later events and waits for the running handlers. Storage must
// stay open until Close returns.
func (em *EventManager) Close() {
	em.mu.Lock()
	em.closed = true
	em.mu.Unlock()
	em.pending.Wait()
}
