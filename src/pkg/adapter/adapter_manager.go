// Package adapter connects front ends (the interactive shell, the HTTP API) to sessions.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
)

// AdapterInstance represents an instance of an adapter
type AdapterInstance interface {
	// AdapterStart runs the adapter until ctx is cancelled or AdapterStop is called
	AdapterStart(ctx context.Context) error

	// AdapterStop terminates the adapter instance
	AdapterStop(ctx context.Context) error

	// GetType returns the type of the adapter
	GetType() string
}

// AdapterFactory creates new instances of adapters
type AdapterFactory func(am *AdapterManager) (AdapterInstance, error)

// AdapterManager manages all adapter instances and gives them access to sessions
type AdapterManager struct {
	mu             sync.Mutex
	factories      map[string]AdapterFactory
	instances      map[string]AdapterInstance
	nextID         int
	sessionManager *session.SessionManager
	logger         *log.Logger
}

// NewAdapterManager creates a new AdapterManager
func NewAdapterManager(sm *session.SessionManager, logger *log.Logger) *AdapterManager {
	return &AdapterManager{
		factories:      make(map[string]AdapterFactory),
		instances:      make(map[string]AdapterInstance),
		sessionManager: sm,
		logger:         logger,
	}
}

// AdapterRegister makes an adapter type available to AdapterAdd
func (am *AdapterManager) AdapterRegister(adapterType string, factory AdapterFactory) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.factories[adapterType] = factory
}

// AdapterAdd creates a new adapter instance and returns its id
func (am *AdapterManager) AdapterAdd(adapterType string) (string, AdapterInstance, error) {
	am.mu.Lock()
	factory, ok := am.factories[adapterType]
	am.mu.Unlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown adapter type: %s", model.ErrInvalidInput, adapterType)
	}

	instance, err := factory(am)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create %s adapter: %w", adapterType, err)
	}

	am.mu.Lock()
	am.nextID++
	id := fmt.Sprintf("%s-%d", adapterType, am.nextID)
	am.instances[id] = instance
	am.mu.Unlock()

	am.logger.Info(context.Background(), "Adapter added", log.Fields{"adapterID": id})
	return id, instance, nil
}

// AdapterGet returns an adapter instance by id
func (am *AdapterManager) AdapterGet(id string) (AdapterInstance, bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	instance, ok := am.instances[id]
	return instance, ok
}

// AdapterDelete stops an adapter instance and forgets it
func (am *AdapterManager) AdapterDelete(ctx context.Context, id string) error {
	am.mu.Lock()
	instance, ok := am.instances[id]
	delete(am.instances, id)
	am.mu.Unlock()
	if !ok {
		return fmt.Errorf("adapter %s: %w", id, model.ErrNotFound)
	}
	return instance.AdapterStop(ctx)
}

// SessionAdd creates a session for an adapter client
func (am *AdapterManager) SessionAdd() (string, error) {
	return am.sessionManager.SessionAdd()
}

// SessionGet retrieves a session by its ID
func (am *AdapterManager) SessionGet(sessionID string) (*session.Session, bool) {
	return am.sessionManager.SessionGet(sessionID)
}

// SessionDelete removes a session
func (am *AdapterManager) SessionDelete(sessionID string) {
	am.sessionManager.SessionDelete(sessionID)
}

// CommandRun runs a command in a session
func (am *AdapterManager) CommandRun(ctx context.Context, sessionID string, cmd model.Command) (interface{}, error) {
	return am.sessionManager.SessionRun(ctx, sessionID, cmd)
}

// Shutdown stops all adapter instances
func (am *AdapterManager) Shutdown(ctx context.Context) error {
	am.mu.Lock()
	instances := am.instances
	am.instances = make(map[string]AdapterInstance)
	am.mu.Unlock()

	var errs []error
	for id, instance := range instances {
		if err := instance.AdapterStop(ctx); err != nil {
			am.logger.Error(ctx, "Failed to stop adapter", log.Fields{"adapterID": id, "error": err})
			errs = append(errs, fmt.Errorf("adapter %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
