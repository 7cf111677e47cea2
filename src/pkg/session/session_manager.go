package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

const (
	sessionIDLength        = 32
	defaultCleanupInterval = 5 * time.Minute
	DefaultSessionTimeout  = 30 * time.Minute
)

// ErrClosed is returned by SessionRun after Close.
var ErrClosed = errors.New("session manager closed")

// SessionManager manages multiple concurrent sessions. Commands of all
// sessions run one at a time on a single executor goroutine.
type SessionManager struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	dataManager     *data.DataManager
	timeout         time.Duration
	cleanupInterval time.Duration
	commandQueue    chan commandExecution
	done            chan struct{}
	closeOnce       sync.Once
	logger          *log.Logger
}

// commandExecution represents a command to be executed in a session and the channel for its outcome
type commandExecution struct {
	ctx     context.Context
	session *Session
	command model.Command
	reply   chan commandResult
}

type commandResult struct {
	result interface{}
	err    error
}

// NewSessionManager starts the command execution goroutine and subscribes to data events.
// A timeout <= 0 uses DefaultSessionTimeout.
func NewSessionManager(dataManager *data.DataManager, timeout time.Duration, logger *log.Logger) *SessionManager {
	ctx := context.Background()
	logger.Info(ctx, "Creating new SessionManager", log.Fields{"timeout": timeout.String()})

	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		dataManager:     dataManager,
		timeout:         timeout,
		cleanupInterval: min(defaultCleanupInterval, timeout),
		commandQueue:    make(chan commandExecution),
		done:            make(chan struct{}),
		logger:          logger,
	}
	if dataManager.EventManager != nil {
		dataManager.EventManager.Subscribe(event.UserDeleted, sm.handleUserDeleted)
		dataManager.EventManager.Subscribe(event.PortfolioUpdated, sm.handlePortfolioUpdated)
		dataManager.EventManager.Subscribe(event.PortfolioDeleted, sm.handlePortfolioDeleted)
	}
	go sm.commandExecutor()

	return sm
}

// SessionAdd creates a new anonymous session and returns its ID
func (sm *SessionManager) SessionAdd() (string, error) {
	ctx := context.Background()

	sessionID, err := generateSessionID()
	if err != nil {
		sm.logger.Error(ctx, "Failed to generate session ID", log.Fields{"error": err})
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = NewSession(sessionID, sm.dataManager, sm.logger)
	sm.mu.Unlock()

	sm.logger.Info(ctx, "New session added", log.Fields{"sessionID": sessionID})
	return sessionID, nil
}

// SessionGet retrieves a session by its ID
func (sm *SessionManager) SessionGet(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	return session, exists
}

// SessionDelete removes a session
func (sm *SessionManager) SessionDelete(sessionID string) {
	ctx := context.Background()

	sm.mu.Lock()
	_, exists := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if !exists {
		sm.logger.Warn(ctx, "Attempted to delete non-existent session", log.Fields{"sessionID": sessionID})
		return
	}
	sm.logger.Info(ctx, "Session deleted", log.Fields{"sessionID": sessionID})
}

// SessionCount returns the number of live sessions
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// SessionRun executes a command for a specific session
func (sm *SessionManager) SessionRun(ctx context.Context, sessionID string, cmd model.Command) (interface{}, error) {
	session, exists := sm.SessionGet(sessionID)
	if !exists {
		sm.logger.Warn(ctx, "Session not found", log.Fields{"sessionID": sessionID})
		return nil, fmt.Errorf("session not found: %w", model.ErrUnauthenticated)
	}

	sm.logger.Command(ctx, "Command received", log.Fields{
		"sessionID": sessionID,
		"scope":     cmd.Scope,
		"operation": cmd.Operation,
		"args":      redactArgs(cmd),
	})

	reply := make(chan commandResult, 1)
	select {
	case sm.commandQueue <- commandExecution{ctx: ctx, session: session, command: cmd, reply: reply}:
	case <-sm.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// commandExecutor processes commands from the queue
func (sm *SessionManager) commandExecutor() {
	for {
		select {
		case exec := <-sm.commandQueue:
			result, err := exec.session.CommandRun(exec.ctx, exec.command)
			exec.reply <- commandResult{result: result, err: err}
		case <-sm.done:
			return
		}
	}
}

// Run removes inactive sessions until ctx is cancelled or the manager is closed
func (sm *SessionManager) Run(ctx context.Context) error {
	sm.logger.Info(ctx, "Starting cleanup routine", log.Fields{"interval": sm.cleanupInterval.String()})

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			sm.cleanupInactiveSessions(now)
		case <-ctx.Done():
			sm.logger.Info(ctx, "Stopping cleanup routine", nil)
			return nil
		case <-sm.done:
			return nil
		}
	}
}

// Close stops the executor; pending and later SessionRun calls fail with ErrClosed
func (sm *SessionManager) Close() {
	sm.closeOnce.Do(func() {
		close(sm.done)
	})
}

// cleanupInactiveSessions removes sessions idle for longer than the timeout
func (sm *SessionManager) cleanupInactiveSessions(now time.Time) {
	ctx := context.Background()

	sm.mu.Lock()
	var expired []string
	for id, session := range sm.sessions {
		if now.Sub(session.LastActivity()) > sm.timeout {
			expired = append(expired, id)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	if len(expired) > 0 {
		sm.logger.Info(ctx, "Removed inactive sessions", log.Fields{"count": len(expired)})
	}
}

// sessionsWhere returns the sessions matching the predicate
func (sm *SessionManager) sessionsWhere(match func(*Session) bool) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var out []*Session
	for _, s := range sm.sessions {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

func (sm *SessionManager) handleUserDeleted(ctx context.Context, e event.Event) {
	user, ok := e.Data.(*model.User)
	if !ok {
		return
	}
	for _, s := range sm.sessionsWhere(func(s *Session) bool {
		u := s.User()
		return u != nil && u.ID == user.ID
	}) {
		s.UserSet(nil)
		sm.logger.Info(ctx, "Logged out session of deleted user", log.Fields{"sessionID": s.ID})
	}
}

func selectedPortfolio(s *Session, id int) bool {
	p, err := s.PortfolioGet()
	return err == nil && p.ID == id
}

func (sm *SessionManager) handlePortfolioUpdated(ctx context.Context, e event.Event) {
	portfolio, ok := e.Data.(*model.Portfolio)
	if !ok {
		return
	}
	for _, s := range sm.sessionsWhere(func(s *Session) bool { return selectedPortfolio(s, portfolio.ID) }) {
		updated := *portfolio
		s.PortfolioSet(&updated)
	}
}

func (sm *SessionManager) handlePortfolioDeleted(ctx context.Context, e event.Event) {
	deleted, ok := e.Data.(data.PortfolioDeletedData)
	if !ok || deleted.Portfolio == nil {
		return
	}
	for _, s := range sm.sessionsWhere(func(s *Session) bool { return selectedPortfolio(s, deleted.Portfolio.ID) }) {
		s.PortfolioSet(nil)
	}
}

// redactArgs hides passwords from the command log
func redactArgs(cmd model.Command) []string {
	if cmd.Scope != "user" {
		return cmd.Args
	}
	args := append([]string(nil), cmd.Args...)
	switch cmd.Operation {
	case "add", "login":
		if len(args) > 1 {
			args[1] = "***"
		}
	case "update":
		if len(args) > 2 {
			args[2] = "***"
		}
	}
	return args
}

// generateSessionID creates a cryptographically secure random session ID
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
