package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// CommandHandler is a function type for command handlers
type CommandHandler func(context.Context, *Session, model.Command) (interface{}, error)

// Session represents an individual client: the logged in user and the selected portfolio.
type Session struct {
	ID              string
	DataManager     *data.DataManager
	mu              sync.RWMutex
	user            *model.User
	portfolio       *model.Portfolio
	lastActivity    time.Time
	commandHandlers map[string]map[string]CommandHandler
	logger          *log.Logger
}

// NewSession creates a new Session instance
func NewSession(id string, dataManager *data.DataManager, logger *log.Logger) *Session {
	ctx := context.Background()
	logger.Debug(ctx, "Creating new Session", log.Fields{"sessionID": id})

	s := &Session{
		ID:           id,
		DataManager:  dataManager,
		lastActivity: time.Now(),
		logger:       logger,
	}
	s.initCommandHandlers()
	return s
}

// initCommandHandlers initializes the command handlers map
func (s *Session) initCommandHandlers() {
	s.commandHandlers = map[string]map[string]CommandHandler{
		"user":      initUserCommandHandlers(),
		"portfolio": initPortfolioCommandHandlers(),
		"node":      initNodeCommandHandlers(),
		"asset":     initAssetCommandHandlers(),
		"system":    initSystemCommandHandlers(),
	}
}

// CommandRun validates and executes a command within the session context
func (s *Session) CommandRun(ctx context.Context, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Running command", log.Fields{"sessionID": s.ID, "scope": cmd.Scope, "operation": cmd.Operation})
	s.Touch()

	sc := NewCommand(cmd, s.logger)
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	handler, ok := s.commandHandlers[cmd.Scope][cmd.Operation]
	if !ok {
		s.logger.Error(ctx, "Invalid command operation", log.Fields{"scope": cmd.Scope, "operation": cmd.Operation})
		return nil, fmt.Errorf("%w: invalid command %s %s", model.ErrInvalidInput, cmd.Scope, cmd.Operation)
	}

	result, err := handler(ctx, s, cmd)
	if err != nil && !errors.Is(err, ErrExit) {
		s.logger.Error(ctx, "Command execution failed", log.Fields{"sessionID": s.ID, "error": err})
	}
	return result, err
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the last command or request.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// UserGet retrieves the logged in user. The session stays anonymous until a login.
func (s *Session) UserGet() (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, fmt.Errorf("no user logged in: %w", model.ErrUnauthenticated)
	}
	return s.user, nil
}

// User returns the logged in user or nil for anonymous sessions.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// UserSet sets the current user and clears the selected portfolio
func (s *Session) UserSet(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.portfolio = nil
}

// PortfolioGet retrieves the selected portfolio
func (s *Session) PortfolioGet() (*model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.portfolio == nil {
		return nil, fmt.Errorf("%w: no portfolio selected", model.ErrInvalidInput)
	}
	return s.portfolio, nil
}

// PortfolioSet sets the selected portfolio; nil clears it
func (s *Session) PortfolioSet(portfolio *model.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = portfolio
}

// Prompt returns the "user @ portfolio" label of the session.
func (s *Session) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, portfolio := "", ""
	if s.user != nil {
		user = s.user.Username
	}
	if s.portfolio != nil {
		portfolio = s.portfolio.Name
	}
	return fmt.Sprintf("%s @ %s", user, portfolio)
}

// initUserCommandHandlers initializes user command handlers
func initUserCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"add":    handleUserAdd,
		"update": handleUserUpdate,
		"delete": handleUserDelete,
		"login":  handleUserLogin,
		"logout": handleUserLogout,
	}
}

// initPortfolioCommandHandlers initializes portfolio command handlers
func initPortfolioCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"add":        handlePortfolioAdd,
		"update":     handlePortfolioUpdate,
		"delete":     handlePortfolioDelete,
		"permission": handlePortfolioPermission,
		"import":     handlePortfolioImport,
		"export":     handlePortfolioExport,
		"select":     handlePortfolioSelect,
		"list":       handlePortfolioList,
		"view":       handlePortfolioView,
	}
}

// initNodeCommandHandlers initializes node command handlers
func initNodeCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"add":     handleNodeAdd,
		"update":  handleNodeUpdate,
		"move":    handleNodeMove,
		"reorder": handleNodeReorder,
		"hide":    handleNodeHide,
		"show":    handleNodeShow,
		"delete":  handleNodeDelete,
		"find":    handleNodeFind,
	}
}

// initAssetCommandHandlers initializes asset command handlers
func initAssetCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"add":    handleAssetAdd,
		"list":   handleAssetList,
		"get":    handleAssetGet,
		"delete": handleAssetDelete,
	}
}

// initSystemCommandHandlers initializes system command handlers
func initSystemCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"exit": handleSystemExit,
		"quit": handleSystemExit,
	}
}

func handleSystemExit(ctx context.Context, s *Session, _ model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Exit requested", log.Fields{"sessionID": s.ID})
	return nil, ErrExit
}
