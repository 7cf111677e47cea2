package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
)

// AdapterTypeCLI is the registered type of the CLI adapter
const AdapterTypeCLI = "cli"

// CLIAdapter provides command-line interface support for managing multiple CLI connections
type CLIAdapter struct {
	sessions       map[string]*session.Session
	sessionMutex   sync.RWMutex
	adapterManager *AdapterManager
	logger         *log.Logger
}

// NewCLIAdapter creates a new instance of CLIAdapter
func NewCLIAdapter(am *AdapterManager, logger *log.Logger) (*CLIAdapter, error) {
	logger.Info(context.Background(), "Creating new CLI adapter", nil)
	return &CLIAdapter{
		sessions:       make(map[string]*session.Session),
		adapterManager: am,
		logger:         logger,
	}, nil
}

// CLIFactory registers the CLI adapter with an AdapterManager
func CLIFactory(logger *log.Logger) AdapterFactory {
	return func(am *AdapterManager) (AdapterInstance, error) {
		return NewCLIAdapter(am, logger)
	}
}

// AdapterStart has nothing to run; the shell drives the adapter through ProcessInput
func (a *CLIAdapter) AdapterStart(ctx context.Context) error {
	a.logger.Info(ctx, "CLI adapter started", nil)
	return nil
}

// AdapterStop drops all CLI sessions
func (a *CLIAdapter) AdapterStop(ctx context.Context) error {
	a.logger.Info(ctx, "CLI adapter stopping", nil)

	a.sessionMutex.Lock()
	for sessionID := range a.sessions {
		delete(a.sessions, sessionID)
		a.adapterManager.SessionDelete(sessionID)
		a.logger.Debug(ctx, "Removed session during adapter stop", log.Fields{"sessionID": sessionID})
	}
	a.sessionMutex.Unlock()

	a.logger.Info(ctx, "CLI adapter stopped", nil)
	return nil
}

// GetType returns the adapter type
func (a *CLIAdapter) GetType() string {
	return AdapterTypeCLI
}

// SessionAdd adds a new cli session
func (a *CLIAdapter) SessionAdd() (string, error) {
	sessionID, err := a.adapterManager.SessionAdd()
	if err != nil {
		return "", err
	}

	s, exists := a.adapterManager.SessionGet(sessionID)
	if !exists {
		a.logger.Error(context.Background(), "Session does not exist", log.Fields{"sessionID": sessionID})
		return "", fmt.Errorf("session %s does not exist after addition by cli adapter", sessionID)
	}

	a.sessionMutex.Lock()
	a.sessions[sessionID] = s
	a.sessionMutex.Unlock()
	a.logger.Info(context.Background(), "New CLI session added", log.Fields{"sessionID": sessionID})

	return sessionID, nil
}

// SessionDelete deletes a cli session
func (a *CLIAdapter) SessionDelete(sessionID string) {
	a.sessionMutex.Lock()
	delete(a.sessions, sessionID)
	a.sessionMutex.Unlock()
	a.adapterManager.SessionDelete(sessionID)
	a.logger.Info(context.Background(), "CLI session removed", log.Fields{"sessionID": sessionID})
}

// ProcessInput converts the input string into a command and runs it
func (a *CLIAdapter) ProcessInput(ctx context.Context, sessionID string, input string) (interface{}, error) {
	cmd, err := ParseCommand(input)
	if err != nil {
		return nil, err
	}
	return a.CommandProcess(ctx, sessionID, cmd)
}

// CommandProcess runs an already parsed command
func (a *CLIAdapter) CommandProcess(ctx context.Context, sessionID string, cmd model.Command) (interface{}, error) {
	a.sessionMutex.RLock()
	_, ok := a.sessions[sessionID]
	a.sessionMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no cli session %s: %w", sessionID, model.ErrNotFound)
	}
	return a.adapterManager.CommandRun(ctx, sessionID, cmd)
}

// PromptGet gets the current prompt of the session
func (a *CLIAdapter) PromptGet(sessionID string) string {
	a.sessionMutex.RLock()
	s, exists := a.sessions[sessionID]
	a.sessionMutex.RUnlock()

	if !exists {
		return "> "
	}
	return s.Prompt() + " > "
}

// ParseCommand parses a command line into a model.Command. The first two words are
// the scope and the operation, the rest are arguments.
func ParseCommand(input string) (model.Command, error) {
	args, err := SplitArgs(input)
	if err != nil {
		return model.Command{}, err
	}
	if len(args) == 0 {
		return model.Command{}, fmt.Errorf("%w: empty command", model.ErrInvalidInput)
	}

	cmd := model.Command{
		Scope: strings.ToLower(args[0]),
		Args:  []string{},
	}
	if len(args) > 1 {
		cmd.Operation = strings.ToLower(args[1])
		cmd.Args = args[2:]
	}
	return cmd, nil
}

// SplitArgs splits a line into words. Single and double quotes group words;
// inside double quotes a backslash escapes the next character.
func SplitArgs(input string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range input {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote != 0:
			switch {
			case r == quote:
				quote = 0
			case r == '\\' && quote == '"':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 || escaped {
		return nil, fmt.Errorf("%w: unterminated quote or escape", model.ErrInvalidInput)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}
