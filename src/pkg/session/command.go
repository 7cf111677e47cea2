package session

import (
	"context"
	"errors"
	"fmt"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// ErrExit is returned by the system exit command; front ends stop their loop on it.
var ErrExit = errors.New("exit requested")

// argSpec bounds the argument count of an operation. max < 0 means unbounded.
type argSpec struct {
	min, max int
	usage    string
}

var commandArgs = map[string]map[string]argSpec{
	"user": {
		"add":    {2, 2, "user add <username> <password>"},
		"update": {1, 3, "user update <username> [new_username] [new_password]"},
		"delete": {1, 1, "user delete <username>"},
		"login":  {2, 2, "user login <username> <password>"},
		"logout": {0, 0, "user logout"},
	},
	"portfolio": {
		"add":        {1, 3, "portfolio add <name> [description] [public|private]"},
		"update":     {1, 2, "portfolio update <new_name> [description]"},
		"delete":     {0, 1, "portfolio delete [name]"},
		"permission": {1, 2, "portfolio permission <name> [public|private]"},
		"import":     {1, 2, "portfolio import <filename> [--replace]"},
		"export":     {1, 2, "portfolio export <filename> [name]"},
		"select":     {0, 1, "portfolio select [name|id]"},
		"list":       {0, 0, "portfolio list"},
		"view":       {0, 1, "portfolio view [tree|outline|grid|board|timeline]"},
	},
	"node": {
		"add":     {2, -1, "node add <parent|-> <title> [<field>:<value>]..."},
		"update":  {2, -1, "node update <node> <title> [<field>:<value>]..."},
		"move":    {2, 3, "node move <node> <parent|-> [order]"},
		"reorder": {2, -1, "node reorder <parent|-> <node>..."},
		"hide":    {1, 1, "node hide <node>"},
		"show":    {1, 1, "node show <node>"},
		"delete":  {1, 1, "node delete <node>"},
		"find":    {1, -1, "node find <query>..."},
	},
	"asset": {
		"add":    {1, 2, "asset add <file> [node]"},
		"list":   {0, 0, "asset list"},
		"get":    {2, 2, "asset get <asset_id> <file>"},
		"delete": {1, 1, "asset delete <asset_id>"},
	},
	"system": {
		"exit": {0, 0, "system exit"},
		"quit": {0, 0, "system quit"},
	},
}

// Command wraps the model.Command and adds session-specific functionality
type Command struct {
	command model.Command
	logger  *log.Logger
}

// NewCommand creates a new Command from a model.Command
func NewCommand(cmd model.Command, logger *log.Logger) Command {
	return Command{command: cmd, logger: logger}
}

// Validate checks scope, operation and argument count of the command
func (c *Command) Validate() error {
	ctx := context.Background()
	c.logger.Debug(ctx, "Validating command", log.Fields{"scope": c.command.Scope, "operation": c.command.Operation})

	if c.command.Scope == "" {
		return fmt.Errorf("%w: command scope is required", model.ErrInvalidInput)
	}
	operations, ok := commandArgs[c.command.Scope]
	if !ok {
		c.logger.Error(ctx, "Invalid command scope", log.Fields{"scope": c.command.Scope})
		return fmt.Errorf("%w: invalid command scope: %s", model.ErrInvalidInput, c.command.Scope)
	}
	bounds, ok := operations[c.command.Operation]
	if !ok {
		c.logger.Error(ctx, "Invalid command operation", log.Fields{"scope": c.command.Scope, "operation": c.command.Operation})
		return fmt.Errorf("%w: invalid %s operation: %s", model.ErrInvalidInput, c.command.Scope, c.command.Operation)
	}

	n := len(c.command.Args)
	if n < bounds.min || (bounds.max >= 0 && n > bounds.max) {
		c.logger.Error(ctx, "Invalid number of arguments", log.Fields{"scope": c.command.Scope, "operation": c.command.Operation, "argCount": n})
		return fmt.Errorf("%w: usage: %s", model.ErrInvalidInput, bounds.usage)
	}
	return nil
}

// Usage returns the syntax line of an operation, or "" if it does not exist.
func Usage(scope, operation string) string {
	return commandArgs[scope][operation].usage
}
