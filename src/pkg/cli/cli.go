// Package cli implements the interactive shell on top of the CLI adapter.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"portfoliotree/app/src/pkg/adapter"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
)

// PasswordFunc asks for a secret without echoing it
type PasswordFunc func(prompt string) (string, error)

// CLI represents the command-line interface of one local session
type CLI struct {
	adapter     *adapter.CLIAdapter
	sessionID   string
	out         io.Writer
	historyFile string
	password    PasswordFunc
	logger      *log.Logger
}

// NewCLI creates a new CLI instance with its own session
func NewCLI(a *adapter.CLIAdapter, out io.Writer, historyFile string, logger *log.Logger) (*CLI, error) {
	sessionID, err := a.SessionAdd()
	if err != nil {
		return nil, fmt.Errorf("failed to create cli session: %w", err)
	}
	return &CLI{
		adapter:     a,
		sessionID:   sessionID,
		out:         out,
		historyFile: historyFile,
		password:    terminalPassword,
		logger:      logger,
	}, nil
}

// SetPasswordFunc replaces the terminal password prompt
func (c *CLI) SetPasswordFunc(fn PasswordFunc) {
	c.password = fn
}

// Close ends the session of the CLI
func (c *CLI) Close() {
	c.adapter.SessionDelete(c.sessionID)
}

// Prompt returns the current prompt
func (c *CLI) Prompt() string {
	return c.adapter.PromptGet(c.sessionID)
}

// Run reads commands interactively until exit, EOF or ctx cancellation
func (c *CLI) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.Prompt(),
		HistoryFile:     c.historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          c.out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(c.out, "Welcome to Portfolio Tree!")
	fmt.Fprintln(c.out, "Type 'help' for a list of commands or 'exit' to quit.")

	for {
		rl.SetPrompt(c.Prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		stop, err := c.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		if stop {
			return nil
		}
	}
}

// RunScript executes one command per line. Blank lines and lines starting with
// '#' are skipped. The first failing command stops the script.
func (c *CLI) RunScript(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		stop, err := c.Execute(ctx, line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if stop {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return nil
}

// Execute runs one command line and prints its result. stop reports an exit request.
func (c *CLI) Execute(ctx context.Context, line string) (stop bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	cmd, err := adapter.ParseCommand(line)
	if err != nil {
		return false, err
	}

	switch cmd.Scope {
	case "help":
		args := cmd.Args
		if cmd.Operation != "" {
			args = append([]string{cmd.Operation}, args...)
		}
		c.printHelp(args)
		return false, nil
	case "exit", "quit":
		cmd = model.Command{Scope: "system", Operation: cmd.Scope, Args: []string{}}
	}

	if err := c.askPassword(&cmd); err != nil {
		return false, err
	}

	result, err := c.adapter.CommandProcess(ctx, c.sessionID, cmd)
	if errors.Is(err, session.ErrExit) {
		fmt.Fprintln(c.out, "Goodbye!")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	Render(c.out, result)
	return false, nil
}

// askPassword fills in the password of "user add" and "user login" when only a username was given
func (c *CLI) askPassword(cmd *model.Command) error {
	if cmd.Scope != "user" || len(cmd.Args) != 1 {
		return nil
	}
	if cmd.Operation != "add" && cmd.Operation != "login" {
		return nil
	}
	if c.password == nil {
		return nil
	}

	password, err := c.password("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if cmd.Operation == "add" {
		confirm, err := c.password("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if confirm != password {
			return fmt.Errorf("%w: passwords do not match", model.ErrInvalidInput)
		}
	}
	cmd.Args = append(cmd.Args, password)
	return nil
}

// terminalPassword reads a password from the controlling terminal without echo
func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: password argument required when stdin is not a terminal", model.ErrInvalidInput)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
