package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"portfoliotree/app/src/pkg/adapter"
	"portfoliotree/app/src/pkg/cli"
	"portfoliotree/app/src/pkg/log"
)

var shellCmd = &cobra.Command{
	Use:   "shell [script]",
	Short: "Start the interactive shell or run a command script",
	Long: `Start the interactive shell. With a script argument, or when stdin is not a
terminal, commands are read line by line and the first failure stops the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		script := ""
		if len(args) == 1 {
			script = args[0]
		}
		return runShell(ctx, script)
	},
}

func runShell(ctx context.Context, script string) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	a.adapterManager.AdapterRegister(adapter.AdapterTypeCLI, adapter.CLIFactory(a.logger))
	_, instance, err := a.adapterManager.AdapterAdd(adapter.AdapterTypeCLI)
	if err != nil {
		return fmt.Errorf("failed to initialize CLI adapter: %w", err)
	}
	cliAdapter, ok := instance.(*adapter.CLIAdapter)
	if !ok {
		return fmt.Errorf("unexpected adapter type %T", instance)
	}

	shell, err := cli.NewCLI(cliAdapter, os.Stdout, filepath.Join(a.cfg.DatabaseDir, ".history"), a.logger)
	if err != nil {
		return err
	}
	defer shell.Close()

	go func() {
		if err := a.sessionManager.Run(ctx); err != nil {
			a.logger.Error(ctx, "Session cleanup stopped", log.Fields{"error": err})
		}
	}()

	switch {
	case script != "":
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		return shell.RunScript(ctx, f)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		return shell.RunScript(ctx, os.Stdin)
	default:
		return shell.Run(ctx)
	}
}
