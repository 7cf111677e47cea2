package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"portfoliotree/app/src/pkg/adapter"
	"portfoliotree/app/src/pkg/config"
	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
	"portfoliotree/app/src/pkg/storage"
)

// app holds the components shared by every command
type app struct {
	cfg            *model.Config
	logger         *log.Logger
	store          *storage.Storage
	dataManager    *data.DataManager
	sessionManager *session.SessionManager
	adapterManager *adapter.AdapterManager
}

// bootstrap loads the configuration and initializes logger, storage, data manager,
// session manager and adapter manager. The caller must call close.
func bootstrap(ctx context.Context) (*app, error) {
	if err := config.ConfigLoad(configPath); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.ConfigGet()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	var logger *log.Logger
	if logStdout {
		logger = log.NewWriterLogger(os.Stderr, level)
	} else if logger, err = log.NewLogger(cfg, level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	logger.Info(ctx, "Application started", log.Fields{"databaseType": cfg.DatabaseType, "uploadBackend": cfg.UploadBackend})

	a.store, err = storage.NewStorage(cfg, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info(ctx, "Storage initialized", nil)

	blobStore, err := storage.NewBlobStore(ctx, cfg)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	a.dataManager, err = data.NewDataManager(ctx, a.store, blobStore, cfg, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize data manager: %w", err)
	}
	logger.Info(ctx, "Data manager initialized", nil)

	timeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	a.sessionManager = session.NewSessionManager(a.dataManager, timeout, logger)
	a.adapterManager = adapter.NewAdapterManager(a.sessionManager, logger)
	logger.Info(ctx, "Session and adapter managers initialized", nil)
	return a, nil
}

// close releases everything bootstrap opened, in reverse order
func (a *app) close(ctx context.Context) {
	if a.adapterManager != nil {
		if err := a.adapterManager.Shutdown(ctx); err != nil {
			a.logger.Error(ctx, "Failed to shut down adapters", log.Fields{"error": err})
		}
	}
	if a.sessionManager != nil {
		a.sessionManager.Close()
	}
	if a.dataManager != nil {
		a.dataManager.EventManager.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error(ctx, "Failed to close storage", log.Fields{"error": err})
		}
	}
	a.logger.Info(ctx, "Application shutting down", nil)
	if err := a.logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to close logger:", err)
	}
}

// authenticate logs a user in for the one-shot commands
func (a *app) authenticate(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: --user is required", model.ErrInvalidInput)
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return nil, err
	}
	return a.dataManager.UserManager.UserAuthenticate(ctx, model.UserInfo{Username: username, Password: password})
}

// readPassword reads without echo from a terminal, or a single line from piped stdin
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
