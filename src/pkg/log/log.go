// Package log provides structured logging for commands, requests and errors
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"portfoliotree/app/src/pkg/model"
)

// Fields carries the structured attributes of a log entry
type Fields map[string]interface{}

// logMessage represents a message waiting to be written
type logMessage struct {
	level   LogLevel
	content string
	fields  Fields
	ctx     context.Context
}

// Logger writes command, error and info entries as JSON lines.
// Entries are queued on a buffered channel and written by a single goroutine.
type Logger struct {
	commandLogger *slog.Logger
	errorLogger   *slog.Logger
	infoLogger    *slog.Logger
	files         []*os.File
	level         LogLevel
	logChan       chan logMessage
	done          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewLogger creates a Logger writing to the files named in the config
func NewLogger(cfg *model.Config, level LogLevel) (*Logger, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(cfg.LogFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	var files []*os.File
	open := func(name string) (*os.File, error) {
		f, err := os.OpenFile(filepath.Join(cfg.LogFolder, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
		return f, nil
	}

	commandFile, err := open(cfg.CommandLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open command log file: %w", err)
	}
	errorFile, err := open(cfg.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log file: %w", err)
	}
	infoFile, err := open(cfg.InfoLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open info log file: %w", err)
	}

	logger := newLogger(commandFile, errorFile, infoFile, level)
	logger.files = files
	return logger, nil
}

// NewWriterLogger creates a Logger sending every entry to a single writer
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(w, w, w, level)
}

func newLogger(commandOut, errorOut, infoOut io.Writer, level LogLevel) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	l := &Logger{
		commandLogger: slog.New(slog.NewJSONHandler(commandOut, opts)),
		errorLogger:   slog.New(slog.NewJSONHandler(errorOut, opts)),
		infoLogger:    slog.New(slog.NewJSONHandler(infoOut, opts)),
		level:         level,
		logChan:       make(chan logMessage, 100),
		done:          make(chan struct{}),
	}

	// Start the logging goroutine
	l.wg.Add(1)
	go l.processLogs()
	return l
}

// processLogs writes queued messages until Close, then drains what is left
func (l *Logger) processLogs() {
	defer l.wg.Done()
	for {
		select {
		case msg := <-l.logChan:
			l.write(msg)
		case <-l.done:
			for {
				select {
				case msg := <-l.logChan:
					l.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(msg logMessage) {
	attrs := fieldsToAttrs(msg.fields)
	switch msg.level {
	case LevelCommand:
		l.commandLogger.LogAttrs(msg.ctx, slog.LevelInfo, msg.content, attrs...)
	case LevelError:
		l.errorLogger.LogAttrs(msg.ctx, slog.LevelError, msg.content, attrs...)
	default:
		l.infoLogger.LogAttrs(msg.ctx, msg.level.toSlogLevel(), msg.content, attrs...)
	}
}

func fieldsToAttrs(fields Fields) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

func (l *Logger) enqueue(ctx context.Context, level LogLevel, msg string, fields Fields) {
	if l == nil || level > l.level {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.logChan <- logMessage{level: level, content: msg, fields: fields, ctx: ctx}:
	case <-l.done:
	}
}

// Command logs an executed command or request to the command log
func (l *Logger) Command(ctx context.Context, msg string, fields Fields) {
	l.enqueue(ctx, LevelCommand, msg, fields)
}

// Error logs to the error log
func (l *Logger) Error(ctx context.Context, msg string, fields Fields) {
	l.enqueue(ctx, LevelError, msg, fields)
}

// Warn logs to the info log at warning level
func (l *Logger) Warn(ctx context.Context, msg string, fields Fields) {
	l.enqueue(ctx, LevelWarn, msg, fields)
}

// Info logs to the info log
func (l *Logger) Info(ctx context.Context, msg string, fields Fields) {
	l.enqueue(ctx, LevelInfo, msg, fields)
}

// Debug logs to the info log at debug level
func (l *Logger) Debug(ctx context.Context, msg string, fields Fields) {
	l.enqueue(ctx, LevelDebug, msg, fields)
}

// Close stops the logging goroutine, flushes pending entries and closes all log files
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		for _, f := range l.files {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close log file %s: %w", f.Name(), cerr)
			}
		}
	})
	return err
}
