// Package logging configures the process-wide logrus logger.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console is the log file value that keeps output on stderr.
const Console = "console"

type contextKey string

// TriggerKey carries the name of whatever started the current run
// (a CLI command or a host hook) through the context.
const TriggerKey contextKey = "trigger"

// WithTrigger returns a context whose log entries carry trigger.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, TriggerKey, trigger)
}

// Init parses and sets log-level input and routes output to logPath.
func Init(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	log.SetOutput(writerFor(logPath))
	log.SetFormatter(&Formatter{TextFormatter: log.TextFormatter{FullTimestamp: true}})
	log.SetLevel(level)
	return nil
}

func writerFor(logPath string) io.Writer {
	if logPath == "" || logPath == Console {
		return os.Stderr
	}
	return &lumberjack.Logger{
		// Log file absolute path, os agnostic
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// Formatter adds context values to text log entries.
type Formatter struct {
	log.TextFormatter
}

func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Context != nil {
		if trigger, ok := entry.Context.Value(TriggerKey).(string); ok && trigger != "" {
			entry.Data["trigger"] = trigger
		}
	}
	return f.TextFormatter.Format(entry)
}
