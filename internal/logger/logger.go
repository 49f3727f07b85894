// File: internal/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ProductionLogger writes leveled key/value records. Production output is
// JSON, everything else is human-readable text.
type ProductionLogger struct {
	logger *log.Logger
}

// NewProductionLogger creates a logger for service writing to w.
func NewProductionLogger(w io.Writer, service string, structured bool) *ProductionLogger {
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          service,
		Level:           log.InfoLevel,
	}
	if structured {
		opts.Formatter = log.JSONFormatter
	}
	return &ProductionLogger{logger: log.NewWithOptions(w, opts)}
}

// SetLevel accepts debug, info, warn or error. Unknown values leave the level unchanged.
func (p *ProductionLogger) SetLevel(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return
	}
	p.logger.SetLevel(lvl)
}

// With returns a logger that adds keysAndValues to every record.
func (p *ProductionLogger) With(keysAndValues ...interface{}) *ProductionLogger {
	return &ProductionLogger{logger: p.logger.With(keysAndValues...)}
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.logger.Info(msg, keysAndValues...)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.logger.Error(msg, keysAndValues...)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.logger.Debug(msg, keysAndValues...)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.logger.Warn(msg, keysAndValues...)
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// New picks a logger from the environment: silent under test, JSON in
// production, text otherwise.
func New(service, env, level string) Logger {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "test" {
		return NoOpLogger{}
	}

	logger := NewProductionLogger(os.Stdout, service, env == "production")
	logger.SetLevel(level)
	return logger
}
