package logging

import (
	"log/slog"
	"os"
)

// Logger is the key-value logging contract used across services and stores.
type Logger interface {
	Debug(msg string, keyVals ...any)
	Info(msg string, keyVals ...any)
	Warn(msg string, keyVals ...any)
	Error(msg string, keyVals ...any)
}

type SlogLogger struct {
	sl *slog.Logger
}

func NewSlogLogger(sl *slog.Logger) *SlogLogger {
	return &SlogLogger{sl: sl}
}

func (l *SlogLogger) Debug(msg string, keyVals ...any) { l.sl.Debug(msg, keyVals...) }
func (l *SlogLogger) Info(msg string, keyVals ...any)  { l.sl.Info(msg, keyVals...) }
func (l *SlogLogger) Warn(msg string, keyVals ...any)  { l.sl.Warn(msg, keyVals...) }
func (l *SlogLogger) Error(msg string, keyVals ...any) { l.sl.Error(msg, keyVals...) }

// CreateAppLogger returns a JSON logger in prod, text everywhere else.
func CreateAppLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
