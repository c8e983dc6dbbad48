// Package logger provides structured logging for the metadata service
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line
const ServiceName = "metadata-service"

// Logger wraps zerolog with service-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level          string // debug, info, warn, error
	Pretty         bool   // pretty-print for development
	Output         io.Writer
	WithCaller     bool
	ServiceVersion string // commit id of the running build
	Host           string
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("serviceName", ServiceName).
		Str("schemaVersion", "v3")
	if cfg.ServiceVersion != "" {
		zctx = zctx.Str("serviceVersion", cfg.ServiceVersion)
	}
	if cfg.Host != "" {
		zctx = zctx.Str("host", cfg.Host)
	}
	zlog := zctx.Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str(zerolog.MessageFieldName, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str(zerolog.MessageFieldName, msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str(zerolog.MessageFieldName, msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str(zerolog.MessageFieldName, msg)
}

// WithRequestID returns a logger tagged with a correlation id
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("xRequestId", requestID).Logger()}
}

// HTTPLogger returns a logger for HTTP operations
func (l *Logger) HTTPLogger(route string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "http").
			Str("route", route).
			Logger(),
	}
}

// StoreLogger returns a logger for datastore operations
func (l *Logger) StoreLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "datastore").
			Logger(),
	}
}

// LogHTTPRequest logs a completed HTTP request
func (l *Logger) LogHTTPRequest(method, url string, statusCode int, duration time.Duration) {
	event := l.zlog.Info()
	switch {
	case statusCode >= 500:
		event = l.zlog.Error()
	case statusCode >= 400:
		event = l.zlog.Warn()
	}

	event.
		Str("component", "http").
		Str("method", method).
		Str("url", url).
		Int("statusCode", statusCode).
		Dur("responseTime", duration).
		Msg("HTTP request completed")
}

// LogGrpcRequest logs a gRPC request with structured fields
func (l *Logger) LogGrpcRequest(method string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}

	event.
		Str("component", "grpc").
		Str("method", method).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogStoreOperation logs a datastore read with structured fields
func (l *Logger) LogStoreOperation(operation string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}

	event.
		Str("component", "datastore").
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("Datastore operation completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, rootDir string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Str("datastore", rootDir).
		Msg("Metadata service starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("Metadata service ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("Metadata service shutting down")
}

// WithContext stores the logger in ctx
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global logger
func FromContext(ctx context.Context) *Logger {
	zl := zerolog.Ctx(ctx)
	if zl == nil || zl.GetLevel() == zerolog.Disabled {
		return GetGlobalLogger()
	}
	return &Logger{zlog: *zl}
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
