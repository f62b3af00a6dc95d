// Package logs provides structured logging for the server daemon and its
// gateways.
package logs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "janus", "logs", "janusd.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// New creates a logger with the default configuration.
func New() zerolog.Logger {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a logger combining a colored console writer and a
// rotating file writer, as selected by cfg.
func NewWithConfig(cfg Config) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).With().Timestamp().Caller().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() { zerolog.SetGlobalLevel(zerolog.DebugLevel) }

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() { zerolog.SetGlobalLevel(zerolog.InfoLevel) }

// ContextKey is the type for context keys carrying logging state.
type ContextKey string

const (
	LoggerKey    ContextKey = "logger"
	RequestIDKey ContextKey = "request_id"
	SymbolKey    ContextKey = "symbol"
)

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger attached to ctx, or a no-op logger if
// none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol annotates logger with a symbol field.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOrderID annotates logger with a vt_orderid field.
func WithOrderID(logger zerolog.Logger, vtOrderID string) zerolog.Logger {
	return logger.With().Str("vt_orderid", vtOrderID).Logger()
}

// WithAccount annotates logger with an account alias field.
func WithAccount(logger zerolog.Logger, accountAlias string) zerolog.Logger {
	return logger.With().Str("account", accountAlias).Logger()
}

// WithGateway annotates logger with a gateway name field.
func WithGateway(logger zerolog.Logger, gateway string) zerolog.Logger {
	return logger.With().Str("gateway", gateway).Logger()
}

// LogOrder logs an order lifecycle transition.
func LogOrder(logger zerolog.Logger, vtOrderID, symbol, status string) {
	logger.Info().
		Str("event", "order").
		Str("vt_orderid", vtOrderID).
		Str("symbol", symbol).
		Str("status", status).
		Msg("order update")
}

// LogTrade logs a fill.
func LogTrade(logger zerolog.Logger, vtTradeID, symbol, direction string, volume, price float64) {
	logger.Info().
		Str("event", "trade").
		Str("vt_tradeid", vtTradeID).
		Str("symbol", symbol).
		Str("direction", direction).
		Float64("volume", volume).
		Float64("price", price).
		Msg("trade executed")
}

// LogReconnect logs a gateway reconnect attempt.
func LogReconnect(logger zerolog.Logger, gateway string, attempt int, backoff time.Duration) {
	logger.Warn().
		Str("event", "reconnect").
		Str("gateway", gateway).
		Int("attempt", attempt).
		Dur("backoff", backoff).
		Msg("reconnecting")
}

// LogHarmony logs the outcome of a registry backfill run against one
// broker.
func LogHarmony(logger zerolog.Logger, broker string, updated, skipped int) {
	logger.Info().
		Str("event", "harmony").
		Str("broker", broker).
		Int("updated", updated).
		Int("skipped", skipped).
		Msg("harmony pass complete")
}

// LogAPICall logs a request made against a broker's REST or streaming API.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)
	if err != nil {
		event.Err(err).Msg("api call failed")
	} else {
		event.Msg("api call completed")
	}
}
