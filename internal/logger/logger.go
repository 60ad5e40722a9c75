package logger

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// RequestIDHeader is set on every outbound API request and echoed in the request log.
const RequestIDHeader = "X-Request-ID"

// ParseLogLevel converts a string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug // default to debug
	}
}

// InitLogger creates a logger with the specified log level.
// Uses text format for dev environment otherwise output is JSON
func InitLogger(logLevel slog.Level, environment string) *slog.Logger {
	return NewLogger(os.Stderr, logLevel, environment)
}

// NewLogger is InitLogger with an explicit writer (the CLI keeps stdout for command output).
func NewLogger(w io.Writer, logLevel slog.Level, environment string) *slog.Logger {
	if environment == "dev" {
		// Use colourized text handler for development
		return slog.New(
			tint.NewHandler(w, &tint.Options{
				Level:      logLevel,
				TimeFormat: time.Kitchen,
			}),
		)
	}
	return slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: logLevel,
		}))
}

// Discard returns a logger that drops everything - used when a component is built without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
Outbound request logging

The auth API is called with credentials in the request body, so only the request line, the status and
the timing are logged. Bodies and headers other than the request id are never written to the log.
*/

type roundTripper struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// RoundTripper wraps next so that every API call is logged on completion.
func RoundTripper(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next, logger: logger}
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	res, err := rt.next.RoundTrip(req)

	logAttrs := []slog.Attr{
		slog.String("type", "HTTP"),
		slog.String("request_id", req.Header.Get(RequestIDHeader)),
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", time.Since(start)),
	}

	if err != nil {
		logAttrs = append(logAttrs, slog.String("error", err.Error()))
		rt.logger.LogAttrs(req.Context(), slog.LevelWarn, "request failed", logAttrs...)
		return nil, err
	}

	logAttrs = append(logAttrs, slog.Int("status", res.StatusCode))

	switch {
	case res.StatusCode >= 500:
		rt.logger.LogAttrs(req.Context(), slog.LevelError, "request completed", logAttrs...)
	case res.StatusCode >= 400:
		rt.logger.LogAttrs(req.Context(), slog.LevelWarn, "request completed", logAttrs...)
	default:
		rt.logger.LogAttrs(req.Context(), slog.LevelDebug, "request completed", logAttrs...)
	}
	return res, nil
}
