package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/pricechek-rider/pkg/logger"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

// Handler logs application errors. High and critical severities are logged at
// error level, which is the level the logger forwards to Sentry.
type Handler struct {
	log *slog.Logger
}

func NewHandler(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// Handle records err and returns the message that may be shown to the customer
// together with whether the operation is worth retrying.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []slog.Attr{
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.Any("error", err),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		log.LogAttrs(ctx, levelFor(appErr.Severity), "application error", attrs...)
		metrics.RecordError(appErr.Code, string(appErr.Severity))

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = DefaultUserMessage
		}

		return userMessage, appErr.Retryable
	}

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	attrs = append(attrs, slog.Any("error", err))

	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	metrics.RecordError("unknown", string(SeverityHigh))

	return DefaultUserMessage, false
}

func levelFor(severity Severity) slog.Level {
	switch severity {
	case SeverityCritical, SeverityHigh:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
