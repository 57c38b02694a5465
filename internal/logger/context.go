package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	intentIDKey  ctxKey = "intent_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIntentID tags every log line written through FromCtx with the payment intent.
func WithIntentID(ctx context.Context, intentID string) context.Context {
	return context.WithValue(ctx, intentIDKey, intentID)
}

func IntentIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(intentIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with request_id and intent_id added when present
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if intentID := IntentIDFrom(ctx); intentID != "" {
		l = l.With(zap.String("intent_id", intentID))
	}
	return l
}
