package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "activity-batch-engine"

// NewLogger builds the process logger. format is "json" (default) or "console".
func NewLogger(level string, format string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]any{"service": serviceName}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

type scopeKey struct{}

// requestScope is what a command request carries into service logs.
type requestScope struct {
	correlationID string
	requester     string
	operation     string
}

func scopeFrom(ctx context.Context) requestScope {
	if ctx == nil {
		return requestScope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(requestScope)
	return scope
}

func withScope(ctx context.Context, update func(*requestScope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := scopeFrom(ctx)
	update(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withScope(ctx, func(s *requestScope) { s.correlationID = correlationID })
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).correlationID
	return id, id != ""
}

// WithRequester stores the authenticated user id for log enrichment.
func WithRequester(ctx context.Context, userID string) context.Context {
	return withScope(ctx, func(s *requestScope) { s.requester = userID })
}

func RequesterFromContext(ctx context.Context) (string, bool) {
	requester := scopeFrom(ctx).requester
	return requester, requester != ""
}

// WithOperation names the command being served.
func WithOperation(ctx context.Context, operation string) context.Context {
	return withScope(ctx, func(s *requestScope) { s.operation = operation })
}

func OperationFromContext(ctx context.Context) (string, bool) {
	op := scopeFrom(ctx).operation
	return op, op != ""
}

// WithContextLogger adds the request scope fields that are set.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	scope := scopeFrom(ctx)
	fields := make([]zap.Field, 0, 3)
	if scope.correlationID != "" {
		fields = append(fields, zap.String("correlationId", scope.correlationID))
	}
	if scope.requester != "" {
		fields = append(fields, zap.String("requestedBy", scope.requester))
	}
	if scope.operation != "" {
		fields = append(fields, zap.String("operation", scope.operation))
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
