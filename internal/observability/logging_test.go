package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/docquery/internal/config"
	"github.com/pitabwire/docquery/model"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestNewLogger_levels(t *testing.T) {
	tests := []struct {
		configured string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{configured: "debug", enabled: zapcore.DebugLevel},
		{configured: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{configured: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{configured: "error", enabled: zapcore.ErrorLevel, disabled: zapcore.WarnLevel},
		{configured: "", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{configured: "chatty", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run("level "+tt.configured, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tt.configured})
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tt.enabled))
			if tt.configured != "debug" {
				require.False(t, logger.Core().Enabled(tt.disabled))
			}
		})
	}
}

func TestLoggerFrom(t *testing.T) {
	stored, _ := observed()
	fallback, _ := observed()

	require.Same(t, stored, LoggerFrom(WithLogger(context.Background(), stored), fallback))
	require.Same(t, fallback, LoggerFrom(context.Background(), fallback))
	require.NotNil(t, LoggerFrom(context.Background(), nil))
}

func TestCallLogger(t *testing.T) {
	tests := []struct {
		name string
		cc   *model.CallContext
		want map[string]any
	}{
		{
			name: "database override and request id",
			cc:   &model.CallContext{CorrelationID: "req-42", Database: "shop"},
			want: map[string]any{"correlation_id": "req-42", "database": "shop"},
		},
		{
			name: "request id only",
			cc:   &model.CallContext{CorrelationID: "req-7"},
			want: map[string]any{"correlation_id": "req-7"},
		},
		{
			name: "no call context",
			want: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := observed()
			ctx := context.Background()
			if tt.cc != nil {
				ctx = model.WithCallContext(ctx, tt.cc)
			}

			CallLogger(ctx, logger).Debug("simple query completed")

			entries := logs.All()
			require.Len(t, entries, 1)
			require.Equal(t, tt.want, entries[0].ContextMap())
		})
	}
}

func TestCallLogger_prefersContextLogger(t *testing.T) {
	stored, storedLogs := observed()
	fallback, fallbackLogs := observed()
	ctx := WithLogger(model.WithCallContext(context.Background(), &model.CallContext{Database: "shop"}), stored)

	CallLogger(ctx, fallback).Warn("simple query rejected")

	require.Zero(t, fallbackLogs.Len())
	require.Equal(t, 1, storedLogs.FilterField(zap.String("database", "shop")).Len())
}

func TestCallLogger_addsTraceID(t *testing.T) {
	recordSpans(t)
	logger, logs := observed()

	ctx, span := StartOperation(context.Background(), "find_all", "docs")
	CallLogger(ctx, logger).Debug("simple query completed")
	EndOperation(span, OutcomeSuccess, 0, nil)

	require.Equal(t, span.SpanContext().TraceID().String(), logs.All()[0].ContextMap()["trace_id"])
}

func TestRedactBody_updateRequest(t *testing.T) {
	body := map[string]any{
		"collection": "users",
		"example":    map[string]any{"name": "ada", "api_key": "k-123"},
		"newValue":   map[string]any{"password": "hunter2", "tier": "gold"},
		"keepNull":   false,
	}

	got := RedactBody(body, []string{"tier"})

	require.Equal(t, map[string]any{
		"collection": "users",
		"example":    map[string]any{"name": "ada", "api_key": "[REDACTED]"},
		"newValue":   map[string]any{"password": "[REDACTED]", "tier": "[REDACTED]"},
		"keepNull":   false,
	}, got)
	require.Equal(t, "hunter2", body["newValue"].(map[string]any)["password"], "input must not change")
	require.Nil(t, RedactBody(nil, nil))
}
