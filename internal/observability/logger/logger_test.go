package logger

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/paybridge/internal/observability/context"
	"github.com/smallbiznis/paybridge/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	tests := []struct {
		sql   string
		op    string
		table string
	}{
		{sql: `SELECT * FROM webhook_events WHERE event_id = ?`, op: "SELECT", table: "webhook_events"},
		{sql: `INSERT INTO "audit_logs" (id) VALUES (?)`, op: "INSERT", table: "audit_logs"},
		{sql: `UPDATE orders SET status = ? WHERE id = ?`, op: "UPDATE", table: "orders"},
		{sql: `delete from gateway_credentials where name = ?`, op: "DELETE", table: "gateway_credentials"},
		{sql: `WITH t AS (SELECT 1) SELECT * FROM t`, op: "SELECT", table: "t"},
		{sql: ``, op: "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+tt.table, func(t *testing.T) {
			op, table := describeSQL(tt.sql)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.table, table)
		})
	}
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/metrics", http.StatusInternalServerError, ""))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/webhooks/gateway", http.StatusInternalServerError, "internal_error"))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/webhooks/gateway", http.StatusBadRequest, "invalid_signature"))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/webhooks/gateway", http.StatusTooManyRequests, "rate_limited"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/admin/credentials", http.StatusBadRequest, "validation_error"))
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger(DefaultGormLoggerConfig())
	query := func() (string, int64) { return `SELECT * FROM orders WHERE id = ?`, 0 }

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	l.Trace(context.Background(), time.Now(), query, nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "orders", entries[0].ContextMap()["table"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), query, errors.New("ignored"))
	assert.Equal(t, 2, logs.Len())
}

func TestWithContextOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")
	assert.Empty(t, logs.TakeAll()[0].Context)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithActor(ctx, "admin", "")
	ctx = obscontext.WithClient(ctx, "10.0.0.7", "curl/8.0")
	ctx = correlation.ContextWithCorrelationID(ctx, "01HZY")
	WithContext(ctx, base).Info("scoped")

	fields := logs.TakeAll()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "admin", fields["actor_type"])
	assert.Equal(t, "10.0.0.7", fields["client_ip"])
	assert.Equal(t, "01HZY", fields["correlation_id"])
	assert.NotContains(t, fields, "actor_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig(Config{Format: "Console", Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
	assert.Len(t, buildOptions(Config{Debug: true}), 0)
	assert.Len(t, buildOptions(Config{IncludeCaller: true}), 2)

	cfg, err = buildConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())

	_, err = buildConfig(Config{Level: "loud"})
	assert.Error(t, err)
}
