package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestBalanceChange(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", "json", &buf)
	defer Initialize("info", "text")

	BalanceChange(context.Background(), "cust-1", "purchase", "1100", "1100.00", "transaction_id", "txn-1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"Balance changed"`)
	assert.Contains(t, out, `"customer_id":"cust-1"`)
	assert.Contains(t, out, `"delta":"1100"`)
	assert.Contains(t, out, `"transaction_id":"txn-1"`)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("debug", "text", &buf)
	defer Initialize("info", "text")

	ctx := NewContext(context.Background(), Get().With("request_id", "req-42"))
	InfoContext(ctx, "handled")
	assert.Contains(t, buf.String(), "request_id=req-42")

	buf.Reset()
	ExitMethodRejected("RecordActivity", errors.New("insufficient credits"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "Method rejected")
}
