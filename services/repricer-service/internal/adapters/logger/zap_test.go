package logger

import (
	"context"
	"testing"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/stretchr/testify/assert"
)

func TestGetLoggerLevel(t *testing.T) {
	assert.Equal(t, interfaces.DebugLevel, GetLoggerLevel("DEBUG"))
	assert.Equal(t, interfaces.WarnLevel, GetLoggerLevel("warn"))
	assert.Equal(t, interfaces.InfoLevel, GetLoggerLevel("unknown"))
}

func TestSetLevelIsShared(t *testing.T) {
	l := NewNopLogger()
	child := l.WithRange("ByMarket").WithCycleID("c-1")

	l.SetLevel(interfaces.ErrorLevel)
	assert.Equal(t, interfaces.ErrorLevel, child.GetLevel())
}

func TestConvertToZapFieldsDoesNotMutateArgs(t *testing.T) {
	args := []interface{}{interfaces.LogField{Key: "k", Value: 1}}
	_ = convertToZapFields(args...)
	_, ok := args[0].(interfaces.LogField)
	assert.True(t, ok)
}

func TestExtractFieldsFromContext(t *testing.T) {
	l := NewNopLogger().(*ZapLogger)
	ctx := WithContextValue(context.Background(), "cycle_id", "abc")
	ctx = WithContextValue(ctx, "range", "")

	fields := l.extractFieldsFromContext(ctx)
	assert.Len(t, fields, 1)
}
