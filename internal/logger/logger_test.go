package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
		assert.NoError(t, SetLevelString(lvl), lvl)
	}
	assert.Error(t, SetLevelString("verbose"))
}

func TestLoggerWritesFieldsAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(&buf, "warn"))
	t.Cleanup(func() { _ = SetLevelString("info") })

	log := Named("pipeline")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "malformed game", String("game", "0_1_2"), Int("end", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "malformed game")
	assert.Contains(t, out, "component=pipeline")
	assert.Contains(t, out, "game=0_1_2")
	assert.Contains(t, out, "end=3")
}

func TestDiscard(t *testing.T) {
	// Must not panic or write anywhere.
	Discard().Error(context.Background(), "nothing", Error(assert.AnError))
}
