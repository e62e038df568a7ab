package corelog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogifaceRoundTrip(t *testing.T) {
	var received []string
	sink := LoggerFunc(func(level Level, message string, fields ...Field) {
		received = append(received, level.String()+":"+message)
	})

	logger := NewLogifaceEventFactory(sink)
	bridged := NewLogifaceLogger(logger)

	bridged.Log(LevelInfo, "hello", F("cookie", 7))
	bridged.Log(LevelError, "boom")

	require.Equal(t, []string{"info:hello", "error:boom"}, received)
}
