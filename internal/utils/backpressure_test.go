package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendWithBackpressure(t *testing.T) {
	ch := make(chan int, 1)
	var stats BackpressureStats

	assert.True(t, SendWithBackpressure(context.Background(), ch, 1, DefaultBackpressureConfig(), &stats))
	assert.False(t, SendWithBackpressure(context.Background(), ch, 2, BackpressureConfig{Timeout: 10 * time.Millisecond}, &stats))
	assert.False(t, SendWithBackpressure(context.Background(), ch, 3, BackpressureConfig{DropOnOverflow: true}, &stats))

	overflows, timeouts, dropped := stats.Snapshot()
	assert.Equal(t, int64(2), overflows)
	assert.Equal(t, int64(1), timeouts)
	assert.Equal(t, int64(1), dropped)

	assert.Equal(t, 1, <-ch)
	assert.True(t, TrySend(ch, 4))
	assert.False(t, TrySend(ch, 5))
}

func TestChannelBufferSize(t *testing.T) {
	assert.Equal(t, 5000, ChannelBufferSize("LiveTransfers", 10))
	assert.Equal(t, 10, ChannelBufferSize("Unknown", 10))

	t.Setenv("CHANNEL_BUFFER_LiveTransfers", "42")
	assert.Equal(t, 42, ChannelBufferSize("LiveTransfers", 10))
}
