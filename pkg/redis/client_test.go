package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnectWithURL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Connect(ctx, zaptest.NewLogger(t), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 3; i++ {
		_, err := c.XAdd(ctx, "provider:rm-1:notifications", map[string]interface{}{"kind": "nodes_staked"})
		require.NoError(t, err)
	}
	n, err := c.XLen(ctx, "provider:rm-1:notifications")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), zaptest.NewLogger(t), Config{URL: "http://nope"})
	require.Error(t, err)
}

func TestConsumerLagCountsUnacknowledged(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Connect(ctx, zaptest.NewLogger(t), Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	consumer, err := NewStreamConsumer(c, StreamConsumerConfig{Stream: "s", Group: "g", Consumer: "c1"})
	require.NoError(t, err)
	require.NoError(t, c.XGroupCreateMkStream(ctx, "s", "g", "0"))

	for i := 0; i < 2; i++ {
		_, err := c.XAdd(ctx, "s", map[string]interface{}{"data": "{}"})
		require.NoError(t, err)
	}
	streams, err := c.XReadGroup(ctx, "g", "c1", "s", ">", 10, -1)
	require.NoError(t, err)
	require.Len(t, streams[0].Messages, 2)

	_, err = c.XAck(ctx, "s", "g", streams[0].Messages[0].ID)
	require.NoError(t, err)

	length, pending, err := consumer.Lag(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), length)
	require.Equal(t, int64(1), pending)
}
