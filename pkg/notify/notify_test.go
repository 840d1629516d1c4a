package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/igniter-labs/igniterx/pkg/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.Wrap(rdb, zaptest.NewLogger(t), redis.DefaultStreamMaxLen)
}

func TestPublishWritesToProviderStream(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	id, err := NewPublisher(client).Publish(ctx, "rm-1", Notification{
		Kind:            KindNodesStaked,
		Addresses:       []string{"pokt1a", "pokt1b"},
		RequestingParty: "middleman",
		TransactionID:   7,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := client.XRange(ctx, "provider:rm-1:notifications", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "nodes_staked", entries[0].Values["kind"])

	n, err := Decode(redis.Message{ID: entries[0].ID, Values: entries[0].Values})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.False(t, n.CreatedAt.IsZero())
	require.Equal(t, []string{"pokt1a", "pokt1b"}, n.Addresses)
	require.Equal(t, int64(7), n.TransactionID)
}

func TestPublishRequiresIdentity(t *testing.T) {
	_, err := NewPublisher(newRedis(t)).Publish(context.Background(), "", Notification{Kind: KindStakesFailed})
	require.Error(t, err)
}

func TestConsumerDispatchesByKind(t *testing.T) {
	client := newRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub := NewPublisher(client)
	for _, kind := range []Kind{KindNodesStaked, KindStakesFailed, KindNodesUnstaking} {
		_, err := pub.Publish(ctx, "rm-1", Notification{Kind: kind, Addresses: []string{string(kind)}})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen []Kind
	)
	record := func(ctx context.Context, n Notification) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, n.Kind)
		if len(seen) == 3 {
			cancel()
		}
		return nil
	}

	consumer, err := redis.NewStreamConsumer(client, redis.StreamConsumerConfig{
		Stream:   StreamName("rm-1"),
		Group:    "provider",
		Consumer: "test",
		Block:    50 * time.Millisecond,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = consumer.Run(ctx, Dispatcher{
		NodesStaked:    record,
		StakesFailed:   record,
		NodesUnstaking: record,
	}.Handle)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []Kind{KindNodesStaked, KindStakesFailed, KindNodesUnstaking}, seen)
}

func TestDispatcherAcksUndecodableEntries(t *testing.T) {
	err := Dispatcher{}.Handle(context.Background(), redis.Message{ID: "1-0", Values: map[string]interface{}{"kind": "x"}})
	require.NoError(t, err)
}
