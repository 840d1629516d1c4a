package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/igniter-labs/igniterx/pkg/allocation"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/redis"
)

type recordingStore struct {
	allocation.Store
	calls map[string][]string
}

func (s *recordingStore) record(op string, addresses []string, party string) ([]string, error) {
	if s.calls == nil {
		s.calls = map[string][]string{}
	}
	s.calls[op] = append(s.calls[op], addresses...)
	s.calls[op+":party"] = append(s.calls[op+":party"], party)
	return addresses, nil
}

func (s *recordingStore) ReleaseDelivered(_ context.Context, addresses []string, party string) ([]string, error) {
	return s.record("release", addresses, party)
}

func (s *recordingStore) MarkDeliveredStaked(_ context.Context, addresses []string, party string) ([]string, error) {
	return s.record("staked", addresses, party)
}

func (s *recordingStore) MarkStakedUnstaking(_ context.Context, addresses []string, party string) ([]string, error) {
	return s.record("unstaking", addresses, party)
}

func message(t *testing.T, n notify.Notification) redis.Message {
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return redis.Message{ID: "1-0", Values: map[string]interface{}{"kind": string(n.Kind), "data": string(data)}}
}

func TestDispatcherAppliesNotifications(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := &recordingStore{}
	d := NewDispatcher(allocation.New(store, logger), logger)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, message(t, notify.Notification{Kind: notify.KindNodesStaked, Addresses: []string{"pokt1a"}, RequestingParty: "middleman"})))
	require.NoError(t, d.Handle(ctx, message(t, notify.Notification{Kind: notify.KindStakesFailed, Addresses: []string{"pokt1b"}, RequestingParty: "middleman"})))
	require.NoError(t, d.Handle(ctx, message(t, notify.Notification{Kind: notify.KindNodesUnstaking, Addresses: []string{"pokt1c"}, RequestingParty: "middleman"})))

	require.Equal(t, []string{"pokt1a"}, store.calls["staked"])
	require.Equal(t, []string{"pokt1b"}, store.calls["release"])
	require.Equal(t, []string{"pokt1c"}, store.calls["unstaking"])
	require.Equal(t, []string{"middleman"}, store.calls["staked:party"])
}

func TestDispatcherAcksUndecodableEntries(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := &recordingStore{}
	d := NewDispatcher(allocation.New(store, logger), logger)

	err := d.Handle(context.Background(), redis.Message{ID: "1-0", Values: map[string]interface{}{"data": "not json"}})
	require.NoError(t, err)
	require.Empty(t, store.calls)
}
