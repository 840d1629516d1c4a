package allocation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
)

type txKey struct{}

// memStore serializes transactions and restores its rows when one fails.
type memStore struct {
	mu     sync.Mutex
	keys   map[int64]provider.Key
	groups map[int64]*provider.AddressGroup
	nextID int64

	failInsert error
}

func newMemStore(groups ...*provider.AddressGroup) *memStore {
	s := &memStore{keys: map[int64]provider.Key{}, groups: map[int64]*provider.AddressGroup{}}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	return s
}

func (s *memStore) addAvailable(groupID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.nextID++
		s.keys[s.nextID] = provider.Key{
			ID:             s.nextID,
			Address:        fmt.Sprintf("pokt1avail%03d", s.nextID),
			AddressGroupID: groupID,
			State:          provider.KeyStateAvailable,
		}
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int64]provider.Key, len(s.keys))
	for id, k := range s.keys {
		snapshot[id] = k
	}
	nextID := s.nextID
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.keys = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

// lock takes the mutex unless the caller runs inside InTx, which already holds it.
func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) LoadAddressGroup(ctx context.Context, id int64) (*provider.AddressGroup, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("%d: %w", id, providerstore.ErrAddressGroupNotFound)
	}
	return g, nil
}

func (s *memStore) available(groupID int64, limit int) []provider.Key {
	out := make([]provider.Key, 0)
	for _, k := range s.keys {
		if k.AddressGroupID == groupID && k.State == provider.KeyStateAvailable {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) LockAvailableKeys(ctx context.Context, groupID int64, limit int) ([]provider.Key, error) {
	defer s.lock(ctx)()
	return s.available(groupID, limit), nil
}

func (s *memStore) PeekAvailableKeys(ctx context.Context, groupID int64, limit int) ([]provider.Key, error) {
	defer s.lock(ctx)()
	return s.available(groupID, limit), nil
}

func (s *memStore) MarkKeysDelivered(ctx context.Context, ids []int64, d provider.Delivery) ([]provider.Key, error) {
	defer s.lock(ctx)()
	out := make([]provider.Key, 0, len(ids))
	for _, id := range ids {
		k, ok := s.keys[id]
		if !ok || k.State != provider.KeyStateAvailable {
			return nil, fmt.Errorf("key %d is not available", id)
		}
		k = delivered(k, d)
		s.keys[id] = k
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) InsertKeys(ctx context.Context, keys []provider.Key) ([]provider.Key, error) {
	defer s.lock(ctx)()
	out := make([]provider.Key, 0, len(keys))
	for _, k := range keys {
		if s.failInsert != nil {
			return nil, s.failInsert
		}
		s.nextID++
		k.ID = s.nextID
		s.keys[k.ID] = k
		out = append(out, k)
	}
	return out, nil
}

func (s *memStore) move(ctx context.Context, addresses []string, party string, from []provider.KeyState, to provider.KeyState) []string {
	defer s.lock(ctx)()
	want := map[string]bool{}
	for _, a := range addresses {
		want[a] = true
	}
	out := make([]string, 0)
	for id, k := range s.keys {
		if !want[k.Address] || k.DeliveredTo != party {
			continue
		}
		for _, f := range from {
			if k.State == f {
				k.State = to
				s.keys[id] = k
				out = append(out, k.Address)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *memStore) ReleaseDelivered(ctx context.Context, addresses []string, party string) ([]string, error) {
	return s.move(ctx, addresses, party, []provider.KeyState{provider.KeyStateDelivered}, provider.KeyStateAvailable), nil
}

func (s *memStore) MarkDeliveredStaked(ctx context.Context, addresses []string, party string) ([]string, error) {
	return s.move(ctx, addresses, party, []provider.KeyState{provider.KeyStateDelivered}, provider.KeyStateStaked), nil
}

func (s *memStore) MarkStakedUnstaking(ctx context.Context, addresses []string, party string) ([]string, error) {
	return s.move(ctx, addresses, party, []provider.KeyState{provider.KeyStateStaked}, provider.KeyStateUnstaking), nil
}

func (s *memStore) countState(state provider.KeyState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.keys {
		if k.State == state {
			n++
		}
	}
	return n
}
