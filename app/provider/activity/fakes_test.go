package activity

import (
	"context"
	"sync"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

type fakeStore struct {
	providerstore.Store

	mu       sync.Mutex
	keys     map[string]provider.Key
	groups   map[int64]*provider.AddressGroup
	settings provider.ApplicationSettings
	updates  int
}

func newFakeStore(settings provider.ApplicationSettings, keys ...provider.Key) *fakeStore {
	s := &fakeStore{
		keys:     map[string]provider.Key{},
		groups:   map[int64]*provider.AddressGroup{},
		settings: settings,
	}
	for _, k := range keys {
		s.keys[k.Address] = k
	}
	return s
}

func (s *fakeStore) key(address string) provider.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[address]
}

func (s *fakeStore) LoadKey(_ context.Context, address string) (*provider.KeyWithGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[address]
	if !ok {
		return nil, providerstore.ErrKeyNotFound
	}
	k.RemediationHistory = k.RemediationHistory.Clone()
	return &provider.KeyWithGroup{Key: k, AddressGroup: s.groups[k.AddressGroupID]}, nil
}

func (s *fakeStore) UpdateKey(_ context.Context, address string, update provider.KeyUpdate, height int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[address]
	if !ok || k.LastUpdatedHeight > height {
		return false, nil
	}
	s.keys[address] = update.Apply(k)
	s.updates++
	return true, nil
}

func (s *fakeStore) LoadSettings(context.Context) (*provider.ApplicationSettings, error) {
	settings := s.settings
	return &settings, nil
}

func (s *fakeStore) LoadKeysWithRemediation(_ context.Context, reason provider.RemediationReason, states []provider.KeyState) ([]provider.KeyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []provider.KeyRef
	for _, k := range s.keys {
		for _, st := range states {
			if k.State == st && k.RemediationHistory.Has(reason) {
				out = append(out, provider.KeyRef{ID: k.ID, Address: k.Address})
			}
		}
	}
	return out, nil
}

type fakeChain struct {
	pocket.Client

	mu        sync.Mutex
	height    int64
	balances  map[string]int64
	suppliers map[string]*pocket.Supplier
	// afterStake replaces the supplier record once a stake succeeds.
	afterStake  map[string]*pocket.Supplier
	stakeResult pocket.TxResult
	stakes      []pocket.StakeSupplierParams
}

func newFakeChain(height int64) *fakeChain {
	return &fakeChain{
		height:     height,
		balances:   map[string]int64{},
		suppliers:  map[string]*pocket.Supplier{},
		afterStake: map[string]*pocket.Supplier{},
	}
}

func (c *fakeChain) Height(context.Context) (int64, error) { return c.height, nil }

func (c *fakeChain) Balance(_ context.Context, address string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

func (c *fakeChain) Supplier(_ context.Context, address string) (*pocket.Supplier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppliers[address], nil
}

func (c *fakeChain) StakeSupplier(_ context.Context, p pocket.StakeSupplierParams) (pocket.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stakes = append(c.stakes, p)
	if c.stakeResult.Success {
		if after, ok := c.afterStake[p.OperatorAddress]; ok {
			c.suppliers[p.OperatorAddress] = after
		}
	}
	return c.stakeResult, nil
}
