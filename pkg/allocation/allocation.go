// Package allocation hands out operator keys for stake requests.
package allocation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/metrics"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/supplier"
)

// DefaultMaxSlots caps the suppliers a single request may ask for.
const DefaultMaxSlots = 100

// Store is the part of the key store the engine needs.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	LoadAddressGroup(ctx context.Context, id int64) (*provider.AddressGroup, error)
	LockAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error)
	PeekAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error)
	MarkKeysDelivered(ctx context.Context, ids []int64, delivery provider.Delivery) ([]provider.Key, error)
	InsertKeys(ctx context.Context, keys []provider.Key) ([]provider.Key, error)
	ReleaseDelivered(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
	MarkDeliveredStaked(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
	MarkStakedUnstaking(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
}

type Item struct {
	Amount int64 `json:"amount"`
	Qty    int   `json:"qty"`
}

// Request asks for one supplier per requested slot of a single address group.
type Request struct {
	AddressGroupID     int64  `json:"address_group_id"`
	OwnerAddress       string `json:"owner_address"`
	DelegatorAddress   string `json:"delegator_address,omitempty"`
	RevSharePercentage int    `json:"rev_share_percentage"`
	Items              []Item `json:"items"`
}

// Amounts expands the items into one stake amount per slot, in request order.
func (r Request) Amounts() []int64 {
	out := make([]int64, 0)
	for _, item := range r.Items {
		for i := 0; i < item.Qty; i++ {
			out = append(out, item.Amount)
		}
	}
	return out
}

// Validate checks the request fields and that it asks for at most maxSlots suppliers.
func (r Request) Validate(maxSlots int) error {
	if r.AddressGroupID <= 0 {
		return &supplier.ValidationError{Field: "address_group_id", Reason: "required"}
	}
	if r.OwnerAddress == "" {
		return &supplier.ValidationError{Field: "owner_address", Reason: "required"}
	}
	if r.RevSharePercentage < 0 || r.RevSharePercentage > 100 {
		return &supplier.ValidationError{Field: "rev_share_percentage", Reason: "must be between 0 and 100"}
	}
	if r.RevSharePercentage > 0 && r.DelegatorAddress == "" {
		return &supplier.ValidationError{Field: "delegator_address", Reason: "required with a revenue share"}
	}
	if len(r.Items) == 0 {
		return &supplier.ValidationError{Field: "items", Reason: "empty"}
	}
	slots := 0
	for i, item := range r.Items {
		if item.Qty <= 0 || item.Amount <= 0 {
			return &supplier.ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: "amount and qty must be positive"}
		}
		if item.Qty > maxSlots-slots {
			return &supplier.ValidationError{Field: "items", Reason: fmt.Sprintf("at most %d suppliers per request", maxSlots)}
		}
		slots += item.Qty
	}
	return nil
}

// Supplier is one allocated key ready to be staked by the requesting owner.
type Supplier struct {
	OperatorAddress string                 `json:"operator_address"`
	PublicKey       string                 `json:"public_key"`
	OwnerAddress    string                 `json:"owner_address"`
	Stake           pocket.Coin            `json:"stake"`
	Services        []pocket.ServiceConfig `json:"services"`
}

type Option func(*Engine)

// WithKeyGenerator replaces the source of fresh keys.
func WithKeyGenerator(fn func() (pocket.KeyPair, error)) Option {
	return func(e *Engine) { e.generate = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxSlots overrides DefaultMaxSlots. Non-positive values keep the default.
func WithMaxSlots(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSlots = n
		}
	}
}

func WithMetrics(m *metrics.ProviderMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

type Engine struct {
	store    Store
	logger   *zap.Logger
	generate func() (pocket.KeyPair, error)
	now      func() time.Time
	metrics  *metrics.ProviderMetrics
	maxSlots int
}

func New(store Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		logger:   logger,
		generate: pocket.GenerateKey,
		now:      time.Now,
		maxSlots: DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Allocate reserves available keys of the requested group, creates keys for the shortfall
// and returns one supplier per slot. Everything happens in one transaction: on error no
// key changes state. With simulate set nothing is written and generated keys are discarded.
func (e *Engine) Allocate(ctx context.Context, req Request, requestingParty string, simulate bool) ([]Supplier, error) {
	out, err := e.allocate(ctx, req, requestingParty, simulate)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate keys: %w", err)
	}
	return out, nil
}

func (e *Engine) allocate(ctx context.Context, req Request, requestingParty string, simulate bool) ([]Supplier, error) {
	if err := req.Validate(e.maxSlots); err != nil {
		return nil, err
	}
	amounts := req.Amounts()
	started := e.now()
	delivery := provider.Delivery{
		OwnerAddress:       req.OwnerAddress,
		DelegatorAddress:   req.DelegatorAddress,
		RevSharePercentage: req.RevSharePercentage,
		RequestingParty:    requestingParty,
		At:                 started.UTC(),
	}

	var (
		out       []Supplier
		reserved  int
		generated int
	)
	run := func(ctx context.Context) error {
		group, err := e.store.LoadAddressGroup(ctx, req.AddressGroupID)
		if err != nil {
			return err
		}
		if !group.AllowsOwner(req.OwnerAddress) {
			return &supplier.ValidationError{Field: "owner_address", Reason: fmt.Sprintf("not linked to private address group %d", group.ID)}
		}

		keys, err := e.reserve(ctx, group.ID, len(amounts), delivery, simulate)
		if err != nil {
			return err
		}
		reserved = len(keys)

		fresh, err := e.create(ctx, group.ID, len(amounts)-len(keys), delivery, simulate)
		if err != nil {
			return err
		}
		generated = len(fresh)
		keys = append(keys, fresh...)

		out, err = assemble(group, keys, amounts)
		return err
	}

	if simulate {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := e.store.InTx(ctx, run); err != nil {
		return nil, err
	}

	e.metrics.RecordAllocation(reserved, generated, e.now().Sub(started))
	e.logger.Info("Allocated suppliers",
		zap.Int64("address_group_id", req.AddressGroupID),
		zap.String("owner", req.OwnerAddress),
		zap.String("requesting_party", requestingParty),
		zap.Int("reserved", reserved),
		zap.Int("generated", generated),
	)
	return out, nil
}

// reserve takes up to n available keys of the group and delivers them.
func (e *Engine) reserve(ctx context.Context, groupID int64, n int, d provider.Delivery, simulate bool) ([]provider.Key, error) {
	if simulate {
		keys, err := e.store.PeekAvailableKeys(ctx, groupID, n)
		if err != nil {
			return nil, err
		}
		for i := range keys {
			keys[i] = delivered(keys[i], d)
		}
		return keys, nil
	}

	locked, err := e.store.LockAvailableKeys(ctx, groupID, n)
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return []provider.Key{}, nil
	}
	ids := make([]int64, len(locked))
	for i, k := range locked {
		ids[i] = k.ID
	}
	return e.store.MarkKeysDelivered(ctx, ids, d)
}

// create generates n keys directly in the delivered state.
func (e *Engine) create(ctx context.Context, groupID int64, n int, d provider.Delivery, simulate bool) ([]provider.Key, error) {
	if n <= 0 {
		return []provider.Key{}, nil
	}
	keys := make([]provider.Key, 0, n)
	for i := 0; i < n; i++ {
		kp, err := e.generate()
		if err != nil {
			return nil, err
		}
		keys = append(keys, delivered(provider.Key{
			Address:            kp.Address,
			PublicKey:          kp.PublicKeyHex,
			PrivateKey:         kp.PrivateKeyHex,
			AddressGroupID:     groupID,
			RemediationHistory: provider.RemediationHistory{},
		}, d))
	}
	if simulate {
		return keys, nil
	}
	return e.store.InsertKeys(ctx, keys)
}

func delivered(k provider.Key, d provider.Delivery) provider.Key {
	at := d.At
	k.State = provider.KeyStateDelivered
	k.OwnerAddress = d.OwnerAddress
	k.DelegatorRewardsAddress = d.DelegatorAddress
	k.DelegatorRevSharePercentage = d.RevSharePercentage
	k.DeliveredTo = d.RequestingParty
	k.DeliveredAt = &at
	return k
}

// assemble pairs keys (reserved by id, then generated) with amounts in request order.
func assemble(group *provider.AddressGroup, keys []provider.Key, amounts []int64) ([]Supplier, error) {
	if len(keys) != len(amounts) {
		return nil, fmt.Errorf("have %d keys for %d requested suppliers", len(keys), len(amounts))
	}
	out := make([]Supplier, 0, len(keys))
	for i := range keys {
		services, err := supplier.BuildServiceConfigs(group, supplier.SharesForKey(&keys[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, Supplier{
			OperatorAddress: keys[i].Address,
			PublicKey:       keys[i].PublicKey,
			OwnerAddress:    keys[i].OwnerAddress,
			Stake:           pocket.NewCoin(amounts[i]),
			Services:        services,
		})
	}
	return out, nil
}

// Release returns delivered keys to the pool when the requesting party aborts its flow.
func (e *Engine) Release(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	released, err := e.store.ReleaseDelivered(ctx, addresses, requestingParty)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Released delivered keys", zap.Int("requested", len(addresses)), zap.Int("released", len(released)))
	return released, nil
}

func (e *Engine) MarkStaked(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	staked, err := e.store.MarkDeliveredStaked(ctx, addresses, requestingParty)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Marked delivered keys staked", zap.Int("requested", len(addresses)), zap.Int("staked", len(staked)))
	return staked, nil
}

func (e *Engine) MarkUnstaking(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	unstaking, err := e.store.MarkStakedUnstaking(ctx, addresses, requestingParty)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Marked staked keys unstaking", zap.Int("requested", len(addresses)), zap.Int("unstaking", len(unstaking)))
	return unstaking, nil
}
