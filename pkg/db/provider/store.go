package provider

import (
	"context"
	"errors"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
)

var (
	ErrKeyNotFound          = errors.New("key not found")
	ErrAddressGroupNotFound = errors.New("address group not found")
	ErrSettingsNotFound     = errors.New("application settings not found")
)

// Store exposes the key store operations used by activities, the allocation engine and
// the API.
type Store interface {
	Close() error
	DatabaseName() string
	Ping(ctx context.Context) error

	// InTx runs fn in a single transaction; store calls made with the ctx passed to fn join it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	LoadKey(ctx context.Context, address string) (*provider.KeyWithGroup, error)
	// UpdateKey applies update unless the stored row is already past height. It reports
	// whether a row was written.
	UpdateKey(ctx context.Context, address string, update provider.KeyUpdate, height int64) (bool, error)
	GetKeysMinAndMax(ctx context.Context) (provider.KeysMinMax, error)
	LoadKeysInRange(ctx context.Context, minID, maxID int64, states []provider.KeyState) ([]provider.KeyRef, error)
	LoadKeysWithRemediation(ctx context.Context, reason provider.RemediationReason, states []provider.KeyState) ([]provider.KeyRef, error)
	InsertKeys(ctx context.Context, keys []provider.Key) ([]provider.Key, error)

	// LockAvailableKeys reserves up to limit available keys of a group for the enclosing
	// transaction, skipping rows reserved by concurrent transactions.
	LockAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error)
	// PeekAvailableKeys reads the keys LockAvailableKeys would reserve, without locking.
	PeekAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error)
	MarkKeysDelivered(ctx context.Context, ids []int64, delivery provider.Delivery) ([]provider.Key, error)

	ReleaseDelivered(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
	MarkDeliveredStaked(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
	MarkStakedUnstaking(ctx context.Context, addresses []string, requestingParty string) ([]string, error)
	ResetRemediationStates(ctx context.Context, addresses []string) ([]string, error)

	LoadAddressGroup(ctx context.Context, id int64) (*provider.AddressGroup, error)
	LoadSettings(ctx context.Context) (*provider.ApplicationSettings, error)
}
