// Package reconcile derives a key's lifecycle state and remediation findings from the
// on-chain supplier record. It performs no I/O; callers load the inputs and persist the
// returned update under the height guard.
package reconcile

import (
	"fmt"
	"time"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const (
	DefaultOwnerInitialStakeCooldown = 10 * time.Minute
	DefaultMissingStakeAfter         = 24 * time.Hour
)

type Config struct {
	// OwnerInitialStakeCooldown debounces re-recording an owner_initial_stake finding while
	// its remediation is in flight.
	OwnerInitialStakeCooldown time.Duration
	// MissingStakeAfter is how long a delivered key may wait for its stake.
	MissingStakeAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		OwnerInitialStakeCooldown: DefaultOwnerInitialStakeCooldown,
		MissingStakeAfter:         DefaultMissingStakeAfter,
	}
}

type Input struct {
	Key      provider.Key
	Supplier *pocket.Supplier
	Height   int64
	Balance  int64
	Settings provider.ApplicationSettings
	Now      time.Time
}

type Result struct {
	Update        provider.KeyUpdate
	PreviousState provider.KeyState
	State         provider.KeyState
	// Findings are the reasons detected in this pass, recorded or not.
	Findings []provider.RemediationReason
	// CooldownSkipped is set when an owner_initial_stake finding was not re-recorded.
	CooldownSkipped bool
}

// Changed reports a lifecycle transition.
func (r Result) Changed() bool { return r.PreviousState != r.State }

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.OwnerInitialStakeCooldown <= 0 {
		cfg.OwnerInitialStakeCooldown = def.OwnerInitialStakeCooldown
	}
	if cfg.MissingStakeAfter <= 0 {
		cfg.MissingStakeAfter = def.MissingStakeAfter
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Evaluate runs one reconciliation pass for a key.
func (e *Engine) Evaluate(in Input) (Result, error) {
	key := in.Key
	res := Result{
		PreviousState: key.State,
		State:         key.State,
		Update: provider.KeyUpdate{
			BalanceUpokt:      in.Balance,
			LastUpdatedHeight: in.Height,
		},
	}

	if in.Supplier == nil {
		res.State = e.withoutSupplier(key, in.Now)
	} else {
		s := in.Supplier
		switch {
		case s.UnstakeSessionEndHeight == 0:
			res.State = provider.KeyStateStaked
		case in.Height >= s.UnstakeSessionEndHeight:
			res.State = provider.KeyStateUnstaked
		default:
			res.State = provider.KeyStateUnstaking
		}

		if res.State == provider.KeyStateStaked || res.State == provider.KeyStateUnstaking {
			amount, err := s.StakeAmount()
			if err != nil {
				return Result{}, fmt.Errorf("supplier %s: %w", key.Address, err)
			}
			stakeOwner := s.OwnerAddress
			services := s.Services
			if services == nil {
				services = []pocket.ServiceConfig{}
			}
			res.Update.StakeOwner = &stakeOwner
			res.Update.StakeAmountUpokt = &amount
			res.Update.Services = &services
			if key.State == provider.KeyStateImported {
				owner := s.OwnerAddress
				res.Update.OwnerAddress = &owner
			}
		}

		if res.State == provider.KeyStateStaked {
			if err := e.detect(&res, key, s, in); err != nil {
				return Result{}, err
			}
		}
	}

	state := res.State
	res.Update.State = &state
	return res, nil
}

func (e *Engine) withoutSupplier(key provider.Key, now time.Time) provider.KeyState {
	switch key.State {
	case provider.KeyStateImported:
		return provider.KeyStateAvailable
	case provider.KeyStateUnstaking:
		return provider.KeyStateUnstaked
	case provider.KeyStateDelivered:
		if key.DeliveredAt != nil && now.Sub(*key.DeliveredAt) > e.cfg.MissingStakeAfter {
			return provider.KeyStateMissingStake
		}
	}
	return key.State
}
