package reconcile

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

// TestRemediationEntriesUniquePerReason runs arbitrary sequences of passes over one key and
// checks the history never holds more than one entry per reason.
func TestRemediationEntriesUniquePerReason(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one entry per reason", prop.ForAll(
		func(balances []int64, pristine []bool, withDelegator bool) bool {
			e := New(DefaultConfig())
			key := provider.Key{Address: "pokt1a", State: provider.KeyStateDelivered}
			if withDelegator {
				key.DelegatorRewardsAddress = "pokt1d"
			}
			settings := provider.ApplicationSettings{MinimumOperationalFunds: 500, MinimumStake: 100}

			for i, balance := range balances {
				s := &pocket.Supplier{OperatorAddress: "pokt1a", OwnerAddress: "pokt1o", Stake: pocket.NewCoin(int64(i * 10))}
				if i < len(pristine) && !pristine[i] {
					s.Services = []pocket.ServiceConfig{{ServiceID: "svc"}}
				}
				res, err := e.Evaluate(Input{
					Key:      key,
					Supplier: s,
					Height:   int64(i + 1),
					Balance:  balance,
					Settings: settings,
					Now:      now.Add(time.Duration(i) * 3 * time.Minute),
				})
				if err != nil {
					return false
				}
				key = res.Update.Apply(key)

				seen := map[provider.RemediationReason]bool{}
				for _, entry := range key.RemediationHistory.Entries() {
					if seen[entry.Reason] {
						return false
					}
					seen[entry.Reason] = true
				}
			}
			return len(key.RemediationHistory) <= 4
		},
		gen.SliceOf(gen.Int64Range(0, 1000)),
		gen.SliceOf(gen.Bool()),
		gen.Bool(),
	))

	properties.Property("balance and height always refreshed", prop.ForAll(
		func(height int64, balance int64, state string) bool {
			res, err := New(DefaultConfig()).Evaluate(Input{
				Key:     provider.Key{Address: "pokt1a", State: provider.KeyState(state)},
				Height:  height,
				Balance: balance,
				Now:     now,
			})
			return err == nil && res.Update.LastUpdatedHeight == height && res.Update.BalanceUpokt == balance
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.OneConstOf("imported", "available", "delivered", "staked", "unstaking", "unstaked"),
	))

	properties.TestingRun(t)
}
