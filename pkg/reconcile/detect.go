package reconcile

import (
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const (
	msgOwnerInitialStake = "The supplier was staked by its owner without any services configured."
	msgFundsTooLow       = "The operational funds of this supplier (used to submit claims and proofs) are below the provider's minimum of %d upokt."
	msgStakeTooLow       = "The stake of this supplier is below the provider's minimum of %d upokt."
	msgDelegatorMissing  = "The key has no delegator rewards address, automatic remediation is disabled for it."
)

// detect records remediation findings for a key that is staked on chain. Any finding other
// than owner_initial_stake needs an operator, so it moves the key to attention_needed.
func (e *Engine) detect(res *Result, key provider.Key, s *pocket.Supplier, in Input) error {
	history := key.RemediationHistory.Clone()
	if history == nil {
		history = provider.RemediationHistory{}
	}
	recorded := false
	record := func(reason provider.RemediationReason, message string) {
		history = history.With(provider.RemediationEntry{
			Reason:    reason,
			Message:   message,
			Timestamp: in.Now,
		})
		recorded = true
	}

	if key.HasDelegator() && s.Pristine() {
		res.Findings = append(res.Findings, provider.ReasonOwnerInitialStake)
		if prev, ok := history.Get(provider.ReasonOwnerInitialStake); ok && in.Now.Sub(prev.Timestamp) < e.cfg.OwnerInitialStakeCooldown {
			res.CooldownSkipped = true
		} else {
			record(provider.ReasonOwnerInitialStake, msgOwnerInitialStake)
		}
	}

	if minimum := in.Settings.MinimumOperationalFunds; minimum > 0 && in.Balance < minimum {
		res.Findings = append(res.Findings, provider.ReasonSupplierFundsTooLow)
		record(provider.ReasonSupplierFundsTooLow, fmt.Sprintf(msgFundsTooLow, minimum))
	}

	if minimum := in.Settings.MinimumStake; minimum > 0 {
		amount, err := s.StakeAmount()
		if err != nil {
			return fmt.Errorf("supplier %s: %w", key.Address, err)
		}
		if amount < minimum {
			res.Findings = append(res.Findings, provider.ReasonSupplierStakeTooLow)
			record(provider.ReasonSupplierStakeTooLow, fmt.Sprintf(msgStakeTooLow, minimum))
		}
	}

	if !key.HasDelegator() {
		res.Findings = append(res.Findings, provider.ReasonDelegatorAddressMissing)
		record(provider.ReasonDelegatorAddressMissing, msgDelegatorMissing)
	}

	if recorded {
		res.Update.RemediationHistory = &history
	}
	for _, reason := range res.Findings {
		if reason != provider.ReasonOwnerInitialStake {
			res.State = provider.KeyStateAttentionNeeded
			break
		}
	}
	return nil
}
