package provider

import (
	"encoding/json"
	"sort"
	"time"
)

// RemediationReason identifies a class of supplier misconfiguration.
type RemediationReason string

const (
	ReasonOwnerInitialStake       RemediationReason = "owner_initial_stake"
	ReasonSupplierFundsTooLow     RemediationReason = "supplier_funds_too_low"
	ReasonSupplierStakeTooLow     RemediationReason = "supplier_stake_too_low"
	ReasonDelegatorAddressMissing RemediationReason = "delegator_address_missing"
)

type RemediationEntry struct {
	Reason          RemediationReason `json:"reason"`
	Message         string            `json:"message"`
	Timestamp       time.Time         `json:"timestamp"`
	TxResultCode    *uint32           `json:"tx_result_code,omitempty"`
	TxResultDetails string            `json:"tx_result_details,omitempty"`
}

// RemediationHistory keeps at most one entry per reason. It is persisted as a list
// ordered by timestamp then reason.
type RemediationHistory map[RemediationReason]RemediationEntry

func (h RemediationHistory) Clone() RemediationHistory {
	if h == nil {
		return nil
	}
	out := make(RemediationHistory, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func (h RemediationHistory) Get(reason RemediationReason) (RemediationEntry, bool) {
	e, ok := h[reason]
	return e, ok
}

func (h RemediationHistory) Has(reason RemediationReason) bool {
	_, ok := h[reason]
	return ok
}

// With returns a copy holding entry in place of any previous entry for its reason.
func (h RemediationHistory) With(entry RemediationEntry) RemediationHistory {
	out := h.Clone()
	if out == nil {
		out = RemediationHistory{}
	}
	out[entry.Reason] = entry
	return out
}

// Without returns a copy without reason.
func (h RemediationHistory) Without(reason RemediationReason) RemediationHistory {
	out := h.Clone()
	delete(out, reason)
	return out
}

// Entries returns the entries in storage order.
func (h RemediationHistory) Entries() []RemediationEntry {
	out := make([]RemediationEntry, 0, len(h))
	for _, e := range h {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func (h RemediationHistory) Reasons() []RemediationReason {
	entries := h.Entries()
	out := make([]RemediationReason, len(entries))
	for i, e := range entries {
		out[i] = e.Reason
	}
	return out
}

func (h RemediationHistory) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// UnmarshalJSON reads the list form. Rows written before entries were keyed by reason may
// carry duplicates; the newest entry wins.
func (h *RemediationHistory) UnmarshalJSON(b []byte) error {
	var entries []RemediationEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	out := make(RemediationHistory, len(entries))
	for _, e := range entries {
		if prev, ok := out[e.Reason]; ok && prev.Timestamp.After(e.Timestamp) {
			continue
		}
		out[e.Reason] = e
	}
	*h = out
	return nil
}
