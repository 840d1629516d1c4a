package supplier

import (
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

// Shares are the per key inputs of the revenue split.
type Shares struct {
	OperatorAddress  string
	OwnerAddress     string
	DelegatorAddress string
	DelegatorShare   int
}

// SharesForKey reads the split inputs stored on a delivered or staked key.
func SharesForKey(k *provider.Key) Shares {
	owner := k.OwnerAddress
	if owner == "" {
		owner = k.StakeOwner
	}
	return Shares{
		OperatorAddress:  k.Address,
		OwnerAddress:     owner,
		DelegatorAddress: k.DelegatorRewardsAddress,
		DelegatorShare:   k.DelegatorRevSharePercentage,
	}
}

// BuildServiceConfigs computes the service list a supplier of group should declare.
//
// For each group service the split is: delegator share (when a delegator is set), then the
// supplier share paid to the operator when the service enables it, then the configured
// shares. Whatever is left below 100% goes to the owner.
func BuildServiceConfigs(group *provider.AddressGroup, s Shares) ([]pocket.ServiceConfig, error) {
	if group == nil {
		return nil, &ValidationError{Field: "address_group", Reason: "missing"}
	}
	out := make([]pocket.ServiceConfig, 0, len(group.Services))
	for _, gs := range group.Services {
		revShare, err := buildRevShare(gs, s)
		if err != nil {
			return nil, err
		}

		params := URLParams{
			ServiceID:  gs.ServiceID,
			RelayMiner: group.RelayMiner.Identity,
			Region:     group.RelayMiner.Region.URLValue,
			Domain:     group.RelayMiner.Domain,
		}
		endpoints := make([]pocket.Endpoint, 0, len(gs.Service.Endpoints))
		for _, e := range gs.Service.Endpoints {
			endpoints = append(endpoints, pocket.Endpoint{
				URL:     EndpointURL(e.URL, e.RPCType, params),
				RPCType: e.RPCType,
				Configs: []pocket.ConfigOption{},
			})
		}

		out = append(out, pocket.ServiceConfig{
			ServiceID: gs.ServiceID,
			Endpoints: endpoints,
			RevShare:  revShare,
		})
	}
	return out, nil
}

type shareBook struct {
	order []string
	pct   map[string]int
	sum   int
}

func (b *shareBook) add(address string, pct int) {
	if address == "" || pct == 0 {
		return
	}
	if _, ok := b.pct[address]; !ok {
		b.order = append(b.order, address)
	}
	b.pct[address] += pct
	b.sum += pct
}

func buildRevShare(gs provider.AddressGroupService, s Shares) ([]pocket.RevShare, error) {
	book := &shareBook{pct: map[string]int{}}

	if s.DelegatorShare < 0 || gs.SupplierShare < 0 {
		return nil, &ValidationError{Field: gs.ServiceID, Reason: "negative revenue share"}
	}
	if s.DelegatorAddress != "" {
		book.add(s.DelegatorAddress, s.DelegatorShare)
	}
	if gs.AddSupplierShare {
		book.add(s.OperatorAddress, gs.SupplierShare)
	}
	for _, rs := range gs.RevShare {
		if rs.Share < 0 {
			return nil, &ValidationError{Field: gs.ServiceID, Reason: "negative revenue share"}
		}
		book.add(rs.Address, rs.Share)
	}

	if book.sum > 100 {
		return nil, &ValidationError{Field: gs.ServiceID, Reason: fmt.Sprintf("revenue shares add up to %d%%", book.sum)}
	}
	if book.sum < 100 {
		if s.OwnerAddress == "" {
			return nil, &ValidationError{Field: gs.ServiceID, Reason: fmt.Sprintf("%d%% unassigned and no owner address", 100-book.sum)}
		}
		book.add(s.OwnerAddress, 100-book.sum)
	}

	out := make([]pocket.RevShare, 0, len(book.order))
	for _, addr := range book.order {
		out = append(out, pocket.RevShare{Address: addr, RevSharePercentage: uint64(book.pct[addr])})
	}
	return out, nil
}
