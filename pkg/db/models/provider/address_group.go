package provider

import (
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const (
	AddressGroupsTableName        = "address_groups"
	AddressGroupServicesTableName = "address_group_services"
	ServicesTableName             = "services"
	RelayMinersTableName          = "relay_miners"
	RegionsTableName              = "regions"
)

type Region struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	URLValue    string `json:"url_value"`
}

type RelayMiner struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
	Domain   string `json:"domain"`
	Region   Region `json:"region"`
}

type ServiceEndpoint struct {
	URL     string         `json:"url"`
	RPCType pocket.RPCType `json:"rpc_type"`
}

// Service is a chain service offered by the provider, with endpoint URL templates.
type Service struct {
	ServiceID string            `json:"service_id"`
	Name      string            `json:"name"`
	Endpoints []ServiceEndpoint `json:"endpoints"`
}

type RevShare struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// AddressGroupService binds a service to a group together with its revenue share rules.
type AddressGroupService struct {
	ServiceID        string     `json:"service_id"`
	AddSupplierShare bool       `json:"add_supplier_share"`
	SupplierShare    int        `json:"supplier_share"`
	RevShare         []RevShare `json:"rev_share"`
	Service          Service    `json:"service"`
}

// AddressGroup is a plan bundling service configuration for the keys it owns.
type AddressGroup struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	LinkedAddresses []string              `json:"linked_addresses"`
	Private         bool                  `json:"private"`
	RelayMiner      RelayMiner            `json:"relay_miner"`
	Services        []AddressGroupService `json:"services"`
}

// AllowsOwner reports whether keys of this group may be delivered to owner. Private groups
// only serve their linked addresses.
func (g *AddressGroup) AllowsOwner(owner string) bool {
	if !g.Private {
		return true
	}
	for _, linked := range g.LinkedAddresses {
		if linked == owner {
			return true
		}
	}
	return false
}
