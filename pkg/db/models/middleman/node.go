package middleman

import "time"

const NodesTableName = "nodes"

type NodeStatus string

const (
	NodeStatusStaked    NodeStatus = "staked"
	NodeStatusUnstaking NodeStatus = "unstaking"
	NodeStatusUnstaked  NodeStatus = "unstaked"
)

// Node is the demand side view of a supplier it staked through a provider.
type Node struct {
	ID                int64      `json:"id"`
	Address           string     `json:"address"`
	OwnerAddress      string     `json:"owner_address"`
	StakeAmount       int64      `json:"stake_amount"`
	Status            NodeStatus `json:"status"`
	ProviderID        string     `json:"provider_id,omitempty"`
	CreatedBy         string     `json:"created_by"`
	LastUpdatedHeight int64      `json:"last_updated_height"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type NodeRef struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

type NodesMinMax struct {
	Total int64 `json:"total"`
	MinID int64 `json:"min_id"`
	MaxID int64 `json:"max_id"`
}
