package middleman

import (
	"context"
	"errors"

	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNodeNotFound        = errors.New("node not found")
)

// Store exposes the transaction and node operations of the middleman workers.
type Store interface {
	Close() error
	DatabaseName() string
	Ping(ctx context.Context) error

	GetTransaction(ctx context.Context, id int64) (*middleman.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, update middleman.TransactionUpdate) error

	// InsertNodes inserts nodes and links them to transactionID in one transaction.
	InsertNodes(ctx context.Context, nodes []middleman.Node, transactionID int64) ([]middleman.NodeRef, error)
	// UpdateNodesStatusAndLink sets status on the nodes at addresses and links them to transactionID.
	UpdateNodesStatusAndLink(ctx context.Context, addresses []string, status middleman.NodeStatus, transactionID int64) ([]string, error)
	LoadNode(ctx context.Context, address string) (*middleman.Node, error)
	UpdateNodeStatus(ctx context.Context, address string, status middleman.NodeStatus, height int64) (bool, error)
	GetNodesMinAndMax(ctx context.Context) (middleman.NodesMinMax, error)
	LoadNodesInRange(ctx context.Context, minID, maxID int64) ([]middleman.NodeRef, error)
}
