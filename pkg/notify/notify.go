// Package notify carries provider notifications over a Redis stream per provider.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/igniter-labs/igniterx/pkg/redis"
)

type Kind string

const (
	KindNodesStaked    Kind = "nodes_staked"
	KindStakesFailed   Kind = "stakes_failed"
	KindNodesUnstaking Kind = "nodes_unstaking"
)

// Notification tells a provider what happened to keys it delivered to RequestingParty.
type Notification struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	Addresses       []string  `json:"addresses"`
	RequestingParty string    `json:"requesting_party"`
	TransactionID   int64     `json:"transaction_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// StreamName is the stream a provider identity consumes.
func StreamName(providerIdentity string) string {
	return fmt.Sprintf("provider:%s:notifications", providerIdentity)
}

type Publisher interface {
	Publish(ctx context.Context, providerIdentity string, n Notification) (string, error)
}

// RedisPublisher appends notifications to the provider's stream.
type RedisPublisher struct {
	client *redis.Client
	now    func() time.Time
}

func NewPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

// Publish stamps n with an id and time when missing and returns the stream entry id.
func (p *RedisPublisher) Publish(ctx context.Context, providerIdentity string, n Notification) (string, error) {
	if providerIdentity == "" {
		return "", fmt.Errorf("provider identity is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = p.now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}
	return p.client.XAdd(ctx, StreamName(providerIdentity), map[string]interface{}{
		"kind": string(n.Kind),
		"data": string(data),
	})
}

// Decode reads a notification from a stream entry.
func Decode(msg redis.Message) (Notification, error) {
	data := msg.GetData()
	if data == nil {
		return Notification{}, fmt.Errorf("entry %s has no data", msg.ID)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode entry %s: %w", msg.ID, err)
	}
	return n, nil
}

type HandlerFunc func(ctx context.Context, n Notification) error

// Dispatcher routes notifications by kind. Kinds without a handler are acknowledged and dropped.
type Dispatcher struct {
	NodesStaked    HandlerFunc
	StakesFailed   HandlerFunc
	NodesUnstaking HandlerFunc
}

// Handle decodes msg and calls the handler of its kind. Entries that cannot be decoded are
// acknowledged; replaying them would never succeed.
func (d Dispatcher) Handle(ctx context.Context, msg redis.Message) error {
	n, err := Decode(msg)
	if err != nil {
		return nil
	}
	var h HandlerFunc
	switch n.Kind {
	case KindNodesStaked:
		h = d.NodesStaked
	case KindStakesFailed:
		h = d.StakesFailed
	case KindNodesUnstaking:
		h = d.NodesUnstaking
	}
	if h == nil {
		return nil
	}
	return h(ctx, n)
}
