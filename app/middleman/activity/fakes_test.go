package activity

import (
	"context"
	"sync"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

type fakeStore struct {
	middlemanstore.Store

	mu     sync.Mutex
	txs    map[int64]middleman.Transaction
	nodes  map[string]middleman.Node
	links  map[int64][]string
	nextID int64
}

func newFakeStore(txs ...middleman.Transaction) *fakeStore {
	s := &fakeStore{
		txs:    map[int64]middleman.Transaction{},
		nodes:  map[string]middleman.Node{},
		links:  map[int64][]string{},
		nextID: 1,
	}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return s
}

func (s *fakeStore) tx(id int64) middleman.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs[id]
}

func (s *fakeStore) node(address string) middleman.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[address]
}

func (s *fakeStore) addNode(n middleman.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		n.ID = s.nextID
		s.nextID++
	}
	s.nodes[n.Address] = n
}

func (s *fakeStore) GetTransaction(_ context.Context, id int64) (*middleman.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, middlemanstore.ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *fakeStore) UpdateTransaction(_ context.Context, id int64, u middleman.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return middlemanstore.ErrTransactionNotFound
	}
	if u.Status != nil {
		tx.Status = *u.Status
	}
	if u.Hash != nil {
		tx.Hash = *u.Hash
	}
	if u.ExecutionHeight != nil {
		tx.ExecutionHeight = u.ExecutionHeight
	}
	if u.VerificationHeight != nil {
		tx.VerificationHeight = u.VerificationHeight
	}
	if u.Code != nil {
		tx.Code = u.Code
	}
	if u.Log != nil {
		tx.Log = *u.Log
	}
	if u.ConsumedFee != nil {
		tx.ConsumedFee = *u.ConsumedFee
	}
	s.txs[id] = tx
	return nil
}

func (s *fakeStore) InsertNodes(_ context.Context, nodes []middleman.Node, transactionID int64) ([]middleman.NodeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]middleman.NodeRef, 0, len(nodes))
	for _, n := range nodes {
		if existing, ok := s.nodes[n.Address]; ok {
			n.ID = existing.ID
		} else {
			n.ID = s.nextID
			s.nextID++
		}
		s.nodes[n.Address] = n
		s.links[transactionID] = append(s.links[transactionID], n.Address)
		refs = append(refs, middleman.NodeRef{ID: n.ID, Address: n.Address})
	}
	return refs, nil
}

func (s *fakeStore) UpdateNodesStatusAndLink(_ context.Context, addresses []string, status middleman.NodeStatus, transactionID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := []string{}
	for _, a := range addresses {
		n, ok := s.nodes[a]
		if !ok {
			continue
		}
		n.Status = status
		s.nodes[a] = n
		s.links[transactionID] = append(s.links[transactionID], a)
		updated = append(updated, a)
	}
	return updated, nil
}

func (s *fakeStore) LoadNode(_ context.Context, address string) (*middleman.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[address]
	if !ok {
		return nil, middlemanstore.ErrNodeNotFound
	}
	return &n, nil
}

func (s *fakeStore) UpdateNodeStatus(_ context.Context, address string, status middleman.NodeStatus, height int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[address]
	if !ok || n.LastUpdatedHeight > height {
		return false, nil
	}
	n.Status = status
	n.LastUpdatedHeight = height
	s.nodes[address] = n
	return true, nil
}

type fakeChain struct {
	pocket.Client

	mu sync.Mutex
	// heights are returned in order; the last one repeats.
	heights      []int64
	suppliers    map[string]*pocket.Supplier
	submitResult pocket.SubmitResult
	submitted    []string
	verification pocket.TxVerification
	verifyErr    error
}

func newFakeChain(heights ...int64) *fakeChain {
	return &fakeChain{heights: heights, suppliers: map[string]*pocket.Supplier{}}
}

func (c *fakeChain) Height(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.heights[0]
	if len(c.heights) > 1 {
		c.heights = c.heights[1:]
	}
	return h, nil
}

func (c *fakeChain) Supplier(_ context.Context, address string) (*pocket.Supplier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppliers[address], nil
}

func (c *fakeChain) SubmitTransaction(_ context.Context, signed string) (pocket.SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, signed)
	return c.submitResult, nil
}

func (c *fakeChain) VerifyTransaction(context.Context, string) (pocket.TxVerification, error) {
	return c.verification, c.verifyErr
}

type published struct {
	identity string
	n        notify.Notification
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, identity string, n notify.Notification) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{identity: identity, n: n})
	return "1-0", nil
}
