package pocket

import (
	"context"
	"errors"
)

// ErrTxNotFound is returned while a broadcast transaction is not yet indexed.
var ErrTxNotFound = errors.New("transaction not found")

// Client is the chain surface the provider and middleman workers rely on.
type Client interface {
	Height(ctx context.Context) (int64, error)
	Balance(ctx context.Context, address string) (int64, error)
	// Supplier returns nil without error when the address has no supplier record.
	Supplier(ctx context.Context, address string) (*Supplier, error)
	StakeSupplier(ctx context.Context, params StakeSupplierParams) (TxResult, error)
	SubmitTransaction(ctx context.Context, signedPayload string) (SubmitResult, error)
	VerifyTransaction(ctx context.Context, hash string) (TxVerification, error)
}

// Factory produces clients for a given set of endpoints.
type Factory interface {
	NewClient(endpoints []string) Client
}

type httpFactory struct {
	opts Opts
}

// NewHTTPFactory returns a factory that builds HTTP clients with shared defaults.
func NewHTTPFactory(opts Opts) Factory {
	return &httpFactory{opts: opts}
}

func (f *httpFactory) NewClient(endpoints []string) Client {
	o := f.opts
	o.Endpoints = endpoints
	return NewHTTPWithOpts(o)
}
