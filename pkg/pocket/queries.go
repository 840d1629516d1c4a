package pocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type latestBlockResponse struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// Height returns the latest committed block height.
func (c *HTTPClient) Height(ctx context.Context) (int64, error) {
	var resp latestBlockResponse
	if err := c.doJSON(ctx, http.MethodGet, latestBlockPath, nil, &resp); err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}
	h, err := strconv.ParseInt(resp.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse height %q: %w", resp.Block.Header.Height, err)
	}
	return h, nil
}

type balanceResponse struct {
	Balance Coin `json:"balance"`
}

// Balance returns the upokt balance of address. Unknown accounts have a zero balance.
func (c *HTTPClient) Balance(ctx context.Context, address string) (int64, error) {
	var resp balanceResponse
	path := withQuery(fmt.Sprintf(balancePath, url.PathEscape(address)), url.Values{"denom": {Denom}})
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("balance of %s: %w", address, err)
	}
	return resp.Balance.Int64()
}

type supplierResponse struct {
	Supplier Supplier `json:"supplier"`
}

func (c *HTTPClient) Supplier(ctx context.Context, address string) (*Supplier, error) {
	var resp supplierResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(supplierPath, url.PathEscape(address)), nil, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("supplier %s: %w", address, err)
	}
	if resp.Supplier.OperatorAddress == "" {
		return nil, nil
	}
	return &resp.Supplier, nil
}

type accountInfoResponse struct {
	Info struct {
		Address       string `json:"address"`
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
	} `json:"info"`
}

type account struct {
	Number   uint64
	Sequence uint64
}

// account loads the signer's account number and sequence. The sequence is always fetched,
// the account number is cached after the first lookup.
func (c *HTTPClient) account(ctx context.Context, address string) (account, error) {
	var resp accountInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(accountInfoPath, url.PathEscape(address)), nil, &resp); err != nil {
		return account{}, fmt.Errorf("account info %s: %w", address, err)
	}
	seq, err := parseUint(resp.Info.Sequence)
	if err != nil {
		return account{}, fmt.Errorf("parse sequence: %w", err)
	}
	if number, ok := c.accountNumbers.Load(address); ok {
		return account{Number: number, Sequence: seq}, nil
	}
	number, err := parseUint(resp.Info.AccountNumber)
	if err != nil {
		return account{}, fmt.Errorf("parse account number: %w", err)
	}
	c.accountNumbers.Store(address, number)
	return account{Number: number, Sequence: seq}, nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
