package proxy

import (
	"context"

	"github.com/sevotec/voting-service/core"
)

// RouteCommitVote registers a vote on the ledger
const RouteCommitVote = "/transactions/commit-vote"

// LedgerProxy implements ports.Ledger against the blockchain service
type LedgerProxy struct {
	client *Client
}

// NewLedgerProxy creates a ledger proxy
func NewLedgerProxy(client *Client) *LedgerProxy {
	return &LedgerProxy{client: client}
}

// RegisterVote submits vote and returns the ledger's receipt
func (p *LedgerProxy) RegisterVote(ctx context.Context, vote core.LedgerVote) (*core.LedgerReceipt, error) {
	var receipt core.LedgerReceipt
	if err := p.client.Call(ctx, RouteCommitVote, vote, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
