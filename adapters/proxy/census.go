package proxy

import "context"

// Census routes
const (
	RouteStartVoting = "census.start-voting"
	RouteSaveVote    = "census.save-vote"
	RouteConfirmVote = "census.confirm-vote"
)

type censusRequest struct {
	UserID string `json:"userId"`
}

// CensusProxy implements ports.Census against the census service
type CensusProxy struct {
	client *Client
}

// NewCensusProxy creates a census proxy
func NewCensusProxy(client *Client) *CensusProxy {
	return &CensusProxy{client: client}
}

// StartVoting marks userID as voting
func (p *CensusProxy) StartVoting(ctx context.Context, userID string) error {
	return p.client.Call(ctx, RouteStartVoting, censusRequest{UserID: userID}, nil)
}

// SaveVote marks userID's vote as submitted
func (p *CensusProxy) SaveVote(ctx context.Context, userID string) error {
	return p.client.Call(ctx, RouteSaveVote, censusRequest{UserID: userID}, nil)
}

// ConfirmVote marks userID's vote as durably recorded
func (p *CensusProxy) ConfirmVote(ctx context.Context, userID string) error {
	return p.client.Call(ctx, RouteConfirmVote, censusRequest{UserID: userID}, nil)
}
