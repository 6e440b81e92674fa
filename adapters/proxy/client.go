package proxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sevotec/voting-service/adapters/envelope"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

// Client calls one peer service with the full set of security headers
type Client struct {
	target    envelope.Peer
	codec     *envelope.Codec
	tokenizer ports.Tokenizer
	apiKey    string
	transport Transport
}

// NewClient creates a client for target
func NewClient(target envelope.Peer, codec *envelope.Codec, tokenizer ports.Tokenizer, apiKey string, transport Transport) *Client {
	return &Client{
		target:    target,
		codec:     codec,
		tokenizer: tokenizer,
		apiKey:    apiKey,
		transport: transport,
	}
}

// Call packs payload for the target, attaches the API key and an identity
// assertion, and sends it to route. When out is non-nil the response body is
// decoded into it.
func (c *Client) Call(ctx context.Context, route string, payload, out any) error {
	env, err := c.codec.Pack(c.target, payload)
	if err != nil {
		return downstream(c.target.Service, route, err)
	}

	identity, err := c.tokenizer.Issue(c.target.Service)
	if err != nil {
		return downstream(c.target.Service, route, err)
	}

	headers := make(map[string]string, len(env.Headers)+2)
	for k, v := range env.Headers {
		headers[k] = v
	}
	headers[envelope.HeaderAPIKey] = c.apiKey
	headers[envelope.HeaderIdentity] = identity

	resp, err := c.transport.Send(ctx, route, headers, env.Body)
	if err != nil {
		return downstream(c.target.Service, route, err)
	}

	if out != nil && len(resp) > 0 {
		if err := json.Unmarshal(resp, out); err != nil {
			return downstream(c.target.Service, route, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

func downstream(service, route string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", core.ErrDownstream, service, route, err)
}
