package service

import (
	"context"
	"log/slog"

	"github.com/sevotec/voting-service/ports"
)

// TokenPool hands out single-use anonymous voter tokens
type TokenPool struct {
	store     ports.TokenPoolStore
	warehouse ports.TokenWarehouse
	log       *slog.Logger
}

// NewTokenPool creates a token pool backed by store and hydrated from warehouse
func NewTokenPool(store ports.TokenPoolStore, warehouse ports.TokenWarehouse, log *slog.Logger) *TokenPool {
	return &TokenPool{
		store:     store,
		warehouse: warehouse,
		log:       log.With("component", "token_pool"),
	}
}

// PopToken removes and returns one token. Atomicity is delegated to the store.
func (p *TokenPool) PopToken(ctx context.Context) (string, error) {
	return p.store.PopToken(ctx)
}

// Size returns the number of tokens left in the pool
func (p *TokenPool) Size(ctx context.Context) (int64, error) {
	return p.store.PoolSize(ctx)
}

// Hydrate loads unused tokens from the warehouse when the pool is empty. It
// is safe to call repeatedly. Failures are logged and returned; a cold pool
// only makes session creation fail.
func (p *TokenPool) Hydrate(ctx context.Context) (int, error) {
	count, err := p.store.PoolSize(ctx)
	if err != nil {
		p.log.Error("failed to check token pool size", "error", err)
		return 0, err
	}
	if count > 0 {
		p.log.Info("token pool already populated, skipping hydration", "size", count)
		return 0, nil
	}

	p.log.Info("token pool is empty, loading from warehouse")

	tokens, err := p.warehouse.UnusedTokens(ctx)
	if err != nil {
		p.log.Error("failed to fetch tokens from warehouse", "error", err)
		return 0, err
	}
	if len(tokens) == 0 {
		p.log.Warn("warehouse has no unused tokens")
		return 0, nil
	}

	if err := p.store.AddTokens(ctx, tokens); err != nil {
		p.log.Error("failed to load tokens into pool", "error", err)
		return 0, err
	}

	p.log.Info("token pool hydrated", "loaded", len(tokens))
	return len(tokens), nil
}
