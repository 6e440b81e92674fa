package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sevotec/voting-service/ports"
)

const unusedTokensQuery = `SELECT token_value FROM voter_tokens_pool WHERE is_used = false`

// Querier is the subset of pgxpool.Pool the warehouse needs
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresWarehouse reads unused voter tokens from the voter_tokens_pool table
type PostgresWarehouse struct {
	db      Querier
	timeout time.Duration
}

// NewPostgresWarehouse wraps an existing connection pool or connection
func NewPostgresWarehouse(db Querier) *PostgresWarehouse {
	return &PostgresWarehouse{db: db, timeout: 30 * time.Second}
}

// Connect opens a connection pool to databaseURL and verifies it
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

var _ ports.TokenWarehouse = (*PostgresWarehouse)(nil)

// UnusedTokens returns every token not yet burned
func (w *PostgresWarehouse) UnusedTokens(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	rows, err := w.db.Query(ctx, unusedTokensQuery)
	if err != nil {
		return nil, fmt.Errorf("querying unused tokens: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning unused tokens: %w", err)
	}
	return tokens, nil
}

// StaticWarehouse serves a fixed token list, for local runs and tests
type StaticWarehouse struct {
	Tokens []string
	Err    error
}

// UnusedTokens returns the configured tokens
func (w *StaticWarehouse) UnusedTokens(ctx context.Context) ([]string, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	out := make([]string, len(w.Tokens))
	copy(out, w.Tokens)
	return out, nil
}
