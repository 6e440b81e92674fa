package ports

import (
	"context"

	"github.com/sevotec/voting-service/core"
)

// Ledger registers votes on the append-only ledger
type Ledger interface {
	RegisterVote(ctx context.Context, vote core.LedgerVote) (*core.LedgerReceipt, error)
}

// Census tracks per-voter voting status
type Census interface {
	StartVoting(ctx context.Context, userID string) error
	SaveVote(ctx context.Context, userID string) error
	ConfirmVote(ctx context.Context, userID string) error
}

// TokenWarehouse is the authoritative source of unused voter tokens
type TokenWarehouse interface {
	UnusedTokens(ctx context.Context) ([]string, error)
}

// JobQueue accepts finalized votes for asynchronous submission
type JobQueue interface {
	// Enqueue is a no-op for a job id that was already enqueued
	Enqueue(ctx context.Context, job core.SubmissionJob) error
}
