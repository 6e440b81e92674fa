package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

// SubmissionProcessor performs one run of a submission job: register the vote
// on the ledger, then confirm it with the census. A failure anywhere fails the
// whole run.
type SubmissionProcessor struct {
	ledger ports.Ledger
	census ports.Census
	log    *slog.Logger
}

// NewSubmissionProcessor creates a new submission processor
func NewSubmissionProcessor(ledger ports.Ledger, census ports.Census, log *slog.Logger) *SubmissionProcessor {
	return &SubmissionProcessor{
		ledger: ledger,
		census: census,
		log:    log.With("component", "submission"),
	}
}

// Process runs job end to end
func (p *SubmissionProcessor) Process(ctx context.Context, job core.SubmissionJob) error {
	start := time.Now()
	p.log.Info("job started", "job_id", job.ID(), "user_id", job.VoterID)

	receipt, err := p.ledger.RegisterVote(ctx, job.Payload)
	if err != nil {
		p.log.Error("ledger registration failed", "job_id", job.ID(), "error", err)
		return fmt.Errorf("ledger registration failed: %w", err)
	}
	if !receipt.Success {
		p.log.Error("ledger rejected vote", "job_id", job.ID(), "reason", receipt.Message)
		return core.Internal("ledger could not process the vote", errors.New(receipt.Message))
	}

	if err := p.census.ConfirmVote(ctx, job.VoterID); err != nil {
		p.log.Error("census confirmation failed", "job_id", job.ID(), "error", err)
		return fmt.Errorf("census confirmation failed: %w", err)
	}

	p.log.Info("job completed",
		"job_id", job.ID(),
		"user_id", job.VoterID,
		"tx_hash", receipt.TxHash,
		"duration", time.Since(start),
	)
	return nil
}
