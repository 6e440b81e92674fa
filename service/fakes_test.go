package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/sevotec/voting-service/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCensus struct {
	mu        sync.Mutex
	started   []string
	saved     []string
	confirmed []string

	startErr   error
	saveErr    error
	confirmErr error
}

func (f *fakeCensus) StartVoting(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, userID)
	return nil
}

func (f *fakeCensus) SaveVote(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, userID)
	return nil
}

func (f *fakeCensus) ConfirmVote(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, userID)
	return nil
}

func (f *fakeCensus) confirmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmed)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []core.SubmissionJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job core.SubmissionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	calls    int
	failures int
	receipt  core.LedgerReceipt
}

func (f *fakeLedger) RegisterVote(_ context.Context, _ core.LedgerVote) (*core.LedgerReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("ledger unavailable")
	}
	receipt := f.receipt
	return &receipt, nil
}
