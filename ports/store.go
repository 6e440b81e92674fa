package ports

import (
	"context"
	"time"

	"github.com/sevotec/voting-service/core"
)

// SessionStore persists vote sessions with store-enforced expiry
type SessionStore interface {
	// Create writes a session that expires at the given wall-clock instant,
	// overwriting any existing one.
	Create(ctx context.Context, session *core.VoteSession, expiresAt time.Time) error

	// Get returns core.ErrSessionNotFound when the session is absent or expired
	Get(ctx context.Context, voterID string) (*core.VoteSession, error)

	// TTL returns the remaining lifetime, zero or negative when gone
	TTL(ctx context.Context, voterID string) (time.Duration, error)

	// Replace overwrites an existing session with the given lifetime. It
	// returns core.ErrSessionNotFound if the session vanished meanwhile.
	Replace(ctx context.Context, session *core.VoteSession, ttl time.Duration) error

	Delete(ctx context.Context, voterID string) error
}

// TrackingStore holds token→voter bridges for ledger callbacks
type TrackingStore interface {
	SetTracking(ctx context.Context, record core.TrackingRecord, ttl time.Duration) error
	// GetTracking returns core.ErrTrackingNotFound when absent
	GetTracking(ctx context.Context, voterToken string) (core.TrackingRecord, error)
	DeleteTracking(ctx context.Context, voterToken string) error
}

// TokenPoolStore is the shared set of unused voter tokens
type TokenPoolStore interface {
	// PopToken atomically removes one token; core.ErrPoolExhausted when empty
	PopToken(ctx context.Context) (string, error)
	PoolSize(ctx context.Context) (int64, error)
	AddTokens(ctx context.Context, tokens []string) error
}

// JobLedger records submission job claims and outcomes
type JobLedger interface {
	// ClaimJob marks a job as pending. It reports false if the id was already claimed.
	ClaimJob(ctx context.Context, jobID string, ttl time.Duration) (bool, error)
	// MarkJobQueued moves a pending job to queued and leaves any other status alone
	MarkJobQueued(ctx context.Context, jobID string) error
	ReleaseJob(ctx context.Context, jobID string) error
	// SetJobStatus overwrites the status, keeping the record's expiry. A
	// missing record is recreated with core.JobRecordTTL.
	SetJobStatus(ctx context.Context, jobID string, status core.JobStatus) error
	// JobStatus returns an empty status for unknown jobs
	JobStatus(ctx context.Context, jobID string) (core.JobStatus, error)
}
