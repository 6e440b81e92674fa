package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sevotec/voting-service/core"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) alive(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// MemoryStore is an in-memory implementation of the store ports with the
// same expiry semantics as RedisStore. It is intended for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	tracking map[string]entry
	jobs     map[string]entry
	pool     map[string]struct{}

	// Now is the clock used for expiry, replaceable in tests
	Now func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry),
		tracking: make(map[string]entry),
		jobs:     make(map[string]entry),
		pool:     make(map[string]struct{}),
		Now:      time.Now,
	}
}

func (s *MemoryStore) lookup(m map[string]entry, key string) (entry, bool) {
	e, ok := m[key]
	if !ok {
		return entry{}, false
	}
	if !e.alive(s.Now()) {
		delete(m, key)
		return entry{}, false
	}
	return e, true
}

// Create stores a session that expires at an absolute instant
func (s *MemoryStore) Create(ctx context.Context, session *core.VoteSession, expiresAt time.Time) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return core.Internal("failed to encode session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.VoterID] = entry{value: raw, expiresAt: expiresAt}
	return nil
}

// Get loads a session
func (s *MemoryStore) Get(ctx context.Context, voterID string) (*core.VoteSession, error) {
	s.mu.Lock()
	e, ok := s.lookup(s.sessions, voterID)
	s.mu.Unlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	var session core.VoteSession
	if err := json.Unmarshal(e.value, &session); err != nil {
		return nil, core.Internal("failed to decode session", err)
	}
	return &session, nil
}

// TTL returns the remaining lifetime of a session
func (s *MemoryStore) TTL(ctx context.Context, voterID string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(s.sessions, voterID)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(s.Now()), nil
}

// Replace rewrites an existing session with the given ttl
func (s *MemoryStore) Replace(ctx context.Context, session *core.VoteSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return core.Internal("failed to encode session", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(s.sessions, session.VoterID); !ok {
		return core.ErrSessionNotFound
	}
	s.sessions[session.VoterID] = entry{value: raw, expiresAt: s.Now().Add(ttl)}
	return nil
}

// Delete removes a session
func (s *MemoryStore) Delete(ctx context.Context, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, voterID)
	return nil
}

// SetTracking stores a token→voter bridge
func (s *MemoryStore) SetTracking(ctx context.Context, record core.TrackingRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracking[record.VoterToken] = entry{value: []byte(record.VoterID), expiresAt: s.Now().Add(ttl)}
	return nil
}

// GetTracking resolves a token to the voter that used it
func (s *MemoryStore) GetTracking(ctx context.Context, voterToken string) (core.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(s.tracking, voterToken)
	if !ok {
		return core.TrackingRecord{}, core.ErrTrackingNotFound
	}
	return core.TrackingRecord{VoterToken: voterToken, VoterID: string(e.value)}, nil
}

// DeleteTracking removes a bridge
func (s *MemoryStore) DeleteTracking(ctx context.Context, voterToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tracking, voterToken)
	return nil
}

// PopToken removes and returns an arbitrary token
func (s *MemoryStore) PopToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token := range s.pool {
		delete(s.pool, token)
		return token, nil
	}
	return "", core.ErrPoolExhausted
}

// PoolSize returns the number of tokens left
func (s *MemoryStore) PoolSize(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.pool)), nil
}

// AddTokens inserts tokens into the pool
func (s *MemoryStore) AddTokens(ctx context.Context, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tokens {
		s.pool[t] = struct{}{}
	}
	return nil
}

// ClaimJob marks a job id as pending unless it was claimed before
func (s *MemoryStore) ClaimJob(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(s.jobs, jobID); ok {
		return false, nil
	}
	s.jobs[jobID] = entry{value: []byte(core.JobPending), expiresAt: s.Now().Add(ttl)}
	return true, nil
}

// MarkJobQueued moves a pending job to queued
func (s *MemoryStore) MarkJobQueued(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(s.jobs, jobID)
	if !ok || core.JobStatus(e.value) != core.JobPending {
		return nil
	}
	e.value = []byte(core.JobQueued)
	s.jobs[jobID] = e
	return nil
}

// ReleaseJob drops a claim
func (s *MemoryStore) ReleaseJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobID)
	return nil
}

// SetJobStatus records a job outcome, keeping the claim's expiry
func (s *MemoryStore) SetJobStatus(ctx context.Context, jobID string, status core.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(s.jobs, jobID)
	if !ok {
		e.expiresAt = s.Now().Add(core.JobRecordTTL)
	}
	e.value = []byte(status)
	s.jobs[jobID] = e
	return nil
}

// JobStatus returns the recorded status of a job
func (s *MemoryStore) JobStatus(ctx context.Context, jobID string) (core.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(s.jobs, jobID)
	if !ok {
		return "", nil
	}
	return core.JobStatus(e.value), nil
}
