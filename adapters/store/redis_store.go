package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sevotec/voting-service/core"
)

const (
	DefaultPrefix = "voting:"

	sessionKey  = "session:"
	trackingKey = "tracking:"
	tokenPool   = "token-pool"
	jobKey      = "job:"
)

// RedisStore implements the session, tracking, token pool and job ledger
// ports on top of a single Redis client
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultPrefix,
	}
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += p
	}
	return k
}

// Create stores a session that expires at an absolute instant
func (s *RedisStore) Create(ctx context.Context, session *core.VoteSession, expiresAt time.Time) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return core.Internal("failed to encode session", err)
	}

	err = s.client.SetArgs(ctx, s.key(sessionKey, session.VoterID), raw, redis.SetArgs{ExpireAt: expiresAt}).Err()
	if err != nil {
		return fmt.Errorf("failed to create session: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Get loads a session
func (s *RedisStore) Get(ctx context.Context, voterID string) (*core.VoteSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionKey, voterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w: %w", core.ErrStoreOperationFailed, err)
	}

	var session core.VoteSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, core.Internal("failed to decode session", err)
	}
	return &session, nil
}

// TTL returns the remaining lifetime of a session. Redis answers -2 for a
// missing key and -1 for a key without expiry; both map to zero.
func (s *RedisStore) TTL(ctx context.Context, voterID string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key(sessionKey, voterID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read session ttl: %w: %w", core.ErrStoreOperationFailed, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Replace rewrites an existing session with the given ttl. XX keeps an
// expired session from being resurrected without an expiry.
func (s *RedisStore) Replace(ctx context.Context, session *core.VoteSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return core.Internal("failed to encode session", err)
	}

	err = s.client.SetArgs(ctx, s.key(sessionKey, session.VoterID), raw, redis.SetArgs{Mode: "XX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return core.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Delete removes a session
func (s *RedisStore) Delete(ctx context.Context, voterID string) error {
	if err := s.client.Del(ctx, s.key(sessionKey, voterID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// SetTracking stores a token→voter bridge
func (s *RedisStore) SetTracking(ctx context.Context, record core.TrackingRecord, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(trackingKey, record.VoterToken), record.VoterID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store tracking record: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// GetTracking resolves a token to the voter that used it
func (s *RedisStore) GetTracking(ctx context.Context, voterToken string) (core.TrackingRecord, error) {
	voterID, err := s.client.Get(ctx, s.key(trackingKey, voterToken)).Result()
	if errors.Is(err, redis.Nil) {
		return core.TrackingRecord{}, core.ErrTrackingNotFound
	}
	if err != nil {
		return core.TrackingRecord{}, fmt.Errorf("failed to get tracking record: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return core.TrackingRecord{VoterToken: voterToken, VoterID: voterID}, nil
}

// DeleteTracking removes a bridge
func (s *RedisStore) DeleteTracking(ctx context.Context, voterToken string) error {
	if err := s.client.Del(ctx, s.key(trackingKey, voterToken)).Err(); err != nil {
		return fmt.Errorf("failed to delete tracking record: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// PopToken removes and returns a random token with a single SPOP
func (s *RedisStore) PopToken(ctx context.Context) (string, error) {
	token, err := s.client.SPop(ctx, s.key(tokenPool)).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrPoolExhausted
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop token: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return token, nil
}

// PoolSize returns the number of tokens left
func (s *RedisStore) PoolSize(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key(tokenPool)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return n, nil
}

// AddTokens inserts all tokens with one SADD
func (s *RedisStore) AddTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	members := make([]interface{}, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	if err := s.client.SAdd(ctx, s.key(tokenPool), members...).Err(); err != nil {
		return fmt.Errorf("failed to add tokens: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// ClaimJob marks a job id as pending unless it was claimed before
func (s *RedisStore) ClaimJob(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(jobKey, jobID), string(core.JobPending), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return ok, nil
}

var markQueuedScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
end
return false
`)

// MarkJobQueued moves a pending job to queued
func (s *RedisStore) MarkJobQueued(ctx context.Context, jobID string) error {
	err := markQueuedScript.Run(ctx, s.client, []string{s.key(jobKey, jobID)},
		string(core.JobPending), string(core.JobQueued)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to mark job queued: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// ReleaseJob drops a claim so the job can be enqueued again
func (s *RedisStore) ReleaseJob(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.key(jobKey, jobID)).Err(); err != nil {
		return fmt.Errorf("failed to release job: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// SetJobStatus records a job outcome, keeping the claim's expiry
func (s *RedisStore) SetJobStatus(ctx context.Context, jobID string, status core.JobStatus) error {
	key := s.key(jobKey, jobID)

	err := s.client.SetArgs(ctx, key, string(status), redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		// The claim expired before the outcome; start a fresh record
		err = s.client.Set(ctx, key, string(status), core.JobRecordTTL).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set job status: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// JobStatus returns the recorded status of a job
func (s *RedisStore) JobStatus(ctx context.Context, jobID string) (core.JobStatus, error) {
	status, err := s.client.Get(ctx, s.key(jobKey, jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get job status: %w: %w", core.ErrStoreOperationFailed, err)
	}
	return core.JobStatus(status), nil
}

// Client returns the Redis client, shared with the watermill publisher
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
