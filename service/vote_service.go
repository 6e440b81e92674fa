package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

const (
	// StatusWaitingForConfirmation is reported after a cast
	StatusWaitingForConfirmation = "WAITING_FOR_USER_CONFIRMATION"

	isoLayout = "2006-01-02T15:04:05.000Z"
)

// TokenSource hands out single-use voter tokens
type TokenSource interface {
	PopToken(ctx context.Context) (string, error)
}

// SessionResult is returned when a voting window opens
type SessionResult struct {
	Success   bool   `json:"success"`
	ExpiresAt string `json:"expiresAt"`
}

// CastResult is returned when a choice is waiting for confirmation
type CastResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CandidateID string `json:"candidateId"`
	ElectionID  string `json:"electionId"`
}

// FinalizeResult is returned when a confirmed vote is accepted for submission
type FinalizeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VoteService drives the per-voter session state machine. It is the only
// writer of sessions.
type VoteService struct {
	sessions ports.SessionStore
	tracking ports.TrackingStore
	tokens   TokenSource
	census   ports.Census
	queue    ports.JobQueue
	log      *slog.Logger

	now func() time.Time
}

// NewVoteService creates a new vote service
func NewVoteService(
	sessions ports.SessionStore,
	tracking ports.TrackingStore,
	tokens TokenSource,
	census ports.Census,
	queue ports.JobQueue,
	log *slog.Logger,
) *VoteService {
	return &VoteService{
		sessions: sessions,
		tracking: tracking,
		tokens:   tokens,
		census:   census,
		queue:    queue,
		log:      log.With("component", "vote_service"),
		now:      time.Now,
	}
}

// InitializeSession opens a voting window for userID ending at
// expirationTime (unix seconds). An existing session is overwritten.
func (s *VoteService) InitializeSession(ctx context.Context, userID string, expirationTime int64) (*SessionResult, error) {
	if userID == "" {
		return nil, core.BadRequest("userId is required")
	}

	session := &core.VoteSession{
		VoterID:   userID,
		Status:    core.StatusCreated,
		ExpiresAt: expirationTime,
	}

	now := s.now()
	expiresAt := session.Expiry()
	if !expiresAt.After(now) {
		return nil, core.ErrInvalidExpiration
	}

	token, err := s.tokens.PopToken(ctx)
	if err != nil {
		s.log.Error("failed to draw voter token", "user_id", userID, "error", err)
		return nil, core.Internal("could not establish voting session", err)
	}
	session.VoterToken = token

	if err := s.sessions.Create(ctx, session, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	if err := s.census.StartVoting(ctx, userID); err != nil {
		// The drawn token is burned; tokens are never handed out twice.
		if derr := s.sessions.Delete(ctx, userID); derr != nil {
			s.log.Error("failed to roll back session", "user_id", userID, "error", derr)
		}
		s.log.Error("census rejected voting start", "user_id", userID, "error", err)
		return nil, core.Internal("could not notify census", err)
	}

	s.log.Info("voting session created",
		"user_id", userID,
		"token", core.Fingerprint(token),
		"ttl", expiresAt.Sub(now).Round(time.Second),
	)

	return &SessionResult{
		Success:   true,
		ExpiresAt: expiresAt.UTC().Format(isoLayout),
	}, nil
}

// ProcessCast binds a candidate and election to the session and moves it to
// PENDING_CONFIRMATION, preserving the remaining window exactly.
//
// The read-ttl/write-with-ttl sequence is not transactional: two concurrent
// casts for the same voter race and the last write wins.
func (s *VoteService) ProcessCast(ctx context.Context, userID, candidateID, electionID string) (*CastResult, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ttl, err := s.sessions.TTL(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, core.ErrSessionExpired
	}

	if candidateID == "" || electionID == "" {
		return nil, core.BadRequest("candidateId and electionId are required")
	}

	session.CandidateID = candidateID
	session.ElectionID = electionID
	session.Status = core.StatusPendingConfirmation

	if err := s.sessions.Replace(ctx, session, ttl); err != nil {
		return nil, err
	}

	s.log.Info("vote waiting for confirmation", "user_id", userID, "election_id", electionID)

	return &CastResult{
		Status:      StatusWaitingForConfirmation,
		Message:     "Candidate selected. Please confirm your vote.",
		CandidateID: candidateID,
		ElectionID:  electionID,
	}, nil
}

// FinalizeVote accepts a confirmed vote for asynchronous submission. A
// confirmation that differs from the cast destroys the session.
func (s *VoteService) FinalizeVote(ctx context.Context, userID, candidateID, electionID string) (*FinalizeResult, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != core.StatusPendingConfirmation {
		return nil, core.ErrInvalidState
	}

	if session.CandidateID != candidateID || session.ElectionID != electionID {
		if err := s.sessions.Delete(ctx, userID); err != nil {
			s.log.Error("failed to destroy tampered session", "user_id", userID, "error", err)
		}
		s.log.Warn("confirmation does not match cast, session destroyed",
			"event", "security_alert",
			"user_id", userID,
			"election_id", electionID,
		)
		return nil, core.ErrTamperedConfirmation
	}

	if err := s.census.SaveVote(ctx, userID); err != nil {
		return nil, core.Internal("could not notify census", err)
	}

	record := core.TrackingRecord{VoterToken: session.VoterToken, VoterID: userID}
	if err := s.tracking.SetTracking(ctx, record, core.TrackingTTL); err != nil {
		return nil, fmt.Errorf("failed to store tracking record: %w", err)
	}

	job := core.SubmissionJob{
		VoterID: userID,
		Payload: core.LedgerVote{
			VoterToken:  session.VoterToken,
			ElectionID:  session.ElectionID,
			CandidateID: session.CandidateID,
			Timestamp:   strconv.FormatInt(s.now().UnixMilli(), 10),
		},
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, core.Internal("could not enqueue vote", err)
	}

	// The vote is already queued; a stale session only lets a retry hit the
	// idempotent enqueue again.
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.log.Error("failed to delete finalized session", "user_id", userID, "error", err)
	}

	s.log.Info("vote accepted for processing", "user_id", userID, "job_id", job.ID())

	return &FinalizeResult{
		Success: true,
		Message: "Vote accepted for processing.",
	}, nil
}

// ConfirmLedgerWrite completes a vote once the ledger reports a durable
// commit for voterToken. A missing bridge is not an error.
func (s *VoteService) ConfirmLedgerWrite(ctx context.Context, voterToken string) error {
	if voterToken == "" {
		return core.BadRequest("voterToken is required")
	}

	record, err := s.tracking.GetTracking(ctx, voterToken)
	if errors.Is(err, core.ErrTrackingNotFound) {
		s.log.Warn("no tracking record for ledger confirmation", "token", core.Fingerprint(voterToken))
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.census.ConfirmVote(ctx, record.VoterID); err != nil {
		return core.Internal("could not confirm vote with census", err)
	}

	if err := s.tracking.DeleteTracking(ctx, voterToken); err != nil {
		s.log.Error("failed to delete tracking record", "token", core.Fingerprint(voterToken), "error", err)
	}

	s.log.Info("ledger write confirmed", "user_id", record.VoterID)
	return nil
}
