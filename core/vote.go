package core

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// SessionStatus is the state of a voter's session
type SessionStatus string

const (
	StatusCreated             SessionStatus = "CREATED"
	StatusPendingConfirmation SessionStatus = "PENDING_CONFIRMATION"
)

// VoteSession tracks where a voter is in the voting flow
type VoteSession struct {
	VoterID     string        `json:"userId"`
	VoterToken  string        `json:"voterToken"`
	CandidateID string        `json:"candidateId,omitempty"`
	ElectionID  string        `json:"electionId,omitempty"`
	Status      SessionStatus `json:"status"`
	ExpiresAt   int64         `json:"expirationTime"` // unix seconds
}

// Expiry returns ExpiresAt as a time
func (s *VoteSession) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// TrackingTTL is how long a token→voter bridge survives after finalization
const TrackingTTL = 24 * time.Hour

// TrackingRecord bridges an anonymous token back to the voter that used it
type TrackingRecord struct {
	VoterToken string
	VoterID    string
}

// LedgerVote is the body registered on the ledger
type LedgerVote struct {
	VoterToken  string `json:"voterToken"`
	ElectionID  string `json:"electionId"`
	CandidateID string `json:"candidateId"`
	Timestamp   string `json:"timestamp"` // unix milliseconds
}

// LedgerReceipt is the ledger's answer to a registration
type LedgerReceipt struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Message string `json:"message,omitempty"`
}

// SubmissionJob is one finalized vote waiting for the ledger
type SubmissionJob struct {
	VoterID string     `json:"userId"`
	Payload LedgerVote `json:"payload"`
}

// ID is deterministic so that re-enqueueing the same vote collapses
func (j SubmissionJob) ID() string {
	return JobID(j.VoterID, j.Payload.ElectionID)
}

// JobID builds the id of the job for a voter's vote in an election
func JobID(voterID, electionID string) string {
	return fmt.Sprintf("vote-%s-%s", voterID, electionID)
}

// JobStatus is the lifecycle of a submission job
type JobStatus string

const (
	// JobPending is a claimed job that has not been published yet
	JobPending   JobStatus = "pending"
	JobQueued    JobStatus = "queued"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRecordTTL is how long a job claim and its status are kept
const JobRecordTTL = 24 * time.Hour

// Fingerprint returns a short, non-reversible tag for a voter token, for logs
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return crypto.Keccak256Hash([]byte(token)).Hex()[:18]
}
