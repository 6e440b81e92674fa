package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/service"
)

// VotingHandlers contains HTTP handlers for voting endpoints
type VotingHandlers struct {
	votes *service.VoteService
	pool  *service.TokenPool
}

// NewVotingHandlers creates new voting handlers
func NewVotingHandlers(votes *service.VoteService, pool *service.TokenPool) *VotingHandlers {
	return &VotingHandlers{
		votes: votes,
		pool:  pool,
	}
}

var errInvalidRequest = core.BadRequest("invalid request body")

// SetTime opens a voting window
func (h *VotingHandlers) SetTime(c *gin.Context) {
	var req struct {
		UserID         string `json:"userId" binding:"required"`
		ExpirationTime int64  `json:"expirationTime" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}

	res, err := h.votes.InitializeSession(c.Request.Context(), req.UserID, req.ExpirationTime)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

type voteRequest struct {
	UserID      string `json:"userId" binding:"required"`
	CandidateID string `json:"candidateId" binding:"required"`
	ElectionID  string `json:"electionId" binding:"required"`
}

// Cast records a candidate choice awaiting confirmation
func (h *VotingHandlers) Cast(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}

	res, err := h.votes.ProcessCast(c.Request.Context(), req.UserID, req.CandidateID, req.ElectionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Confirm finalizes a cast vote
func (h *VotingHandlers) Confirm(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}

	res, err := h.votes.FinalizeVote(c.Request.Context(), req.UserID, req.CandidateID, req.ElectionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, res)
}

// LedgerCallback completes a vote the ledger has durably committed
func (h *VotingHandlers) LedgerCallback(c *gin.Context) {
	var req struct {
		VoterToken string `json:"voterToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}

	if err := h.votes.ConfirmLedgerWrite(c.Request.Context(), req.VoterToken); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Health reports liveness and the remaining token pool size
func (h *VotingHandlers) Health(c *gin.Context) {
	size, err := h.pool.Size(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "tokenPool": size})
}
