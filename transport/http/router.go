package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/sevotec/voting-service/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(votes *service.VoteService, pool *service.TokenPool, gate GateConfig, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log.With("component", "http")))

	// Create handlers
	handlers := NewVotingHandlers(votes, pool)

	router.GET("/healthz", handlers.Health)

	// Gated voting routes
	voting := router.Group("/voting")
	voting.Use(SecurityGate(gate)...)
	{
		voting.POST("/setTime", handlers.SetTime)
		voting.POST("/cast", handlers.Cast)
		voting.POST("/confirm", handlers.Confirm)
		voting.POST("/ledger-callback", handlers.LedgerCallback)
	}

	return router
}
