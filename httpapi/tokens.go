package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rtspgateway/token"
)

type mintRequest struct {
	FeedID   string `json:"feed_id" binding:"required"`
	IP       string `json:"ip,omitempty"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

// handleMintToken wraps token.Minter.Mint for §4.8's mint endpoint.
func (s *Server) handleMintToken(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	exists, err := s.store.FeedExists(req.FeedID)
	if err != nil || !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed"})
		return
	}

	var ttl time.Duration
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	signed, err := s.minter.Mint(req.FeedID, req.IP, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed})
}

// handleVerifyToken wraps token.Minter.Verify for §4.8's verify
// endpoint, used by external callers that want a status check without
// triggering a heartbeat/start side effect.
func (s *Server) handleVerifyToken(c *gin.Context) {
	feedID := c.Query("feed_id")
	tok := c.Query("token")
	if feedID == "" || tok == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed_id and token are required"})
		return
	}

	_, outcome, err := s.minter.Verify(tok, feedID, c.ClientIP())
	if err != nil {
		switch outcome {
		case token.OutcomeExpired:
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "expired"})
		case token.OutcomeFeedMismatch, token.OutcomeIPMismatch:
			c.JSON(http.StatusForbidden, gin.H{"valid": false, "error": "mismatch"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "invalid"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}
