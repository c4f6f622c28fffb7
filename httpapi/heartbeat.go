package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rtspgateway/token"
)

type heartbeatRequest struct {
	Token    string `json:"token" binding:"required"`
	ViewerID string `json:"viewer_id,omitempty"`
}

// handleHeartbeat verifies the token then forwards to viewer_heartbeat.
func (s *Server) handleHeartbeat(c *gin.Context) {
	feedID := c.Param("feed_id")

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	claims, outcome, err := s.minter.Verify(req.Token, feedID, c.ClientIP())
	if err != nil {
		switch outcome {
		case token.OutcomeExpired:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
		case token.OutcomeFeedMismatch, token.OutcomeIPMismatch:
			c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this request"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		}
		return
	}

	viewerID := req.ViewerID
	if viewerID == "" {
		viewerID = claims.ViewerID()
	}

	running, err := s.sup.ViewerHeartbeat(c.Request.Context(), feedID, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"running": running})
}

type disconnectRequest struct {
	Token    string `json:"token" binding:"required"`
	ViewerID string `json:"viewer_id,omitempty"`
}

func (s *Server) handleDisconnect(c *gin.Context) {
	feedID := c.Param("feed_id")

	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	claims, _, err := s.minter.Verify(req.Token, feedID, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	viewerID := req.ViewerID
	if viewerID == "" {
		viewerID = claims.ViewerID()
	}

	s.sup.ViewerDisconnect(feedID, viewerID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
