package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rtspgateway/errs"
	"rtspgateway/token"
)

// serveHLS dispatches on suffix between the token-gated playlist and
// the ungated segment, grounded on original_source/main.py: serve_hls.
func (s *Server) serveHLS(c *gin.Context) {
	feedID := c.Param("feed_id")
	file := c.Param("file")

	c.Writer.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Writer.Header().Set("Pragma", "no-cache")

	switch {
	case strings.HasSuffix(file, ".m3u8"):
		s.servePlaylist(c, feedID)
	case strings.HasSuffix(file, ".ts"):
		s.serveSegment(c, feedID, file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
	}
}

// servePlaylist requires a valid token and lazily starts the feed,
// polling for the playlist file every 500ms up to 15s.
func (s *Server) servePlaylist(c *gin.Context, feedID string) {
	exists, err := s.store.FeedExists(feedID)
	if err != nil || !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed"})
		return
	}

	tok := c.Query("token")
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	claims, outcome, verifyErr := s.minter.Verify(tok, feedID, c.ClientIP())
	if verifyErr != nil {
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

	playlistPath := s.sup.PlaylistPath(feedID)

	if _, statErr := os.Stat(playlistPath); statErr != nil {
		if startErr := s.sup.StartFeed(c.Request.Context(), feedID, claims.ViewerID()); startErr != nil {
			if errs.HTTPStatus(startErr) == http.StatusNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed"})
				return
			}
			// Probe/spawn failures fall through to the poll loop below,
			// which will time out to "stream not ready" rather than
			// introducing a second error shape to maintain here.
		}

		deadline := time.Now().Add(s.cfg.PlaylistPollTimeout)
		for {
			if _, statErr := os.Stat(playlistPath); statErr == nil {
				break
			}
			if time.Now().After(deadline) {
				c.JSON(http.StatusNotFound, gin.H{"error": "stream not ready"})
				return
			}
			time.Sleep(s.cfg.PlaylistPollInterval)
		}
	}

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.File(playlistPath)
}

// serveSegment serves a .ts file with no token check — the playlist
// itself is protected and segment names are unguessable.
func (s *Server) serveSegment(c *gin.Context, feedID, file string) {
	path, err := s.sup.SegmentPath(feedID, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid segment name"})
		return
	}
	if _, statErr := os.Stat(path); statErr != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
		return
	}

	c.Header("Content-Type", "video/mp2t")
	c.File(path)
}
