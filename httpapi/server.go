// Package httpapi implements the HLS server, the token and heartbeat
// management endpoints, and the middleware stack, grounded on an
// existing router-setup-plus-CORS pattern and extended with
// original_source/main.py's lazy-start-and-poll serving logic.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rtspgateway/catalog"
	"rtspgateway/supervisor"
	"rtspgateway/token"
)

// Config carries the subset of the process config the HTTP surface
// needs directly (the rest flows through Supervisor/Store).
type Config struct {
	StreamsDir         string
	PlaylistPollTimeout time.Duration
	PlaylistPollInterval time.Duration
	RateLimitPerSecond  float64
	RateLimitBurst      int
}

// Server wires the HLS server, management endpoints, and middleware
// into a *gin.Engine.
type Server struct {
	cfg     Config
	router  *gin.Engine
	sup     *supervisor.Supervisor
	store   catalog.Store
	minter  *token.Minter
	log     zerolog.Logger
	promReg *prometheus.Registry
}

func New(cfg Config, sup *supervisor.Supervisor, store catalog.Store, minter *token.Minter, promReg *prometheus.Registry, log zerolog.Logger) *Server {
	if cfg.PlaylistPollTimeout <= 0 {
		cfg.PlaylistPollTimeout = 15 * time.Second
	}
	if cfg.PlaylistPollInterval <= 0 {
		cfg.PlaylistPollInterval = 500 * time.Millisecond
	}

	s := &Server{cfg: cfg, sup: sup, store: store, minter: minter, log: log, promReg: promReg}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(s.log))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	limiter := newIPRateLimiter(s.cfg.RateLimitPerSecond, s.cfg.RateLimitBurst)

	r.GET("/health", s.handleHealth)
	r.HEAD("/health", s.handleHealth)
	if s.promReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})))
	}

	hls := r.Group("/hls")
	hls.GET("/:feed_id/:file", s.serveHLS)
	hls.HEAD("/:feed_id/:file", s.serveHLS)

	tokens := r.Group("/tokens")
	tokens.Use(rateLimitMiddleware(limiter))
	tokens.POST("", s.handleMintToken)
	tokens.GET("/verify", s.handleVerifyToken)

	feeds := r.Group("/feeds")
	feeds.Use(rateLimitMiddleware(limiter))
	feeds.POST("/:feed_id/heartbeat", s.handleHeartbeat)
	feeds.POST("/:feed_id/disconnect", s.handleDisconnect)

	r.GET("/planner/default-overrides", s.handleDefaultOverrides)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
