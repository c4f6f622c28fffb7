package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"rtspgateway/catalog"
	"rtspgateway/config"
	"rtspgateway/gc"
	"rtspgateway/httpapi"
	"rtspgateway/logging"
	"rtspgateway/metrics"
	"rtspgateway/probe"
	"rtspgateway/registry"
	"rtspgateway/supervisor"
	"rtspgateway/thumbnail"
	"rtspgateway/token"
)

// main wires config -> logging -> catalog -> registry -> supervisor ->
// gc -> httpapi -> gin.Run as explicit dependencies rather than package
// globals, so every component can be constructed independently in tests.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	store, err := catalog.Open(catalog.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalog store")
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	reg := registry.New()
	prober := probe.New(cfg.Supervisor.ProbePath)
	thumbs := thumbnail.New(cfg.Supervisor.TranscoderPath)
	minter := token.New(cfg.Token.SecretKey, time.Duration(cfg.Token.DefaultExpiryHours)*time.Hour)

	sup := supervisor.New(supervisor.Config{
		StreamsDir:               cfg.Supervisor.StreamsDir,
		TranscoderPath:           cfg.Supervisor.TranscoderPath,
		MaxConcurrentStreams:     cfg.Supervisor.MaxConcurrentStreams,
		KeepAliveSeconds:         cfg.Supervisor.KeepAliveSeconds,
		ReconnectDelay:           time.Duration(cfg.Supervisor.ReconnectDelaySeconds) * time.Second,
		MaxReconnectAttempts:     cfg.Supervisor.MaxReconnectAttempts,
		HLSTime:                  cfg.Supervisor.HLSTime,
		HLSListSize:              cfg.Supervisor.HLSListSize,
		ThumbnailRefreshInterval: 60 * time.Second,
	}, reg, store, prober, thumbs, m, log)
	if err := sup.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start always-on feeds")
	}

	sweeper := gc.New(gc.Config{
		StreamsDir:    cfg.Supervisor.StreamsDir,
		SweepInterval: time.Duration(cfg.Supervisor.SegmentCleanupInterval) * time.Second,
		SegmentMaxAge: time.Duration(cfg.Supervisor.SegmentMaxAgeMinutes) * time.Minute,
	}, reg, store, m, log)

	gcCtx, gcCancel := context.WithCancel(context.Background())
	go sweeper.Run(gcCtx)

	server := httpapi.New(httpapi.Config{
		StreamsDir:           cfg.Supervisor.StreamsDir,
		PlaylistPollTimeout:  15 * time.Second,
		PlaylistPollInterval: 500 * time.Millisecond,
		RateLimitPerSecond:   5,
		RateLimitBurst:       10,
	}, sup, store, minter, promReg, log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("starting rtspgateway")

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- server.Router().Run(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErrCh:
		log.Error().Err(err).Msg("http server exited")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	gcCancel()
	sup.Close()
}
