// Package gc runs a recurring sweep that deletes stale .ts segment
// files by age and removes orphaned feed output directories, grounded
// on original_source/core/stream_manager.py: _cleanup_segments and an
// existing periodic cleanupOldSegments pattern.
package gc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rtspgateway/catalog"
	"rtspgateway/metrics"
	"rtspgateway/registry"
)

// Config mirrors config.SupervisorConfig's GC-relevant fields.
type Config struct {
	StreamsDir       string
	SweepInterval    time.Duration
	SegmentMaxAge    time.Duration
}

// Sweeper runs the periodic segment/directory cleanup.
type Sweeper struct {
	cfg     Config
	reg     *registry.Registry
	store   catalog.Store
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(cfg Config, reg *registry.Registry, store catalog.Store, m *metrics.Metrics, log zerolog.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, reg: reg, store: store, metrics: m, log: log}
}

// Run blocks, sweeping on cfg.SweepInterval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce fans out one worker per subdirectory of StreamsDir.
// Per-directory errors are logged and swallowed — a sweep should never
// crash the process over a single bad directory.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.cfg.StreamsDir)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", s.cfg.StreamsDir).Msg("gc: read streams dir failed")
		return
	}

	liveIDs := make(map[string]struct{})
	for _, id := range s.reg.IDs() {
		liveIDs[id] = struct{}{}
	}

	g, _ := errgroup.WithContext(ctx)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		feedID := entry.Name()
		g.Go(func() error {
			s.sweepDirectory(feedID, liveIDs)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Sweeper) sweepDirectory(feedID string, liveIDs map[string]struct{}) {
	dir := filepath.Join(s.cfg.StreamsDir, feedID)

	s.deleteStaleSegments(dir)

	if _, live := liveIDs[feedID]; live {
		return
	}

	exists, err := s.store.FeedExists(feedID)
	if err != nil {
		s.log.Warn().Err(err).Str("feed_id", feedID).Msg("gc: feed existence check failed")
		return
	}
	if exists {
		return
	}

	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn().Err(err).Str("dir", dir).Msg("gc: remove orphan dir failed")
		return
	}
	if s.metrics != nil {
		s.metrics.OrphanDirsDeleted.Inc()
	}
}

// deleteStaleSegments removes .ts files older than the catalog's
// segment_max_age_minutes setting, or cfg.SegmentMaxAge when that
// setting is absent. Never touches any other file in the directory.
func (s *Sweeper) deleteStaleSegments(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // directory may have been removed concurrently; not an error worth logging
	}

	maxAge := s.cfg.SegmentMaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	if minutes := s.store.GetSettingInt(catalog.SettingSegmentMaxAgeMinutes, 0); minutes > 0 {
		maxAge = time.Duration(minutes) * time.Minute
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ts") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("gc: delete stale segment failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.SegmentsDeleted.Inc()
		}
	}
}
