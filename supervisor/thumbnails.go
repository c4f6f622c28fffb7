package supervisor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runThumbnailLoop refreshes every registered feed's thumbnail on a
// fixed cadence, best-effort. Each round fans out across feeds with
// errgroup so one stuck capture does not delay the others; errors are
// logged, never propagated.
func (s *Supervisor) runThumbnailLoop() {
	defer s.wg.Done()

	interval := s.cfg.ThumbnailRefreshInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCtx.Done():
			return
		case <-ticker.C:
			s.refreshThumbnails()
		}
	}
}

func (s *Supervisor) refreshThumbnails() {
	ids := s.reg.IDs()
	if len(ids) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(s.shutdownCtx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s.refreshOneThumbnail(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) refreshOneThumbnail(ctx context.Context, feedID string) {
	dir := s.outDirFor(feedID)

	if dataURL, err := s.thumbs.CaptureFromHLS(ctx, dir); err == nil {
		_ = s.store.UpdateFeedThumbnail(feedID, dataURL)
		return
	}

	feed, getErr := s.store.GetFeed(feedID)
	if getErr != nil {
		if s.metrics != nil {
			s.metrics.ThumbnailFailures.Inc()
		}
		return
	}

	dataURL, err := s.thumbs.Capture(ctx, feed.SourceURL)
	if err != nil {
		s.log.Debug().Str("feed_id", feedID).Err(err).Msg("thumbnail refresh failed")
		if s.metrics != nil {
			s.metrics.ThumbnailFailures.Inc()
		}
		return
	}
	_ = s.store.UpdateFeedThumbnail(feedID, dataURL)
}
