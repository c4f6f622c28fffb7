package supervisor

import (
	"context"
	"time"
)

// runKeepAlive is the keep-alive watchdog: every 10s, if the feed has
// no viewers and has been idle for keepAliveSeconds, stop it. It must
// never hold the Registry's lock across its sleep, and
// it is the one task permitted to call stop_feed recursively on its own
// feed — stopFeed detects that via keepAliveSelfKey and skips awaiting
// its own completion channel.
func (s *Supervisor) runKeepAlive(ctx context.Context, feedID string, keepAliveSeconds int) {
	defer close(doneChanOrNil(ctx, s, feedID))

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	idleLimit := time.Duration(keepAliveSeconds) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, lastViewerTime, ok := s.reg.ViewerSnapshot(feedID)
			if !ok {
				return
			}
			if count == 0 && time.Since(lastViewerTime) >= idleLimit {
				_ = s.stopFeed(ctx, feedID)
				return
			}
		}
	}
}

// doneChanOrNil resolves the feed's KeepAliveDone channel at call time
// (the goroutine starting) rather than capturing it as a parameter,
// since stopFeed's self-stop path reads the same FeedProcess pointer.
func doneChanOrNil(ctx context.Context, s *Supervisor, feedID string) chan struct{} {
	fp, ok := s.reg.Get(feedID)
	if !ok || fp.KeepAliveDone == nil {
		return make(chan struct{})
	}
	return fp.KeepAliveDone
}
