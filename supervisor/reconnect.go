package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"rtspgateway/catalog"
	"rtspgateway/probe"
	"rtspgateway/registry"
)

// tailBuffer is a bounded io.Writer capturing a subprocess's stderr tail
// for post-mortem error classification, without letting a noisy
// transcoder grow memory unbounded.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailBufferLimit = 4096

func newTailBuffer() *tailBuffer {
	return &tailBuffer{}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailBufferLimit {
		t.buf = t.buf[len(t.buf)-tailBufferLimit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// runMonitor awaits the transcoder's exit and drives the reconnect state
// machine, grounded on original_source/core/stream_manager.py:
// _monitor_process. It reuses the existing Registry entry across
// reconnects to avoid evicting itself from the FIFO eviction order.
func (s *Supervisor) runMonitor(ctx context.Context, feed *catalog.Feed, fp *registry.FeedProcess, argv []string, tail *tailBuffer) {
	defer close(fp.MonitorDone)

	for {
		cmd := fp.Cmd
		waitErr := waitForExit(ctx, cmd)

		if ctx.Err() != nil {
			// stop_feed already owns teardown; nothing left to do.
			return
		}

		if waitErr == nil {
			_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusStopped, "")
			s.teardownAfterTerminalExit(feed.ID)
			return
		}

		count, ok := s.reg.IncrementReconnect(feed.ID)
		if !ok {
			return
		}

		if count > s.cfg.MaxReconnectAttempts {
			reason := probe.ClassifyFFmpegError(tail.String())
			_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusError, reason)
			s.teardownAfterTerminalExit(feed.ID)
			return
		}

		if s.metrics != nil {
			s.metrics.FeedReconnects.Inc()
		}

		msg := fmt.Sprintf("reconnecting (attempt %d/%d): %s", count, s.cfg.MaxReconnectAttempts, probe.ClassifyFFmpegError(tail.String()))
		_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusReconnecting, msg)

		select {
		case <-time.After(s.cfg.ReconnectDelay):
		case <-ctx.Done():
			return
		}

		tail = newTailBuffer()
		newCmd, spawnErr := s.spawn(argv, tail)
		if spawnErr != nil {
			_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusError, "respawn failed: "+spawnErr.Error())
			s.teardownAfterTerminalExit(feed.ID)
			return
		}
		fp.Cmd = newCmd
		s.reg.UpdateCmd(feed.ID, newCmd)
		_ = s.store.UpdateFeedRuntime(feed.ID, newCmd.Process.Pid, feed.VideoCodec, feed.Resolution, nil, nil)
		_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusRunning, "")
	}
}

// waitForExit waits for cmd to exit, returning early (with a non-nil
// sentinel meaning "watch ctx instead") if ctx is cancelled first — the
// process itself is torn down by whoever cancelled ctx (stop_feed).
func waitForExit(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardownAfterTerminalExit removes a feed's entry from the Registry
// after a normal exit or exhausted reconnect budget — state is already
// persisted to the catalog by the caller before this runs. The
// keep-alive watchdog (if any) is cancelled but not awaited here:
// runMonitor is a different goroutine than the watchdog, so there is no
// self-deadlock risk, but awaiting it
// is also unnecessary since the watchdog only ever reads Registry state
// that Pop is about to invalidate; it exits on its own once its next
// ViewerSnapshot call observes the feed gone.
func (s *Supervisor) teardownAfterTerminalExit(feedID string) {
	fp, ok := s.reg.Pop(feedID)
	if !ok {
		return
	}
	if fp.CancelKeepAlive != nil {
		fp.CancelKeepAlive()
	}
	if s.metrics != nil {
		s.metrics.RegistrySize.Set(float64(s.reg.Size()))
	}
}
