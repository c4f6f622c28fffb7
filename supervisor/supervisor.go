// Package supervisor implements start/stop, monitor, reconnect,
// keep-alive watchdog, and viewer book-keeping for live feeds —
// grounded module-for-module on original_source/core/stream_manager.py
// and reusing the ticker/health patterns already established for the
// supplemented inline segment sweep.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rtspgateway/catalog"
	"rtspgateway/errs"
	"rtspgateway/metrics"
	"rtspgateway/planner"
	"rtspgateway/probe"
	"rtspgateway/registry"
	"rtspgateway/thumbnail"
)

// Config mirrors config.SupervisorConfig; kept as its own type so this
// package does not import config directly (main.go does the translation).
type Config struct {
	StreamsDir              string
	TranscoderPath          string
	MaxConcurrentStreams    int
	KeepAliveSeconds        int
	ReconnectDelay          time.Duration
	MaxReconnectAttempts    int
	HLSTime                 int
	HLSListSize             int
	ThumbnailRefreshInterval time.Duration
}

// Supervisor owns the Registry and drives every feed's lifecycle.
type Supervisor struct {
	cfg     Config
	reg     *registry.Registry
	store   catalog.Store
	prober  *probe.Prober
	thumbs  *thumbnail.Capturer
	metrics *metrics.Metrics
	log     zerolog.Logger

	// makeRoomMu serializes capacity-eviction scans so two concurrent
	// start_feed calls don't both decide the same victim is "the" victim
	// and double-stop it. It is held for a whole scan, including the
	// stopFeed calls it makes; stopFeed itself never takes it, so a
	// keep-alive watchdog stopping its own feed never waits on it.
	makeRoomMu sync.Mutex

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	wg             sync.WaitGroup
}

func New(cfg Config, reg *registry.Registry, store catalog.Store, prober *probe.Prober, thumbs *thumbnail.Capturer, m *metrics.Metrics, log zerolog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:            cfg,
		reg:            reg,
		store:          store,
		prober:         prober,
		thumbs:         thumbs,
		metrics:        m,
		log:            log,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start launches the supervisor's own background loops — the thumbnail
// refresh ticker and the playlist-aware segment cleanup safety net (the
// age-based GC ticker is owned separately by package gc) — then starts
// every always-on feed so it is serving before traffic arrives.
func (s *Supervisor) Start() error {
	s.wg.Add(2)
	go s.runThumbnailLoop()
	go s.runPlaylistCleanupLoop()

	return s.startAlwaysOnFeeds()
}

// startAlwaysOnFeeds implements the always_on boot contract: feeds in
// that mode are expected to already be running by the time the server
// accepts traffic, rather than waiting for a first viewer.
func (s *Supervisor) startAlwaysOnFeeds() error {
	feeds, err := s.store.ListFeedsByMode(catalog.ModeAlwaysOn)
	if err != nil {
		return err
	}

	for _, feed := range feeds {
		if err := s.StartFeed(s.shutdownCtx, feed.ID, "always-on"); err != nil {
			s.log.Error().Err(err).Str("feed_id", feed.ID).Msg("failed to start always-on feed at boot")
		}
	}
	return nil
}

// Close cancels the Supervisor's shutdown context and waits for its two
// background loops to return. Every feed's monitor and keep-alive task
// derives from the same context, so those tasks end too (without being
// awaited); transcoder subprocesses are not terminated and Registry
// entries are left in place.
func (s *Supervisor) Close() {
	s.shutdownCancel()
	s.wg.Wait()
}

// keepAliveSelfKey marks a context as belonging to a particular feed's
// own keep-alive watchdog, so stopFeed can detect a self-stop and avoid
// awaiting its own completion channel — a watchdog that tries to await
// itself would deadlock.
type keepAliveSelfKey struct{}

// StartFeed implements the start_feed contract: attach-or-start a
// viewer on a feed, evicting the oldest running feed if capacity is
// exhausted.
func (s *Supervisor) StartFeed(ctx context.Context, feedID, viewerID string) error {
	// Step 1: fast path.
	if ok, count := s.reg.AttachViewer(feedID, viewerID); ok {
		s.pushViewerCount(feedID, count)
		return nil
	}

	// Step 2: capacity. Evict down to one below cap so the pending
	// insert fits.
	capLimit := s.maxConcurrentStreams()
	if err := s.makeRoom(capLimit); err != nil {
		return err
	}

	// Re-check presence after the capacity scan — another goroutine may
	// have started this exact feed while we were evicting.
	if ok, count := s.reg.AttachViewer(feedID, viewerID); ok {
		s.pushViewerCount(feedID, count)
		return nil
	}

	feed, err := s.store.GetFeed(feedID)
	if err != nil {
		return errs.Wrap(errs.CategoryNotFound, "feed not found", err)
	}

	_ = s.store.UpdateFeedStatus(feedID, catalog.StatusStarting, "")

	var result *probe.Result
	if feed.VideoCodec == "" {
		result, err = s.prober.Probe(ctx, feed.SourceURL)
		if err != nil || !result.IsValid {
			msg := "probe failed"
			if result != nil {
				msg = result.Error
			}
			_ = s.store.UpdateFeedStatus(feedID, catalog.StatusError, msg)
			return errs.New(errs.CategoryProbeFailed, msg)
		}
		framerate := result.Framerate
		bitrate := result.VideoBitrate
		_ = s.store.UpdateFeedRuntime(feedID, 0, result.VideoCodec, result.Resolution, framerate, bitrate)
		feed.VideoCodec = result.VideoCodec
		feed.Resolution = result.Resolution
	}

	viewers := make(map[string]struct{})
	if viewerID != "" {
		viewers[viewerID] = struct{}{}
	}

	fp := &registry.FeedProcess{
		FeedID:         feedID,
		StartTime:      time.Now(),
		LastViewerTime: time.Now(),
		Viewers:        viewers,
		ProbeResult:    result,
	}
	s.reg.Insert(fp)

	// Step 4: outside the registry's mutex (Insert already returned).
	if err := s.spawnAndMonitor(feed, fp); err != nil {
		_ = s.store.UpdateFeedStatus(feedID, catalog.StatusError, err.Error())
		s.reg.Pop(feedID)
		if s.metrics != nil {
			s.metrics.FeedStartFailures.Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.FeedStarts.Inc()
		s.metrics.RegistrySize.Set(float64(s.reg.Size()))
	}
	return nil
}

// spawnAndMonitor builds the argv, spawns the transcoder, records
// runtime state, and launches the monitor task plus (for on_demand /
// smart feeds) the keep-alive watchdog.
func (s *Supervisor) spawnAndMonitor(feed *catalog.Feed, fp *registry.FeedProcess) error {
	outDir := filepath.Join(s.cfg.StreamsDir, feed.ID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errs.Wrap(errs.CategoryTranscoderSpawnFailed, "create output dir", err)
	}

	overrides, err := planner.ParseOverrides(feed.Overrides)
	if err != nil {
		overrides = planner.DefaultOverrides()
	}

	runtime := planner.Runtime{
		HLSTime:     s.store.GetSettingInt(catalog.SettingHLSTime, s.cfg.HLSTime),
		HLSListSize: s.store.GetSettingInt(catalog.SettingHLSListSize, s.cfg.HLSListSize),
	}

	plan := planner.Build(feed, fp.ProbeResult, overrides, outDir, runtime)

	tail := newTailBuffer()
	cmd, err := s.spawn(plan.Argv, tail)
	if err != nil {
		return errs.Wrap(errs.CategoryTranscoderSpawnFailed, "spawn transcoder", err)
	}
	fp.Cmd = cmd

	_ = s.store.UpdateFeedRuntime(feed.ID, cmd.Process.Pid, feed.VideoCodec, feed.Resolution, nil, nil)
	_ = s.store.UpdateFeedStatus(feed.ID, catalog.StatusRunning, "")

	monitorCtx, cancelMonitor := context.WithCancel(s.shutdownCtx)
	fp.CancelMonitor = cancelMonitor
	fp.MonitorDone = make(chan struct{})
	go s.runMonitor(monitorCtx, feed, fp, plan.Argv, tail)

	if feed.Mode != catalog.ModeAlwaysOn {
		keepAliveSeconds := feed.KeepAliveSeconds
		if keepAliveSeconds <= 0 {
			keepAliveSeconds = s.store.GetSettingInt(catalog.SettingKeepAliveSeconds, s.cfg.KeepAliveSeconds)
		}
		kaCtx := context.WithValue(s.shutdownCtx, keepAliveSelfKey{}, feed.ID)
		kaCtx, cancel := context.WithCancel(kaCtx)
		fp.CancelKeepAlive = cancel
		fp.KeepAliveDone = make(chan struct{})
		go s.runKeepAlive(kaCtx, feed.ID, keepAliveSeconds)
	}

	return nil
}

func (s *Supervisor) spawn(argv []string, stderr *tailBuffer) (*exec.Cmd, error) {
	cmd := exec.Command(s.cfg.TranscoderPath, argv...)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// StopFeed implements the stop_feed contract. It is idempotent: a
// second call on an already-stopped feed is a no-op that returns an
// error.
func (s *Supervisor) StopFeed(feedID string) error {
	return s.stopFeed(context.Background(), feedID)
}

func (s *Supervisor) stopFeed(callerCtx context.Context, feedID string) error {
	fp, ok := s.reg.Pop(feedID)
	if !ok {
		return errs.New(errs.CategoryNotFound, "feed not tracked")
	}

	selfStop := callerCtx.Value(keepAliveSelfKey{}) == feedID

	if fp.CancelKeepAlive != nil {
		fp.CancelKeepAlive()
		if !selfStop {
			<-fp.KeepAliveDone
		}
	}

	if fp.Cmd != nil && fp.Cmd.Process != nil {
		terminateProcess(fp.Cmd)
	}

	if fp.CancelMonitor != nil {
		fp.CancelMonitor()
		<-fp.MonitorDone
	}

	_ = s.store.UpdateFeedStatus(feedID, catalog.StatusStopped, "")

	if s.metrics != nil {
		s.metrics.FeedStops.Inc()
		s.metrics.RegistrySize.Set(float64(s.reg.Size()))
	}
	return nil
}

// terminateProcess sends SIGTERM, waits up to 5s, then SIGKILLs.
func terminateProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}

// makeRoom implements make_room(target_cap): while the registry is at
// or over capacity, evict the oldest entry, outside the registry's own
// lock (Oldest/StopFeed each take and release it independently).
func (s *Supervisor) makeRoom(targetCap int) error {
	s.makeRoomMu.Lock()
	defer s.makeRoomMu.Unlock()

	for s.reg.Size() >= targetCap {
		victim, ok := s.reg.Oldest()
		if !ok {
			break
		}
		if err := s.stopFeed(context.Background(), victim); err != nil {
			break
		}
		if s.metrics != nil {
			s.metrics.FeedEvictions.Inc()
		}
	}
	return nil
}

func (s *Supervisor) maxConcurrentStreams() int {
	capLimit := s.store.GetSettingInt(catalog.SettingMaxConcurrentStreams, s.cfg.MaxConcurrentStreams)
	if s.metrics != nil {
		s.metrics.ConcurrencyCap.Set(float64(capLimit))
	}
	return capLimit
}

// ViewerHeartbeat implements the viewer heartbeat contract.
func (s *Supervisor) ViewerHeartbeat(ctx context.Context, feedID, viewerID string) (running bool, err error) {
	if ok, count := s.reg.AttachViewer(feedID, viewerID); ok {
		s.pushViewerCount(feedID, count)
		return true, nil
	}

	feed, err := s.store.GetFeed(feedID)
	if err != nil {
		return false, errs.Wrap(errs.CategoryNotFound, "feed not found", err)
	}

	if feed.Mode == catalog.ModeOnDemand || feed.Mode == catalog.ModeSmart {
		if err := s.StartFeed(ctx, feedID, viewerID); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// ViewerDisconnect implements the viewer disconnect contract.
func (s *Supervisor) ViewerDisconnect(feedID, viewerID string) {
	if ok, count := s.reg.DetachViewer(feedID, viewerID); ok {
		s.pushViewerCount(feedID, count)
	}
}

func (s *Supervisor) pushViewerCount(feedID string, count int) {
	_ = s.store.UpdateFeedViewerCount(feedID, count, time.Now())
}

func (s *Supervisor) outDirFor(feedID string) string {
	return filepath.Join(s.cfg.StreamsDir, feedID)
}

// PlaylistPath returns the filesystem path the HLS server polls for.
func (s *Supervisor) PlaylistPath(feedID string) string {
	return filepath.Join(s.cfg.StreamsDir, feedID, "stream.m3u8")
}

// SegmentPath returns the filesystem path for a given segment name,
// rejecting traversal outside the feed's own directory.
func (s *Supervisor) SegmentPath(feedID, segment string) (string, error) {
	if filepath.Base(segment) != segment {
		return "", fmt.Errorf("supervisor: invalid segment name %q", segment)
	}
	return filepath.Join(s.cfg.StreamsDir, feedID, segment), nil
}
